package query

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/resultmap"
)

// Env carries what a tree needs to run: the requesting user and the two
// backends. Every store and index call is scoped to UserID.
type Env struct {
	UserID string
	Store  bookmarkx.Store
	Index  bookmarkx.Searcher
}

// Evaluate runs n and returns the selected bookmarks. input narrows
// TextSearch nodes to the ids it holds; pass nil for no narrowing.
func Evaluate(ctx context.Context, env Env, n Node, input *resultmap.Map) (*resultmap.Map, error) {
	if env.UserID == "" {
		return nil, errors.WithStack(bookmarkx.ErrMissingUser)
	}
	if err := ctx.Err(); err != nil {
		return nil, bookmarkx.WrapBackendError(err, "evaluate %T", n)
	}

	switch n := n.(type) {
	case Query:
		result, err := Evaluate(ctx, env, n.Expr, input)
		if err != nil {
			return nil, err
		}
		return Sort(ctx, env, n.Order, result)
	case OrderBy:
		return Sort(ctx, env, n, input)
	case Logical:
		return evaluateLogical(ctx, env, n, input)
	case TagsIn:
		return evaluateTags(ctx, env, n)
	case ListEquals:
		return fromStore(env.Store.ListBookmarkIDs(ctx, env.UserID, n.ListID))
	case TextSearch:
		return evaluateText(ctx, env, n, input)
	case BookmarkTypeIs:
		return fromStore(env.Store.BookmarkIDsByType(ctx, env.UserID, n.Type))
	case FavouriteIs:
		return fromStore(env.Store.BookmarkIDsByFlag(ctx, env.UserID, bookmarkx.FlagFavourited, n.Value))
	case ArchivedIs:
		return fromStore(env.Store.BookmarkIDsByFlag(ctx, env.UserID, bookmarkx.FlagArchived, n.Value))
	case CreatedDateCompare:
		return fromStore(env.Store.BookmarkIDsByCreatedAt(ctx, env.UserID, n.Op, n.Date))
	case SelectAll:
		return fromStore(env.Store.AllBookmarkIDs(ctx, env.UserID))
	case SearchByID:
		return resultmap.FromIDs(n.IDs), nil
	default:
		return nil, errors.Wrapf(bookmarkx.ErrInvalidExpression, "unsupported node %T", n)
	}
}

func fromStore(ids []string, err error) (*resultmap.Map, error) {
	if err != nil {
		return nil, bookmarkx.WrapBackendError(err, "store query")
	}
	return resultmap.FromIDs(ids), nil
}

func isTextSearch(n Node) bool {
	_, ok := n.(TextSearch)
	return ok
}

func evaluateLogical(ctx context.Context, env Env, n Logical, input *resultmap.Map) (*resultmap.Map, error) {
	switch n.Op {
	case OpOr:
		left, right, err := evaluateBoth(ctx, env, n.Left, n.Right, input)
		if err != nil {
			return nil, err
		}
		return resultmap.Union(left, right), nil
	case OpAnd:
		// With exactly one text side, the other side runs first and narrows
		// the text search to its ids.
		leftText, rightText := isTextSearch(n.Left), isTextSearch(n.Right)
		if leftText != rightText {
			filter, text := n.Left, n.Right
			if leftText {
				filter, text = n.Right, n.Left
			}
			filtered, err := Evaluate(ctx, env, filter, resultmap.Empty())
			if err != nil {
				return nil, err
			}
			if filtered.Len() == 0 {
				return resultmap.Empty(), nil
			}
			hits, err := Evaluate(ctx, env, text, filtered)
			if err != nil {
				return nil, err
			}
			if leftText {
				return resultmap.Intersect(hits, filtered), nil
			}
			return resultmap.Intersect(filtered, hits), nil
		}

		left, right, err := evaluateBoth(ctx, env, n.Left, n.Right, input)
		if err != nil {
			return nil, err
		}
		return resultmap.Intersect(left, right), nil
	}
	return nil, errors.Wrapf(bookmarkx.ErrInvalidExpression, "unknown logical operator %q", n.Op)
}

// evaluateBoth runs two independent subtrees concurrently. The first failure
// cancels the other side.
func evaluateBoth(ctx context.Context, env Env, left, right Node, input *resultmap.Map) (*resultmap.Map, *resultmap.Map, error) {
	var l, r *resultmap.Map
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		l, err = Evaluate(gctx, env, left, input)
		return err
	})
	g.Go(func() error {
		var err error
		r, err = Evaluate(gctx, env, right, input)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func evaluateTags(ctx context.Context, env Env, n TagsIn) (*resultmap.Map, error) {
	tagIDs := n.Tags
	if !n.ByID {
		var err error
		tagIDs, err = env.Store.TagIDsByName(ctx, env.UserID, n.Tags)
		if err != nil {
			return nil, bookmarkx.WrapBackendError(err, "resolve tags %v", n.Tags)
		}
	}

	tagged := resultmap.Empty()
	if len(tagIDs) > 0 {
		var err error
		if tagged, err = fromStore(env.Store.BookmarkIDsWithTags(ctx, env.UserID, tagIDs)); err != nil {
			return nil, err
		}
	}
	if !n.Negate {
		return tagged, nil
	}

	all, err := fromStore(env.Store.AllBookmarkIDs(ctx, env.UserID))
	if err != nil {
		return nil, err
	}
	return resultmap.Subtract(all, tagged), nil
}

func evaluateText(ctx context.Context, env Env, n TextSearch, input *resultmap.Map) (*resultmap.Map, error) {
	if env.Index == nil {
		return nil, errors.Wrap(bookmarkx.ErrBackendUnavailable, "no full-text index configured")
	}

	opts := []bookmarkx.SearchOption{
		bookmarkx.Eq("userId", env.UserID),
		bookmarkx.WithLimit(bookmarkx.MaxSearchHits),
		bookmarkx.WithSort("createdAt", true),
		bookmarkx.WithAttributes("id"),
	}
	if input.Len() > 0 {
		opts = append(opts, bookmarkx.In("id", input.IDs()...))
	}

	res, err := env.Index.Search(ctx, n.Text, opts...)
	if err != nil {
		return nil, bookmarkx.WrapBackendError(err, "text search %q", n.Text)
	}
	if res == nil || len(res.Items) == 0 {
		return resultmap.Empty(), nil
	}

	scores := make(map[string]float64, len(res.Items))
	ids := make([]string, 0, len(res.Items))
	for _, hit := range res.Items {
		if _, seen := scores[hit.ID]; seen {
			continue
		}
		scores[hit.ID] = hit.Score
		ids = append(ids, hit.ID)
	}

	// The index can lag behind the store; drop hits that no longer exist.
	owned, err := env.Store.OwnedBookmarkIDs(ctx, env.UserID, ids)
	if err != nil {
		return nil, bookmarkx.WrapBackendError(err, "check text search hits")
	}

	items := make([]resultmap.SearchInfo, 0, len(owned))
	for _, id := range owned {
		items = append(items, resultmap.SearchInfo{ID: id, Ranking: resultmap.Rank(scores[id])})
	}
	return resultmap.FromList(items), nil
}
