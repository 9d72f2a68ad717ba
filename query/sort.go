package query

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/resultmap"
)

type comparator func(a, b resultmap.SearchInfo) int

func compareID(a, b resultmap.SearchInfo) int {
	return strings.Compare(a.ID, b.ID)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

// keyComparators assume the enrichment fields their key reads are set;
// checkLoaded guarantees that before sorting.
var keyComparators = map[SortKey]comparator{
	SortRank: func(a, b resultmap.SearchInfo) int {
		switch {
		case a.Ranking == nil && b.Ranking == nil:
			return 0
		case a.Ranking == nil:
			return -1
		case b.Ranking == nil:
			return 1
		}
		return cmp.Compare(*a.Ranking, *b.Ranking)
	},
	SortFavourite: func(a, b resultmap.SearchInfo) int {
		return compareBool(*a.Favourite, *b.Favourite)
	},
	SortArchived: func(a, b resultmap.SearchInfo) int {
		return compareBool(*a.Archived, *b.Archived)
	},
	SortCreatedDate: func(a, b resultmap.SearchInfo) int {
		return a.CreatedAt.Compare(*b.CreatedAt)
	},
	SortBookmarkType: func(a, b resultmap.SearchInfo) int {
		return cmp.Compare(a.Type.Rank(), b.Type.Rank())
	},
}

// needsFields reports whether any key reads enrichment fields.
func (o OrderBy) needsFields() bool {
	for _, item := range o.Items {
		if item.Key != SortRank {
			return true
		}
	}
	return false
}

// comparator folds the items from the right so each key only defers to the
// next one on a tie. Ascending id is the last resort.
func (o OrderBy) comparator() (comparator, error) {
	next := comparator(compareID)
	for i := len(o.Items) - 1; i >= 0; i-- {
		item := o.Items[i]
		compare, ok := keyComparators[item.Key]
		if !ok {
			return nil, errors.Wrapf(bookmarkx.ErrInvalidExpression, "unknown sort key %q", item.Key)
		}
		desc, tiebreak := item.Desc, next
		next = func(a, b resultmap.SearchInfo) int {
			c := compare(a, b)
			if desc {
				c = -c
			}
			if c != 0 {
				return c
			}
			return tiebreak(a, b)
		}
	}
	return next, nil
}

func checkLoaded(key SortKey, info resultmap.SearchInfo) error {
	var loaded bool
	switch key {
	case SortRank:
		return nil
	case SortFavourite:
		loaded = info.Favourite != nil
	case SortArchived:
		loaded = info.Archived != nil
	case SortCreatedDate:
		loaded = info.CreatedAt != nil
	case SortBookmarkType:
		loaded = info.Type != ""
	}
	if !loaded {
		return errors.Wrapf(bookmarkx.ErrNotLoaded, "%s of bookmark %s", key, info.ID)
	}
	return nil
}

// Apply orders m without touching any backend. Every key other than rank
// needs its field already loaded on each entry, otherwise the result is
// ErrNotLoaded.
func (o OrderBy) Apply(m *resultmap.Map) (*resultmap.Map, error) {
	compare, err := o.comparator()
	if err != nil {
		return nil, err
	}
	entries := m.Entries()
	for _, item := range o.Items {
		for _, info := range entries {
			if err := checkLoaded(item.Key, info); err != nil {
				return nil, err
			}
		}
	}
	slices.SortStableFunc(entries, compare)
	return resultmap.FromList(entries), nil
}

// Sort enriches m with the sort projection of every id and orders it. When a
// key needs loaded fields, ids the store no longer knows are dropped.
func Sort(ctx context.Context, env Env, o OrderBy, m *resultmap.Map) (*resultmap.Map, error) {
	if m.Len() == 0 {
		return resultmap.Empty(), nil
	}
	enriched, err := enrich(ctx, env, m, o.needsFields())
	if err != nil {
		return nil, err
	}
	return o.Apply(enriched)
}

func enrich(ctx context.Context, env Env, m *resultmap.Map, dropMissing bool) (*resultmap.Map, error) {
	fields, err := env.Store.SortFields(ctx, env.UserID, m.IDs())
	if err != nil {
		return nil, bookmarkx.WrapBackendError(err, "load sort fields")
	}
	byID := make(map[string]bookmarkx.SortFields, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}

	items := make([]resultmap.SearchInfo, 0, m.Len())
	for _, info := range m.Entries() {
		f, ok := byID[info.ID]
		if !ok {
			if !dropMissing {
				items = append(items, info)
			}
			continue
		}
		items = append(items, info.WithSortFields(f))
	}
	return resultmap.FromList(items), nil
}
