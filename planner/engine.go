package planner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/query"
)

// Response is one page of search results. A malformed advanced query gives
// an empty page with ErrorMessage set instead of an error.
type Response struct {
	Bookmarks    []bookmarkx.Bookmark `json:"bookmarks"`
	NextCursor   *Cursor              `json:"nextCursor"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
}

// Engine runs bookmark searches against a store and a full-text index.
type Engine struct {
	store     bookmarkx.Store
	index     bookmarkx.Searcher
	tracer    trace.Tracer
	parseOpts []query.ParseOption
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer sets the tracer used for search spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithParseOptions sets the options advanced queries are parsed with.
func WithParseOptions(opts ...query.ParseOption) Option {
	return func(e *Engine) {
		e.parseOpts = append(e.parseOpts, opts...)
	}
}

// NewEngine creates an Engine. index may be nil when text search is not
// available; text queries then fail with ErrBackendUnavailable.
func NewEngine(store bookmarkx.Store, index bookmarkx.Searcher, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		index:  index,
		tracer: otel.Tracer("bookmarkx-planner"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan builds the query tree for req. The error is a *query.SyntaxError when
// advanced text does not parse.
func (e *Engine) Plan(req Request) (query.Query, error) {
	if !req.Advanced {
		return req.simpleQuery(), nil
	}
	if strings.TrimSpace(req.Text) == "" {
		return query.NewQuery(query.SelectAll{}, query.OrderBy{}), nil
	}
	return query.Parse(req.Text, e.parseOpts...)
}

// PerformSearch runs req for userID and returns the requested page.
func (e *Engine) PerformSearch(ctx context.Context, userID string, req Request) (*Response, error) {
	ctx, span := e.tracer.Start(ctx, "bookmarkx.perform_search",
		trace.WithAttributes(
			attribute.Bool("bookmarkx.advanced", req.Advanced),
			attribute.Int("bookmarkx.limit", req.limit()),
			attribute.Bool("bookmarkx.cursor_v2", req.UseCursorV2),
		),
	)
	defer span.End()

	resp, err := e.performSearch(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("bookmarkx.page_size", len(resp.Bookmarks)))
	span.SetStatus(codes.Ok, "search completed")
	return resp, nil
}

func (e *Engine) performSearch(ctx context.Context, userID string, req Request) (*Response, error) {
	if userID == "" {
		return nil, errors.WithStack(bookmarkx.ErrMissingUser)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	q, err := e.Plan(req)
	if err != nil {
		var syntaxErr *query.SyntaxError
		if errors.As(err, &syntaxErr) {
			slog.InfoContext(ctx, "Advanced query failed to parse",
				"text", req.Text,
				"error", syntaxErr.Error(),
			)
			return &Response{Bookmarks: []bookmarkx.Bookmark{}, ErrorMessage: syntaxErr.Error()}, nil
		}
		return nil, err
	}
	slog.DebugContext(ctx, "Planned search", "query", query.Describe(q))

	start := time.Now()
	env := query.Env{UserID: userID, Store: e.store, Index: e.index}
	result, err := query.Evaluate(ctx, env, q, nil)
	if err != nil {
		return nil, err
	}
	evaluated := time.Now()
	slog.DebugContext(ctx, "Evaluated search",
		"results", result.Len(),
		"duration", evaluated.Sub(start),
	)

	if result.Len() == 0 {
		return &Response{Bookmarks: []bookmarkx.Bookmark{}}, nil
	}

	page, err := Paginate(result, req.limit(), req.Cursor, req.UseCursorV2)
	if err != nil {
		return nil, err
	}

	bookmarks, err := e.hydrate(ctx, userID, page.IDs)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "Loaded page",
		"page_size", len(bookmarks),
		"has_next", page.Next != nil,
		"duration", time.Since(evaluated),
		"total_duration", time.Since(start),
	)

	return &Response{Bookmarks: bookmarks, NextCursor: page.Next}, nil
}

// hydrate loads full records for ids and returns them in ids order. Ids the
// store does not return are skipped.
func (e *Engine) hydrate(ctx context.Context, userID string, ids []string) ([]bookmarkx.Bookmark, error) {
	if len(ids) == 0 {
		return []bookmarkx.Bookmark{}, nil
	}
	loaded, err := e.store.Bookmarks(ctx, userID, ids)
	if err != nil {
		return nil, bookmarkx.WrapBackendError(err, "load %d bookmarks", len(ids))
	}

	byID := make(map[string]bookmarkx.Bookmark, len(loaded))
	for _, b := range loaded {
		byID[b.ID] = b
	}
	ordered := make([]bookmarkx.Bookmark, 0, len(ids))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			ordered = append(ordered, b)
		}
	}
	return ordered, nil
}
