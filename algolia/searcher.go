package algolia

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/letmevibethatforyou/bookmarkx"
)

// Searcher implements the bookmarkx.Searcher interface using Algolia.
type Searcher struct {
	client    *Client
	indexName string
	// replicas maps "field:asc|desc" to the replica index ranked that way.
	replicas map[string]string
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithSortReplica routes searches whose primary sort is field/desc to the
// named replica index. Algolia only sorts through replicas with a custom
// ranking; without one the primary index ranks by relevance.
func WithSortReplica(field string, desc bool, indexName string) SearcherOption {
	return func(s *Searcher) {
		s.replicas[sortKey(field, desc)] = indexName
	}
}

// NewSearcher creates a new Algolia searcher for the specified index.
func NewSearcher(client *Client, indexName string, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		client:    client,
		indexName: indexName,
		replicas:  map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search implements the bookmarkx.Searcher interface using Algolia search.
// An empty query matches every document allowed by the filters.
func (s *Searcher) Search(ctx context.Context, query string, opts ...bookmarkx.SearchOption) (*bookmarkx.Results, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, bookmarkx.WrapBackendError(err, "algolia search")
	}

	cfg := bookmarkx.NewSearchConfig(opts...)
	if cfg.Limit == 0 {
		cfg.Limit = 10
	}
	if cfg.Limit < 0 || cfg.Limit > bookmarkx.MaxSearchHits {
		return nil, errors.Wrapf(bookmarkx.ErrInvalidOption, "limit must be between 1 and %d, got %d", bookmarkx.MaxSearchHits, cfg.Limit)
	}

	indexName := s.resolveIndex(cfg.Sort)
	ctx, span := s.client.tracer.Start(ctx, "algolia.search",
		trace.WithAttributes(
			attribute.String("algolia.index_name", indexName),
			attribute.Int("algolia.hits_per_page", cfg.Limit),
			attribute.Int("algolia.filter_count", len(cfg.Filters)),
		),
	)
	defer span.End()

	algoliaClient, err := s.client.getClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Algolia client")
		return nil, errors.WithSecondaryError(
			bookmarkx.ErrBackendUnavailable,
			errors.Wrapf(err, "failed to get Algolia client"),
		)
	}

	params := append(buildSearchParams(cfg), ctx)
	res, err := algoliaClient.InitIndex(indexName).Search(query, params...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "algolia search failed")
		return nil, bookmarkx.WrapBackendError(err, "algolia search on index %s", indexName)
	}

	results := convertHits(res, query)
	results.Took = time.Since(startTime).Milliseconds()

	span.SetAttributes(attribute.Int("algolia.hit_count", len(results.Items)))
	span.SetStatus(codes.Ok, "search completed")
	return results, nil
}

// resolveIndex picks the replica ranked by the first sort field, falling back
// to the primary index.
func (s *Searcher) resolveIndex(sort []bookmarkx.SortField) string {
	if len(sort) == 0 {
		return s.indexName
	}
	if replica, ok := s.replicas[sortKey(sort[0].Field, sort[0].Desc)]; ok {
		return replica
	}
	slog.Debug("No Algolia replica for sort, using relevance ranking",
		"index", s.indexName,
		"sort", sortKey(sort[0].Field, sort[0].Desc),
	)
	return s.indexName
}

func sortKey(field string, desc bool) string {
	if desc {
		return field + ":desc"
	}
	return field + ":asc"
}

// convertHits maps an Algolia response onto bookmarkx results.
func convertHits(res search.QueryRes, query string) *bookmarkx.Results {
	results := &bookmarkx.Results{
		Items: make([]bookmarkx.Result, 0, len(res.Hits)),
		Total: int64(res.NbHits),
		Query: query,
	}

	for _, hit := range res.Hits {
		id, _ := hit["id"].(string)
		if id == "" {
			id, _ = hit["objectID"].(string)
		}
		if id == "" {
			continue
		}

		// Algolia does not expose relevance scores, so the hit position stands in.
		score := calculateScore(len(res.Hits), len(results.Items))
		results.MaxScore = max(results.MaxScore, score)
		results.Items = append(results.Items, bookmarkx.Result{
			ID:     id,
			Score:  score,
			Fields: hit,
		})
	}
	return results
}

// buildSearchParams converts bookmarkx.SearchConfig to Algolia search parameters
func buildSearchParams(cfg *bookmarkx.SearchConfig) []interface{} {
	params := []interface{}{opt.HitsPerPage(cfg.Limit)}

	if len(cfg.Filters) > 0 {
		filterStrings := make([]string, 0, len(cfg.Filters))
		for _, expr := range cfg.Filters {
			if filterStr := convertExpressionToFilter(expr); filterStr != "" {
				filterStrings = append(filterStrings, filterStr)
			}
		}
		if len(filterStrings) > 0 {
			params = append(params, opt.Filters(strings.Join(filterStrings, " AND ")))
		}
	}

	if len(cfg.Attributes) > 0 {
		params = append(params, opt.AttributesToRetrieve(cfg.Attributes...))
	}

	return params
}

// calculateScore creates a rank-based score: earlier hits score higher.
func calculateScore(totalResults, position int) float64 {
	if totalResults == 0 {
		return 1.0
	}
	return float64(totalResults-position) / float64(totalResults)
}

// convertExpressionToFilter converts a bookmarkx expression to an Algolia filter string
func convertExpressionToFilter(expr bookmarkx.Expression) string {
	switch e := expr.(type) {
	case bookmarkx.AndExpr:
		return joinFilters(e.Exprs, " AND ")
	case bookmarkx.OrExpr:
		return joinFilters(e.Exprs, " OR ")
	case bookmarkx.NotExpr:
		inner := convertExpressionToFilter(e.Inner)
		if inner == "" {
			return ""
		}
		return "NOT (" + inner + ")"
	case bookmarkx.EqExpr:
		return fmt.Sprintf("%s:%s", escapeField(e.Field), escapeValue(e.Value))
	case bookmarkx.NeExpr:
		return fmt.Sprintf("NOT %s:%s", escapeField(e.Field), escapeValue(e.Value))
	case bookmarkx.InExpr:
		return convertInExpression(e)
	default:
		return ""
	}
}

func joinFilters(exprs []bookmarkx.Expression, sep string) string {
	filters := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if filter := convertExpressionToFilter(e); filter != "" {
			filters = append(filters, "("+filter+")")
		}
	}
	return strings.Join(filters, sep)
}

// convertInExpression renders membership as a disjunction. An empty value
// list must match nothing, which Algolia has no literal for, so it becomes
// a contradiction on the field.
func convertInExpression(expr bookmarkx.InExpr) string {
	field := escapeField(expr.Field)
	if len(expr.Values) == 0 {
		return fmt.Sprintf(`%s:"" AND NOT %s:""`, field, field)
	}
	terms := make([]string, 0, len(expr.Values))
	for _, v := range expr.Values {
		terms = append(terms, fmt.Sprintf("%s:%s", field, escapeValue(v)))
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

// escapeField quotes field names containing filter syntax characters.
func escapeField(field string) string {
	if strings.ContainsAny(field, " :-()") {
		return fmt.Sprintf(`"%s"`, field)
	}
	return field
}

// escapeValue quotes a value and escapes internal quotes.
func escapeValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	case bool:
		return `"` + strconv.FormatBool(v) + `"`
	default:
		return fmt.Sprintf(`"%v"`, value)
	}
}
