// Package inmemory provides in-process implementations of the bookmark store
// and the full-text index. They back the local CLI and the tests of the query
// engine.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/bookmarkx"
)

// Document is one entry of the full-text index.
type Document struct {
	// ID is the bookmark id.
	ID string
	// Fields holds the indexed attributes, as produced by IndexDocument.Object.
	Fields map[string]interface{}
}

// searchableFields are the attributes free text is matched against.
var searchableFields = []string{"title", "description", "content", "note", "url", "fileName", "tags"}

// Searcher implements bookmarkx.Searcher over documents held in memory.
type Searcher struct {
	mu        sync.RWMutex
	documents []Document
	idIndex   map[string]int // maps document ID to index in documents slice
}

// New creates an empty index. It is safe for concurrent use.
func New() *Searcher {
	return &Searcher{
		documents: make([]Document, 0),
		idIndex:   make(map[string]int),
	}
}

// AddDocument adds or replaces a document.
func (s *Searcher) AddDocument(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, exists := s.idIndex[doc.ID]; exists {
		s.documents[idx] = doc
		return
	}
	s.idIndex[doc.ID] = len(s.documents)
	s.documents = append(s.documents, doc)
}

// Index adds or replaces the document of a bookmark.
func (s *Searcher) Index(doc bookmarkx.IndexDocument) {
	s.AddDocument(Document{ID: doc.ID, Fields: doc.Object()})
}

// AddJSON adds a document from its JSON attributes.
func (s *Searcher) AddJSON(id string, jsonData []byte) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return errors.Wrap(err, "failed to unmarshal JSON")
	}
	s.AddDocument(Document{ID: id, Fields: fields})
	return nil
}

// RemoveDocument removes a document and reports whether it existed.
func (s *Searcher) RemoveDocument(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.idIndex[id]
	if !exists {
		return false
	}

	s.documents = append(s.documents[:idx], s.documents[idx+1:]...)
	delete(s.idIndex, id)
	for i := idx; i < len(s.documents); i++ {
		s.idIndex[s.documents[i].ID] = i
	}
	return true
}

// Size returns the number of indexed documents.
func (s *Searcher) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Search implements bookmarkx.Searcher. Every query term must occur in one
// of the searchable attributes; an empty query matches every document.
func (s *Searcher) Search(ctx context.Context, query string, opts ...bookmarkx.SearchOption) (*bookmarkx.Results, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, bookmarkx.WrapBackendError(err, "in-memory search")
	}

	cfg := bookmarkx.NewSearchConfig(opts...)
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Limit > bookmarkx.MaxSearchHits {
		return nil, errors.Wrapf(bookmarkx.ErrInvalidOption, "limit %d exceeds %d", cfg.Limit, bookmarkx.MaxSearchHits)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	var matches []scoredDocument
	for i, doc := range s.documents {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, bookmarkx.WrapBackendError(err, "in-memory search")
			}
		}
		if !matchesFilters(doc, cfg.Filters) {
			continue
		}
		if score := scoreDocument(doc, terms); score > 0 {
			matches = append(matches, scoredDocument{document: doc, score: score})
		}
	}

	sortMatches(matches, cfg.Sort)

	end := min(cfg.Limit, len(matches))
	results := &bookmarkx.Results{
		Items: make([]bookmarkx.Result, 0, end),
		Total: int64(len(matches)),
		Query: query,
	}
	for _, match := range matches[:end] {
		results.MaxScore = max(results.MaxScore, match.score)
		results.Items = append(results.Items, bookmarkx.Result{
			ID:     match.document.ID,
			Score:  match.score,
			Fields: project(match.document.Fields, cfg.Attributes),
		})
	}
	results.Took = time.Since(startTime).Milliseconds()
	return results, nil
}

type scoredDocument struct {
	document Document
	score    float64
}

// scoreDocument counts, per term, the searchable attributes containing it.
// A document missing any term scores zero.
func scoreDocument(doc Document, terms []string) float64 {
	if len(terms) == 0 {
		return 1.0
	}

	score := 0.0
	for _, term := range terms {
		hits := 0
		for _, field := range searchableFields {
			if valueContainsTerm(doc.Fields[field], term) {
				hits++
			}
		}
		if hits == 0 {
			return 0
		}
		score += float64(hits)
	}
	return score
}

func valueContainsTerm(value interface{}, term string) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(strings.ToLower(v), term)
	case []string:
		for _, item := range v {
			if strings.Contains(strings.ToLower(item), term) {
				return true
			}
		}
		return false
	case []interface{}:
		for _, item := range v {
			if valueContainsTerm(item, term) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(strings.ToLower(fmt.Sprintf("%v", v)), term)
	}
}

func project(fields map[string]interface{}, attributes []string) map[string]interface{} {
	if len(attributes) == 0 {
		return fields
	}
	out := make(map[string]interface{}, len(attributes))
	for _, attr := range attributes {
		if v, ok := fields[attr]; ok {
			out[attr] = v
		}
	}
	return out
}

// sortMatches orders by the configured fields, then by score. The field
// "_score" sorts by relevance.
func sortMatches(matches []scoredDocument, sortFields []bookmarkx.SortField) {
	slices.SortStableFunc(matches, func(a, b scoredDocument) int {
		for _, sf := range sortFields {
			var c int
			if sf.Field == "_score" {
				c = compareValues(a.score, b.score)
			} else {
				c = compareValues(a.document.Fields[sf.Field], b.document.Fields[sf.Field])
			}
			if sf.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return compareValues(b.score, a.score)
	})
}

// compareValues orders nil first, numbers numerically, times chronologically
// and everything else by its string form.
func compareValues(v1, v2 interface{}) int {
	if v1 == nil && v2 == nil {
		return 0
	}
	if v1 == nil {
		return -1
	}
	if v2 == nil {
		return 1
	}

	if f1, ok1 := toFloat64(v1); ok1 {
		if f2, ok2 := toFloat64(v2); ok2 {
			switch {
			case f1 < f2:
				return -1
			case f1 > f2:
				return 1
			}
			return 0
		}
	}
	if t1, ok1 := v1.(time.Time); ok1 {
		if t2, ok2 := v2.(time.Time); ok2 {
			return t1.Compare(t2)
		}
	}

	return strings.Compare(fmt.Sprintf("%v", v1), fmt.Sprintf("%v", v2))
}
