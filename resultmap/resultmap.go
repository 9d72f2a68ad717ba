// Package resultmap holds the ordered id -> search metadata map that flows
// between query evaluation, sorting and pagination, plus its merge algebra.
package resultmap

import (
	"time"

	"github.com/letmevibethatforyou/bookmarkx"
)

// SearchInfo is the per-bookmark metadata accumulated while a query runs.
// Ranking is set only when a full-text search contributed the hit. The other
// optional fields are filled by sort enrichment.
type SearchInfo struct {
	ID        string
	Ranking   *float64
	CreatedAt *time.Time
	Favourite *bool
	Archived  *bool
	Type      bookmarkx.BookmarkType
}

// Loaded reports whether sort enrichment populated the record.
func (s SearchInfo) Loaded() bool {
	return s.CreatedAt != nil && s.Favourite != nil && s.Archived != nil && s.Type != ""
}

// WithSortFields returns a copy of s with the enrichment fields overwritten.
func (s SearchInfo) WithSortFields(f bookmarkx.SortFields) SearchInfo {
	createdAt := f.CreatedAt
	favourite := f.Favourited
	archived := f.Archived
	s.CreatedAt = &createdAt
	s.Favourite = &favourite
	s.Archived = &archived
	s.Type = f.Type
	return s
}

// Rank builds a ranking pointer.
func Rank(v float64) *float64 {
	return &v
}

// Map is an insertion-ordered mapping from bookmark id to SearchInfo.
// A Map is never mutated after construction; a nil *Map is empty.
type Map struct {
	order []string
	items map[string]SearchInfo
}

// Empty returns a map with no entries.
func Empty() *Map {
	return &Map{items: map[string]SearchInfo{}}
}

func newMap(capacity int) *Map {
	return &Map{
		order: make([]string, 0, capacity),
		items: make(map[string]SearchInfo, capacity),
	}
}

// set inserts or replaces an entry. Replacing keeps the original position.
func (m *Map) set(info SearchInfo) {
	if _, exists := m.items[info.ID]; !exists {
		m.order = append(m.order, info.ID)
	}
	m.items[info.ID] = info
}

// FromList builds a map from items. Later entries overwrite earlier ones with
// the same id.
func FromList(items []SearchInfo) *Map {
	m := newMap(len(items))
	for _, item := range items {
		m.set(item)
	}
	return m
}

// FromIDs builds a map of bare ids.
func FromIDs(ids []string) *Map {
	m := newMap(len(ids))
	for _, id := range ids {
		m.set(SearchInfo{ID: id})
	}
	return m
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Get returns the entry for id.
func (m *Map) Get(id string) (SearchInfo, bool) {
	if m == nil {
		return SearchInfo{}, false
	}
	info, ok := m.items[id]
	return info, ok
}

// Has reports whether id is present.
func (m *Map) Has(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// IDs returns the ids in iteration order.
func (m *Map) IDs() []string {
	if m == nil {
		return nil
	}
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	return ids
}

// Entries returns the records in iteration order.
func (m *Map) Entries() []SearchInfo {
	if m == nil {
		return nil
	}
	entries := make([]SearchInfo, 0, len(m.order))
	for _, id := range m.order {
		entries = append(entries, m.items[id])
	}
	return entries
}

// merge combines two records for the same id: a's record, with b's ranking
// filling in when a has none.
func merge(a, b SearchInfo) SearchInfo {
	if a.Ranking == nil {
		a.Ranking = b.Ranking
	}
	return a
}

// Intersect keeps the ids present in both maps, in a's order.
func Intersect(a, b *Map) *Map {
	out := newMap(min(a.Len(), b.Len()))
	if a.Len() == 0 || b.Len() == 0 {
		return out
	}
	for _, id := range a.order {
		if other, ok := b.items[id]; ok {
			out.set(merge(a.items[id], other))
		}
	}
	return out
}

// Union keeps the ids present in either map: a's order first, then the ids
// only b has.
func Union(a, b *Map) *Map {
	out := newMap(a.Len() + b.Len())
	for _, info := range a.Entries() {
		out.set(info)
	}
	for _, info := range b.Entries() {
		if existing, ok := out.items[info.ID]; ok {
			out.set(merge(existing, info))
			continue
		}
		out.set(info)
	}
	return out
}

// Subtract keeps the ids of a that b does not have, in a's order.
func Subtract(a, b *Map) *Map {
	out := newMap(a.Len())
	for _, info := range a.Entries() {
		if !b.Has(info.ID) {
			out.set(info)
		}
	}
	return out
}
