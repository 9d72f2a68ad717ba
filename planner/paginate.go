package planner

import (
	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/resultmap"
)

// Page is one slice of an ordered result map.
type Page struct {
	IDs  []string
	Next *Cursor
}

// Paginate cuts the page that starts at cursor out of m. The cursor entry is
// the first entry of the page; a cursor that matches nothing gives an empty
// page. With v2 the cursor is matched by id and must have one; otherwise it
// is matched by creation time and the next cursor is a legacy one.
func Paginate(m *resultmap.Map, limit int, cursor *Cursor, v2 bool) (Page, error) {
	if limit <= 0 {
		return Page{}, errors.Wrapf(bookmarkx.ErrInvalidOption, "limit must be positive, got %d", limit)
	}
	if cursor != nil && v2 && cursor.ID == "" {
		return Page{}, errors.Wrap(bookmarkx.ErrInvalidCursor, "cursor is missing the id")
	}

	entries := m.Entries()
	start := 0
	if cursor != nil {
		start = len(entries)
		for i, info := range entries {
			if matchesCursor(info, *cursor, v2) {
				start = i
				break
			}
		}
	}

	// One extra entry tells whether there is a next page.
	end := min(start+limit+1, len(entries))
	window := entries[start:end]

	var page Page
	if len(window) == limit+1 {
		last := window[limit]
		window = window[:limit]
		page.Next = &Cursor{}
		if last.CreatedAt != nil {
			page.Next.CreatedAt = *last.CreatedAt
		}
		if v2 {
			page.Next.ID = last.ID
		}
	}

	page.IDs = make([]string, 0, len(window))
	for _, info := range window {
		page.IDs = append(page.IDs, info.ID)
	}
	return page, nil
}

func matchesCursor(info resultmap.SearchInfo, cursor Cursor, v2 bool) bool {
	if v2 {
		return info.ID == cursor.ID
	}
	return info.CreatedAt != nil && info.CreatedAt.Equal(cursor.CreatedAt)
}
