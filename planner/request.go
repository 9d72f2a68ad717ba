// Package planner turns a bookmark search request into an expression tree,
// runs it and returns one page of hydrated bookmarks.
package planner

import (
	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/query"
)

const (
	// DefaultLimit is the page size when a request does not set one.
	DefaultLimit = 50
	// MaxLimit is the largest page size a request may ask for.
	MaxLimit = 100
)

// Request is a bookmark search.
//
// In simple mode the first set field among ListID, TagID, Archived,
// Favourited, IDs and Text selects the filter; with none set every bookmark
// matches. In advanced mode Text is query language, and empty text matches
// every bookmark.
type Request struct {
	Text       string   `json:"text,omitempty"`
	Advanced   bool     `json:"advanced,omitempty"`
	IDs        []string `json:"ids,omitempty"`
	ListID     string   `json:"listId,omitempty"`
	TagID      string   `json:"tagId,omitempty"`
	Archived   bool     `json:"archived,omitempty"`
	Favourited bool     `json:"favourited,omitempty"`

	Cursor      *Cursor `json:"cursor,omitempty"`
	Limit       int     `json:"limit,omitempty"`
	UseCursorV2 bool    `json:"useCursorV2,omitempty"`
}

// Validate checks the request bounds.
func (r Request) Validate() error {
	if r.Limit < 0 || r.Limit > MaxLimit {
		return errors.Wrapf(bookmarkx.ErrInvalidOption, "limit must be between 0 and %d, got %d", MaxLimit, r.Limit)
	}
	if r.Cursor != nil && r.UseCursorV2 && r.Cursor.ID == "" {
		return errors.Wrap(bookmarkx.ErrInvalidCursor, "cursor is missing the id")
	}
	return nil
}

func (r Request) limit() int {
	if r.Limit == 0 {
		return DefaultLimit
	}
	return r.Limit
}

// simpleQuery maps the first set simple filter onto a single node query.
func (r Request) simpleQuery() query.Query {
	var expr query.Node
	switch {
	case r.ListID != "":
		expr = query.ListEquals{ListID: r.ListID}
	case r.TagID != "":
		expr = query.TagsIn{Tags: []string{r.TagID}, ByID: true}
	case r.Archived:
		expr = query.ArchivedIs{Value: true}
	case r.Favourited:
		expr = query.FavouriteIs{Value: true}
	case r.IDs != nil:
		expr = query.NewSearchByID(r.IDs)
	case r.Text != "":
		expr = query.TextSearch{Text: r.Text}
	default:
		expr = query.SelectAll{}
	}
	return query.NewQuery(expr, query.OrderBy{})
}
