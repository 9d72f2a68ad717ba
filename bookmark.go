package bookmarkx

import (
	"time"

	"github.com/cockroachdb/errors"
)

// BookmarkType is the kind of content a bookmark holds.
type BookmarkType string

const (
	// TypeLink is a saved web page.
	TypeLink BookmarkType = "link"
	// TypeText is a free-form note.
	TypeText BookmarkType = "text"
	// TypeAsset is an uploaded file (image, pdf).
	TypeAsset BookmarkType = "asset"
)

// ParseBookmarkType validates a bookmark type literal.
func ParseBookmarkType(s string) (BookmarkType, error) {
	switch t := BookmarkType(s); t {
	case TypeLink, TypeText, TypeAsset:
		return t, nil
	}
	return "", errors.Wrapf(ErrInvalidExpression, "unknown bookmark type %q", s)
}

// Rank gives the fixed sort position of the type: link < text < asset.
// Unknown or unloaded types rank 0.
func (t BookmarkType) Rank() int {
	switch t {
	case TypeLink:
		return 1
	case TypeText:
		return 2
	case TypeAsset:
		return 3
	}
	return 0
}

// Flag names a boolean bookmark column that can be filtered on.
type Flag string

const (
	FlagArchived   Flag = "archived"
	FlagFavourited Flag = "favourited"
)

// Tag is a user-scoped label attached to bookmarks.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Bookmark is a fully hydrated bookmark record.
type Bookmark struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Type        BookmarkType `json:"type"`
	Title       string       `json:"title,omitempty"`
	Note        string       `json:"note,omitempty"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Content     string       `json:"content,omitempty"`
	AssetID     string       `json:"assetId,omitempty"`
	FileName    string       `json:"fileName,omitempty"`
	Archived    bool         `json:"archived"`
	Favourited  bool         `json:"favourited"`
	CreatedAt   time.Time    `json:"createdAt"`
	Tags        []Tag        `json:"tags"`
}

// SortFields is the projection loaded right before sorting a result set.
type SortFields struct {
	ID         string
	CreatedAt  time.Time
	Archived   bool
	Favourited bool
	Type       BookmarkType
}

// SortFields projects the bookmark onto the columns used for ordering.
func (b Bookmark) SortFields() SortFields {
	return SortFields{
		ID:         b.ID,
		CreatedAt:  b.CreatedAt,
		Archived:   b.Archived,
		Favourited: b.Favourited,
		Type:       b.Type,
	}
}

// IndexDocument is the document stored in the full-text index for a bookmark.
type IndexDocument struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	URL         string   `json:"url,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Content     string   `json:"content,omitempty"`
	Note        string   `json:"note,omitempty"`
	FileName    string   `json:"fileName,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	Tags        []string `json:"tags"`

	createdAtUnix int64
}

// IndexDocument builds the full-text document for the bookmark.
func (b Bookmark) IndexDocument() IndexDocument {
	tags := make([]string, 0, len(b.Tags))
	for _, t := range b.Tags {
		tags = append(tags, t.Name)
	}
	return IndexDocument{
		ID:            b.ID,
		UserID:        b.UserID,
		URL:           b.URL,
		Title:         b.Title,
		Description:   b.Description,
		Content:       b.Content,
		Note:          b.Note,
		FileName:      b.FileName,
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
		Tags:          tags,
		createdAtUnix: b.CreatedAt.Unix(),
	}
}

// Object returns the document as a generic field map keyed by objectID,
// the shape expected by Algolia and the in-memory index.
func (d IndexDocument) Object() map[string]interface{} {
	obj := map[string]interface{}{
		"objectID":      d.ID,
		"id":            d.ID,
		"userId":        d.UserID,
		"createdAt":     d.CreatedAt,
		"createdAtUnix": d.createdAtUnix,
		"tags":          d.Tags,
	}
	for k, v := range map[string]string{
		"url":         d.URL,
		"title":       d.Title,
		"description": d.Description,
		"content":     d.Content,
		"note":        d.Note,
		"fileName":    d.FileName,
	} {
		if v != "" {
			obj[k] = v
		}
	}
	return obj
}
