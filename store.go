package bookmarkx

import (
	"context"
	"time"
)

// Store is the relational side of the query engine. Every method is scoped to
// the given user; ids belonging to other users are never returned.
// Order of returned ids is the store's visitation order.
type Store interface {
	// AllBookmarkIDs returns every bookmark owned by the user.
	AllBookmarkIDs(ctx context.Context, userID string) ([]string, error)

	// BookmarkIDsByFlag returns bookmarks whose flag column equals value.
	BookmarkIDsByFlag(ctx context.Context, userID string, flag Flag, value bool) ([]string, error)

	// BookmarkIDsByType returns bookmarks of the given type.
	BookmarkIDsByType(ctx context.Context, userID string, t BookmarkType) ([]string, error)

	// BookmarkIDsByCreatedAt returns bookmarks whose creation time compares
	// to t with op.
	BookmarkIDsByCreatedAt(ctx context.Context, userID string, op Operator, t time.Time) ([]string, error)

	// TagIDsByName resolves tag names to ids.
	TagIDsByName(ctx context.Context, userID string, names []string) ([]string, error)

	// BookmarkIDsWithTags returns distinct bookmarks linked to any of tagIDs.
	BookmarkIDsWithTags(ctx context.Context, userID string, tagIDs []string) ([]string, error)

	// ListBookmarkIDs returns the members of a list.
	ListBookmarkIDs(ctx context.Context, userID, listID string) ([]string, error)

	// OwnedBookmarkIDs filters ids down to the ones that still exist for the user,
	// keeping their input order.
	OwnedBookmarkIDs(ctx context.Context, userID string, ids []string) ([]string, error)

	// SortFields loads the ordering projection for ids. Missing ids are absent
	// from the result.
	SortFields(ctx context.Context, userID string, ids []string) ([]SortFields, error)

	// Bookmarks hydrates full records for ids in no particular order.
	Bookmarks(ctx context.Context, userID string, ids []string) ([]Bookmark, error)
}
