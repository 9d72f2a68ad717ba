package planner

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/inmemory"
)

func createdOn(d int) time.Time {
	return time.Date(2024, 5, d, 9, 0, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T) (*Engine, *inmemory.Store) {
	t.Helper()
	store := inmemory.NewStore()
	index := inmemory.New()
	goTag := bookmarkx.Tag{ID: "t-go", Name: "go"}

	bookmarks := []bookmarkx.Bookmark{
		{ID: "b1", Title: "Effective Go", Favourited: true, Tags: []bookmarkx.Tag{goTag}},
		{ID: "b2", Title: "SQL joins"},
		{ID: "b3", Title: "Rust book", Type: bookmarkx.TypeText, Tags: []bookmarkx.Tag{goTag}},
		{ID: "b4", Title: "Archived post", Archived: true},
		{ID: "b5", Title: "Kafka design", Type: bookmarkx.TypeAsset},
		{ID: "b6", Title: "Old news", Archived: true},
		{ID: "b7", Title: "Go memory model", Favourited: true},
	}
	for i, b := range bookmarks {
		b.UserID = "u1"
		b.CreatedAt = createdOn(i + 1)
		stored, err := store.AddBookmark(b)
		if err != nil {
			t.Fatalf("AddBookmark failed: %v", err)
		}
		index.Index(stored.IndexDocument())
	}
	if _, err := store.AddBookmark(bookmarkx.Bookmark{ID: "other", UserID: "u2", Title: "Go elsewhere", CreatedAt: createdOn(1)}); err != nil {
		t.Fatalf("AddBookmark failed: %v", err)
	}
	if err := store.AddToList("u1", "l1", "b2", "b5"); err != nil {
		t.Fatalf("AddToList failed: %v", err)
	}

	return NewEngine(store, index), store
}

func bookmarkIDs(bookmarks []bookmarkx.Bookmark) []string {
	ids := make([]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestPerformSearchPlans(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	tests := map[string]struct {
		req      Request
		expected []string
	}{
		"select_all": {
			req:      Request{},
			expected: []string{"b7", "b6", "b5", "b4", "b3", "b2", "b1"},
		},
		"list": {
			req:      Request{ListID: "l1"},
			expected: []string{"b5", "b2"},
		},
		"tag_by_id": {
			req:      Request{TagID: "t-go"},
			expected: []string{"b3", "b1"},
		},
		"archived": {
			req:      Request{Archived: true},
			expected: []string{"b6", "b4"},
		},
		"favourited": {
			req:      Request{Favourited: true},
			expected: []string{"b7", "b1"},
		},
		"ids_drop_vanished": {
			req:      Request{IDs: []string{"b2", "gone", "b7", "other"}},
			expected: []string{"b7", "b2"},
		},
		"text": {
			req:      Request{Text: "rust"},
			expected: []string{"b3"},
		},
		"list_wins_over_flags": {
			req:      Request{ListID: "l1", Favourited: true, Text: "go"},
			expected: []string{"b5", "b2"},
		},
		"archived_wins_over_favourited": {
			req:      Request{Archived: true, Favourited: true},
			expected: []string{"b6", "b4"},
		},
		"advanced_empty_text": {
			req:      Request{Advanced: true, Text: "  "},
			expected: []string{"b7", "b6", "b5", "b4", "b3", "b2", "b1"},
		},
		"advanced": {
			req:      Request{Advanced: true, Text: `favourite=true order by createdDate asc`},
			expected: []string{"b1", "b7"},
		},
		"advanced_text_and_filter": {
			req:      Request{Advanced: true, Text: `text="go" and tags not in ["go"]`},
			expected: []string{"b7"},
		},
		"advanced_no_match": {
			req:      Request{Advanced: true, Text: `list="nope"`},
			expected: []string{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp, err := engine.PerformSearch(ctx, "u1", tt.req)
			if err != nil {
				t.Fatalf("PerformSearch failed: %v", err)
			}
			if got := bookmarkIDs(resp.Bookmarks); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			if resp.NextCursor != nil {
				t.Errorf("Expected no next cursor, got %+v", resp.NextCursor)
			}
			if resp.ErrorMessage != "" {
				t.Errorf("Unexpected error message %q", resp.ErrorMessage)
			}
		})
	}
}

func TestPerformSearchCursorWalk(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	all := []string{"b7", "b6", "b5", "b4", "b3", "b2", "b1"}

	for _, limit := range []int{1, 2, 3, 6, 7, 10} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			var (
				seen   []string
				cursor *Cursor
				pages  int
			)
			for {
				resp, err := engine.PerformSearch(ctx, "u1", Request{Limit: limit, Cursor: cursor, UseCursorV2: true})
				if err != nil {
					t.Fatalf("PerformSearch failed: %v", err)
				}
				if len(resp.Bookmarks) > limit {
					t.Fatalf("Page of %d exceeds limit %d", len(resp.Bookmarks), limit)
				}
				seen = append(seen, bookmarkIDs(resp.Bookmarks)...)
				pages++
				if resp.NextCursor == nil {
					break
				}
				if resp.NextCursor.ID == "" {
					t.Fatal("Expected a v2 cursor with an id")
				}
				if pages > len(all) {
					t.Fatal("Pagination did not terminate")
				}
				cursor = resp.NextCursor
			}
			if !reflect.DeepEqual(seen, all) {
				t.Errorf("Expected %v across pages, got %v", all, seen)
			}
			if want := (len(all) + limit - 1) / limit; pages != want {
				t.Errorf("Expected %d pages, got %d", want, pages)
			}
		})
	}
}

func TestPerformSearchLegacyCursor(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.PerformSearch(ctx, "u1", Request{Limit: 2})
	if err != nil {
		t.Fatalf("PerformSearch failed: %v", err)
	}
	if first.NextCursor == nil || !first.NextCursor.Legacy() {
		t.Fatalf("Expected a legacy cursor, got %+v", first.NextCursor)
	}
	if !first.NextCursor.CreatedAt.Equal(createdOn(5)) {
		t.Errorf("Expected cursor at b5's creation time, got %v", first.NextCursor.CreatedAt)
	}

	second, err := engine.PerformSearch(ctx, "u1", Request{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("PerformSearch failed: %v", err)
	}
	if got, want := bookmarkIDs(second.Bookmarks), []string{"b5", "b4"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestPerformSearchSyntaxError(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp, err := engine.PerformSearch(context.Background(), "u1", Request{Advanced: true, Text: `favourite=maybe`})
	if err != nil {
		t.Fatalf("Expected syntax errors to be reported in the response, got %v", err)
	}
	if len(resp.Bookmarks) != 0 || resp.NextCursor != nil {
		t.Errorf("Expected an empty page, got %+v", resp)
	}
	if !strings.HasPrefix(resp.ErrorMessage, "Line 1, col 11:") {
		t.Errorf("Unexpected error message %q", resp.ErrorMessage)
	}
}

func TestPerformSearchErrors(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	tests := map[string]struct {
		userID string
		req    Request
		target error
	}{
		"missing_user": {
			req:    Request{},
			target: bookmarkx.ErrMissingUser,
		},
		"limit_too_large": {
			userID: "u1",
			req:    Request{Limit: MaxLimit + 1},
			target: bookmarkx.ErrInvalidOption,
		},
		"negative_limit": {
			userID: "u1",
			req:    Request{Limit: -1},
			target: bookmarkx.ErrInvalidOption,
		},
		"v2_cursor_without_id": {
			userID: "u1",
			req:    Request{Cursor: &Cursor{CreatedAt: createdOn(3)}, UseCursorV2: true},
			target: bookmarkx.ErrInvalidCursor,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := engine.PerformSearch(ctx, tt.userID, tt.req)
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestPerformSearchStaleCursor(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.PerformSearch(ctx, "u1", Request{Limit: 3, UseCursorV2: true})
	if err != nil {
		t.Fatalf("PerformSearch failed: %v", err)
	}
	if first.NextCursor == nil || first.NextCursor.ID != "b4" {
		t.Fatalf("Expected cursor at b4, got %+v", first.NextCursor)
	}

	store.RemoveBookmark("b4")
	second, err := engine.PerformSearch(ctx, "u1", Request{Limit: 3, Cursor: first.NextCursor, UseCursorV2: true})
	if err != nil {
		t.Fatalf("PerformSearch failed: %v", err)
	}
	if len(second.Bookmarks) != 0 || second.NextCursor != nil {
		t.Errorf("Expected an empty last page, got %v", bookmarkIDs(second.Bookmarks))
	}
}

// reversingStore returns hydrated bookmarks in reverse order and drops one.
type reversingStore struct {
	*inmemory.Store
	drop string
}

func (s reversingStore) Bookmarks(ctx context.Context, userID string, ids []string) ([]bookmarkx.Bookmark, error) {
	loaded, err := s.Store.Bookmarks(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]bookmarkx.Bookmark, 0, len(loaded))
	for i := len(loaded) - 1; i >= 0; i-- {
		if loaded[i].ID != s.drop {
			out = append(out, loaded[i])
		}
	}
	return out, nil
}

func TestHydrationKeepsPageOrder(t *testing.T) {
	_, store := newTestEngine(t)
	engine := NewEngine(reversingStore{Store: store, drop: "b5"}, nil)

	resp, err := engine.PerformSearch(context.Background(), "u1", Request{Limit: 4, UseCursorV2: true})
	if err != nil {
		t.Fatalf("PerformSearch failed: %v", err)
	}
	if got, want := bookmarkIDs(resp.Bookmarks), []string{"b7", "b6", "b4"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if resp.NextCursor == nil || resp.NextCursor.ID != "b3" {
		t.Errorf("Expected cursor at b3, got %+v", resp.NextCursor)
	}
}
