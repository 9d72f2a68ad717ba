package inmemory

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"

	"github.com/letmevibethatforyou/bookmarkx"
)

// Store implements bookmarkx.Store over maps. Ids are returned in insertion
// order.
type Store struct {
	mu        sync.RWMutex
	bookmarks map[string]bookmarkx.Bookmark
	order     []string
	tags      map[string]ownedTag
	lists     map[string]*list
	now       func() time.Time
}

type ownedTag struct {
	userID string
	tag    bookmarkx.Tag
}

type list struct {
	userID  string
	members []string
}

// NewStore creates an empty store. It is safe for concurrent use.
func NewStore() *Store {
	return &Store{
		bookmarks: make(map[string]bookmarkx.Bookmark),
		tags:      make(map[string]ownedTag),
		lists:     make(map[string]*list),
		now:       time.Now,
	}
}

// AddBookmark inserts or replaces a bookmark and returns the stored record.
// A missing id is generated, a zero CreatedAt becomes now and an empty type
// becomes link. Tags without an id are matched by name among the user's tags
// or created.
func (s *Store) AddBookmark(b bookmarkx.Bookmark) (bookmarkx.Bookmark, error) {
	if b.UserID == "" {
		return bookmarkx.Bookmark{}, errors.WithStack(bookmarkx.ErrMissingUser)
	}
	if b.Type == "" {
		b.Type = bookmarkx.TypeLink
	}
	if _, err := bookmarkx.ParseBookmarkType(string(b.Type)); err != nil {
		return bookmarkx.Bookmark{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = ksuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	if existing, ok := s.bookmarks[b.ID]; ok && existing.UserID != b.UserID {
		return bookmarkx.Bookmark{}, errors.Newf("bookmark %s belongs to another user", b.ID)
	}

	tags := make([]bookmarkx.Tag, 0, len(b.Tags))
	for _, tag := range b.Tags {
		tags = append(tags, s.upsertTag(b.UserID, tag))
	}
	b.Tags = tags

	if _, ok := s.bookmarks[b.ID]; !ok {
		s.order = append(s.order, b.ID)
	}
	s.bookmarks[b.ID] = b
	return b, nil
}

// upsertTag must be called with the write lock held.
func (s *Store) upsertTag(userID string, tag bookmarkx.Tag) bookmarkx.Tag {
	if tag.ID == "" {
		for _, owned := range s.tags {
			if owned.userID == userID && owned.tag.Name == tag.Name {
				return owned.tag
			}
		}
		tag.ID = ksuid.New().String()
	}
	s.tags[tag.ID] = ownedTag{userID: userID, tag: tag}
	return tag
}

// RemoveBookmark deletes a bookmark and its list memberships.
func (s *Store) RemoveBookmark(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookmarks[id]; !ok {
		return false
	}
	delete(s.bookmarks, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	for _, l := range s.lists {
		l.members = slices.DeleteFunc(l.members, func(v string) bool { return v == id })
	}
	return true
}

// AddToList adds bookmarks to a list of the user, creating the list on first use.
func (s *Store) AddToList(userID, listID string, bookmarkIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lists[listID]
	if !ok {
		l = &list{userID: userID}
		s.lists[listID] = l
	}
	if l.userID != userID {
		return errors.Newf("list %s belongs to another user", listID)
	}
	for _, id := range bookmarkIDs {
		if !slices.Contains(l.members, id) {
			l.members = append(l.members, id)
		}
	}
	return nil
}

// Fixture is the JSON shape accepted by Load.
type Fixture struct {
	Bookmarks []bookmarkx.Bookmark `json:"bookmarks"`
	Lists     []FixtureList        `json:"lists"`
}

// FixtureList is one list of a Fixture.
type FixtureList struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	BookmarkIDs []string `json:"bookmarkIds"`
}

// Load reads a JSON Fixture into the store and returns the stored bookmarks.
func (s *Store) Load(r io.Reader) ([]bookmarkx.Bookmark, error) {
	var fixture Fixture
	if err := json.NewDecoder(r).Decode(&fixture); err != nil {
		return nil, errors.Wrap(err, "failed to decode fixture")
	}

	stored := make([]bookmarkx.Bookmark, 0, len(fixture.Bookmarks))
	for _, b := range fixture.Bookmarks {
		added, err := s.AddBookmark(b)
		if err != nil {
			return nil, errors.Wrapf(err, "bookmark %q", b.ID)
		}
		stored = append(stored, added)
	}
	for _, l := range fixture.Lists {
		if err := s.AddToList(l.UserID, l.ID, l.BookmarkIDs...); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

// selectIDs returns, in insertion order, the user's bookmarks accepted by keep.
func (s *Store) selectIDs(ctx context.Context, userID string, keep func(bookmarkx.Bookmark) bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.order {
		b := s.bookmarks[id]
		if b.UserID == userID && keep(b) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// AllBookmarkIDs implements bookmarkx.Store.
func (s *Store) AllBookmarkIDs(ctx context.Context, userID string) ([]string, error) {
	return s.selectIDs(ctx, userID, func(bookmarkx.Bookmark) bool { return true })
}

// BookmarkIDsByFlag implements bookmarkx.Store.
func (s *Store) BookmarkIDsByFlag(ctx context.Context, userID string, flag bookmarkx.Flag, value bool) ([]string, error) {
	switch flag {
	case bookmarkx.FlagArchived:
		return s.selectIDs(ctx, userID, func(b bookmarkx.Bookmark) bool { return b.Archived == value })
	case bookmarkx.FlagFavourited:
		return s.selectIDs(ctx, userID, func(b bookmarkx.Bookmark) bool { return b.Favourited == value })
	}
	return nil, errors.Wrapf(bookmarkx.ErrInvalidExpression, "unknown flag %q", flag)
}

// BookmarkIDsByType implements bookmarkx.Store.
func (s *Store) BookmarkIDsByType(ctx context.Context, userID string, t bookmarkx.BookmarkType) ([]string, error) {
	return s.selectIDs(ctx, userID, func(b bookmarkx.Bookmark) bool { return b.Type == t })
}

// BookmarkIDsByCreatedAt implements bookmarkx.Store.
func (s *Store) BookmarkIDsByCreatedAt(ctx context.Context, userID string, op bookmarkx.Operator, t time.Time) ([]string, error) {
	var keep func(c int) bool
	switch op {
	case bookmarkx.OpEq:
		keep = func(c int) bool { return c == 0 }
	case bookmarkx.OpGt:
		keep = func(c int) bool { return c > 0 }
	case bookmarkx.OpGte:
		keep = func(c int) bool { return c >= 0 }
	case bookmarkx.OpLt:
		keep = func(c int) bool { return c < 0 }
	case bookmarkx.OpLte:
		keep = func(c int) bool { return c <= 0 }
	default:
		return nil, errors.Wrapf(bookmarkx.ErrInvalidExpression, "unknown operator %q", op)
	}
	return s.selectIDs(ctx, userID, func(b bookmarkx.Bookmark) bool { return keep(b.CreatedAt.Compare(t)) })
}

// TagIDsByName implements bookmarkx.Store.
func (s *Store) TagIDsByName(ctx context.Context, userID string, names []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, owned := range s.tags {
		if owned.userID == userID && slices.Contains(names, owned.tag.Name) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// BookmarkIDsWithTags implements bookmarkx.Store.
func (s *Store) BookmarkIDsWithTags(ctx context.Context, userID string, tagIDs []string) ([]string, error) {
	return s.selectIDs(ctx, userID, func(b bookmarkx.Bookmark) bool {
		return slices.ContainsFunc(b.Tags, func(t bookmarkx.Tag) bool {
			return slices.Contains(tagIDs, t.ID)
		})
	})
}

// ListBookmarkIDs implements bookmarkx.Store.
func (s *Store) ListBookmarkIDs(ctx context.Context, userID, listID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lists[listID]
	if !ok || l.userID != userID {
		return nil, nil
	}
	var ids []string
	for _, id := range l.members {
		if b, ok := s.bookmarks[id]; ok && b.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// OwnedBookmarkIDs implements bookmarkx.Store.
func (s *Store) OwnedBookmarkIDs(ctx context.Context, userID string, ids []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []string
	for _, id := range ids {
		if b, ok := s.bookmarks[id]; ok && b.UserID == userID {
			owned = append(owned, id)
		}
	}
	return owned, nil
}

// SortFields implements bookmarkx.Store.
func (s *Store) SortFields(ctx context.Context, userID string, ids []string) ([]bookmarkx.SortFields, error) {
	bookmarks, err := s.Bookmarks(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	fields := make([]bookmarkx.SortFields, 0, len(bookmarks))
	for _, b := range bookmarks {
		fields = append(fields, b.SortFields())
	}
	return fields, nil
}

// Bookmarks implements bookmarkx.Store.
func (s *Store) Bookmarks(ctx context.Context, userID string, ids []string) ([]bookmarkx.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []bookmarkx.Bookmark
	for _, id := range ids {
		if b, ok := s.bookmarks[id]; ok && b.UserID == userID {
			b.Tags = slices.Clone(b.Tags)
			out = append(out, b)
		}
	}
	return out, nil
}
