package ddb

import (
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/bookmarkx"
)

// Single table layout. Every item of a user lives in the partition
// USER#<userId>; the sort key tells the item kinds apart:
//
//	BOOKMARK#<bookmarkId>              bookmark
//	TAG#<tagId>                        tag
//	LIST#<listId>#BOOKMARK#<bookmarkId> list membership
const (
	userPrefix     = "USER#"
	BookmarkPrefix = "BOOKMARK#"
	TagPrefix      = "TAG#"
	ListPrefix     = "LIST#"
)

// Item kinds stored in the kind attribute.
const (
	KindBookmark   = "bookmark"
	KindTag        = "tag"
	KindListMember = "listMember"
)

// UserKey is the partition key of a user.
func UserKey(userID string) string {
	return userPrefix + userID
}

// BookmarkKey is the sort key of a bookmark item.
func BookmarkKey(bookmarkID string) string {
	return BookmarkPrefix + bookmarkID
}

// TagKey is the sort key of a tag item.
func TagKey(tagID string) string {
	return TagPrefix + tagID
}

// ListMembersPrefix is the sort key prefix shared by the members of a list.
func ListMembersPrefix(listID string) string {
	return ListPrefix + listID + "#" + BookmarkPrefix
}

// ListMemberKey is the sort key of a list membership item.
func ListMemberKey(listID, bookmarkID string) string {
	return ListMembersPrefix(listID) + bookmarkID
}

// Key builds the primary key attribute map of an item.
func Key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

// TagRef is the denormalized copy of a tag kept on bookmark items.
type TagRef struct {
	ID   string `dynamodbav:"id"`
	Name string `dynamodbav:"name"`
}

// BookmarkItem is the stored form of a bookmark. CreatedAt is in unix
// milliseconds so it can be compared in filter expressions.
type BookmarkItem struct {
	PK          string   `dynamodbav:"pk"`
	SK          string   `dynamodbav:"sk"`
	Kind        string   `dynamodbav:"kind"`
	ID          string   `dynamodbav:"id"`
	UserID      string   `dynamodbav:"userId"`
	Type        string   `dynamodbav:"type"`
	Title       string   `dynamodbav:"title,omitempty"`
	Note        string   `dynamodbav:"note,omitempty"`
	URL         string   `dynamodbav:"url,omitempty"`
	Description string   `dynamodbav:"description,omitempty"`
	Content     string   `dynamodbav:"content,omitempty"`
	AssetID     string   `dynamodbav:"assetId,omitempty"`
	FileName    string   `dynamodbav:"fileName,omitempty"`
	Archived    bool     `dynamodbav:"archived"`
	Favourited  bool     `dynamodbav:"favourited"`
	CreatedAt   int64    `dynamodbav:"createdAt"`
	TagIDs      []string `dynamodbav:"tagIds,stringset,omitempty"`
	Tags        []TagRef `dynamodbav:"tags,omitempty"`
}

// NewBookmarkItem converts a bookmark into its stored form.
func NewBookmarkItem(b bookmarkx.Bookmark) BookmarkItem {
	item := BookmarkItem{
		PK:          UserKey(b.UserID),
		SK:          BookmarkKey(b.ID),
		Kind:        KindBookmark,
		ID:          b.ID,
		UserID:      b.UserID,
		Type:        string(b.Type),
		Title:       b.Title,
		Note:        b.Note,
		URL:         b.URL,
		Description: b.Description,
		Content:     b.Content,
		AssetID:     b.AssetID,
		FileName:    b.FileName,
		Archived:    b.Archived,
		Favourited:  b.Favourited,
		CreatedAt:   b.CreatedAt.UnixMilli(),
	}
	for _, t := range b.Tags {
		item.TagIDs = append(item.TagIDs, t.ID)
		item.Tags = append(item.Tags, TagRef{ID: t.ID, Name: t.Name})
	}
	return item
}

// Bookmark converts the stored form back into a bookmark.
func (i BookmarkItem) Bookmark() bookmarkx.Bookmark {
	b := bookmarkx.Bookmark{
		ID:          i.ID,
		UserID:      i.UserID,
		Type:        bookmarkx.BookmarkType(i.Type),
		Title:       i.Title,
		Note:        i.Note,
		URL:         i.URL,
		Description: i.Description,
		Content:     i.Content,
		AssetID:     i.AssetID,
		FileName:    i.FileName,
		Archived:    i.Archived,
		Favourited:  i.Favourited,
		CreatedAt:   CreatedAtTime(i.CreatedAt),
		Tags:        make([]bookmarkx.Tag, 0, len(i.Tags)),
	}
	for _, t := range i.Tags {
		b.Tags = append(b.Tags, bookmarkx.Tag{ID: t.ID, Name: t.Name})
	}
	return b
}

// SortFields projects the stored form onto the ordering columns.
func (i BookmarkItem) SortFields() bookmarkx.SortFields {
	return bookmarkx.SortFields{
		ID:         i.ID,
		CreatedAt:  CreatedAtTime(i.CreatedAt),
		Archived:   i.Archived,
		Favourited: i.Favourited,
		Type:       bookmarkx.BookmarkType(i.Type),
	}
}

// CreatedAtTime converts a stored creation time to UTC.
func CreatedAtTime(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}

// TagItem is the stored form of a tag.
type TagItem struct {
	PK     string `dynamodbav:"pk"`
	SK     string `dynamodbav:"sk"`
	Kind   string `dynamodbav:"kind"`
	ID     string `dynamodbav:"id"`
	UserID string `dynamodbav:"userId"`
	Name   string `dynamodbav:"name"`
}

// NewTagItem builds the stored form of a user's tag.
func NewTagItem(userID string, t bookmarkx.Tag) TagItem {
	return TagItem{
		PK:     UserKey(userID),
		SK:     TagKey(t.ID),
		Kind:   KindTag,
		ID:     t.ID,
		UserID: userID,
		Name:   t.Name,
	}
}

// ListMemberItem records that a bookmark belongs to a list.
type ListMemberItem struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	Kind       string `dynamodbav:"kind"`
	ListID     string `dynamodbav:"listId"`
	BookmarkID string `dynamodbav:"bookmarkId"`
	UserID     string `dynamodbav:"userId"`
}

// NewListMemberItem builds a list membership item.
func NewListMemberItem(userID, listID, bookmarkID string) ListMemberItem {
	return ListMemberItem{
		PK:         UserKey(userID),
		SK:         ListMemberKey(listID, bookmarkID),
		Kind:       KindListMember,
		ListID:     listID,
		BookmarkID: bookmarkID,
		UserID:     userID,
	}
}

// IsBookmarkKey reports whether a sort key addresses a bookmark item.
func IsBookmarkKey(sk string) bool {
	return strings.HasPrefix(sk, BookmarkPrefix)
}

// UnmarshalBookmark decodes a stored bookmark. ok is false when the item is
// some other kind.
func UnmarshalBookmark(image map[string]types.AttributeValue) (item BookmarkItem, ok bool, err error) {
	if err := attributevalue.UnmarshalMap(image, &item); err != nil {
		return BookmarkItem{}, false, errors.Wrap(err, "failed to unmarshal bookmark item")
	}
	if !IsBookmarkKey(item.SK) {
		return BookmarkItem{}, false, nil
	}
	if item.ID == "" || item.UserID == "" {
		return BookmarkItem{}, false, errors.Newf("bookmark item %q is missing id or userId", item.SK)
	}
	return item, true, nil
}

// BookmarkIDFromKeys extracts the bookmark id from an item key. ok is false
// when the key does not address a bookmark.
func BookmarkIDFromKeys(keys map[string]types.AttributeValue) (id string, ok bool) {
	sk, isString := keys["sk"].(*types.AttributeValueMemberS)
	if !isString || !IsBookmarkKey(sk.Value) {
		return "", false
	}
	id = strings.TrimPrefix(sk.Value, BookmarkPrefix)
	return id, id != ""
}
