package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/internal/ddb"
)

// PutBookmark writes a bookmark and its tags. The bookmark must carry an id,
// a user and tags with ids; an empty type is stored as link.
func (s *Store) PutBookmark(ctx context.Context, b bookmarkx.Bookmark) (err error) {
	ctx, span := s.startSpan(ctx, "put_bookmark", b.UserID, attribute.String("bookmarkx.bookmark_id", b.ID))
	defer func() { endSpan(span, err) }()

	if b.UserID == "" {
		return errors.WithStack(bookmarkx.ErrMissingUser)
	}
	if b.ID == "" {
		return errors.Wrap(bookmarkx.ErrInvalidOption, "bookmark id is empty")
	}
	if b.Type == "" {
		b.Type = bookmarkx.TypeLink
	}
	if _, err := bookmarkx.ParseBookmarkType(string(b.Type)); err != nil {
		return err
	}

	for _, tag := range b.Tags {
		if tag.ID == "" {
			return errors.Wrapf(bookmarkx.ErrInvalidOption, "tag %q has no id", tag.Name)
		}
		if err := s.put(ctx, ddb.NewTagItem(b.UserID, tag)); err != nil {
			return err
		}
	}
	return s.put(ctx, ddb.NewBookmarkItem(b))
}

// AddToList records list membership for bookmarkIDs.
func (s *Store) AddToList(ctx context.Context, userID, listID string, bookmarkIDs ...string) (err error) {
	ctx, span := s.startSpan(ctx, "add_to_list", userID,
		attribute.String("bookmarkx.list_id", listID),
		attribute.Int("bookmarkx.id_count", len(bookmarkIDs)),
	)
	defer func() { endSpan(span, err) }()

	if listID == "" {
		return errors.Wrap(bookmarkx.ErrInvalidOption, "list id is empty")
	}
	for _, id := range bookmarkIDs {
		if err := s.put(ctx, ddb.NewListMemberItem(userID, listID, id)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBookmark removes a bookmark item. List memberships pointing at it are
// left behind and filtered out on read.
func (s *Store) DeleteBookmark(ctx context.Context, userID, bookmarkID string) (err error) {
	ctx, span := s.startSpan(ctx, "delete_bookmark", userID, attribute.String("bookmarkx.bookmark_id", bookmarkID))
	defer func() { endSpan(span, err) }()

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       ddb.Key(ddb.UserKey(userID), ddb.BookmarkKey(bookmarkID)),
	})
	if err != nil {
		return bookmarkx.WrapBackendError(err, "delete bookmark %s", bookmarkID)
	}
	return nil
}

func (s *Store) put(ctx context.Context, item interface{}) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %T", item)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return bookmarkx.WrapBackendError(err, "put item into table %s", s.tableName)
	}
	return nil
}
