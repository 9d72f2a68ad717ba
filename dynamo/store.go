// Package dynamo implements bookmarkx.Store on a single DynamoDB table.
//
// Every read is a Query inside the user's partition or a BatchGetItem on
// bookmark keys, so no request ever touches another user's items. Ids come
// back in sort key order.
package dynamo

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/letmevibethatforyou/bookmarkx"
	"github.com/letmevibethatforyou/bookmarkx/internal/ddb"
)

const (
	// batchGetLimit is the BatchGetItem key limit.
	batchGetLimit = 100
	// inListLimit is the operand limit of the IN comparator.
	inListLimit = 100
	// maxUnprocessedRetries bounds the retries of throttled batch keys.
	maxUnprocessedRetries = 5
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ bookmarkx.Store = (*Store)(nil)

// Store implements bookmarkx.Store on DynamoDB.
type Store struct {
	client    Client
	tableName string
	tracer    trace.Tracer
	backoff   time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTracer sets the tracer used for store spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		s.tracer = tracer
	}
}

// WithRetryBackoff sets the base wait before unprocessed batch keys are retried.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Store) {
		s.backoff = d
	}
}

// NewStore creates a store on tableName.
func NewStore(client Client, tableName string, opts ...Option) *Store {
	s := &Store{
		client:    client,
		tableName: tableName,
		tracer:    otel.Tracer("bookmarkx-dynamo"),
		backoff:   50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) startSpan(ctx context.Context, operation, userID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("dynamodb.table_name", s.tableName),
		attribute.String("bookmarkx.user_id", userID),
	)
	return s.tracer.Start(ctx, "dynamo."+operation, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// filter is an optional filter expression of a bookmark query.
type filter struct {
	expression string
	names      map[string]string
	values     map[string]types.AttributeValue
}

// AllBookmarkIDs implements bookmarkx.Store.
func (s *Store) AllBookmarkIDs(ctx context.Context, userID string) (ids []string, err error) {
	ctx, span := s.startSpan(ctx, "all_bookmark_ids", userID)
	defer func() { endSpan(span, err) }()

	return s.queryBookmarkIDs(ctx, userID, filter{})
}

// BookmarkIDsByFlag implements bookmarkx.Store.
func (s *Store) BookmarkIDsByFlag(ctx context.Context, userID string, flag bookmarkx.Flag, value bool) (ids []string, err error) {
	ctx, span := s.startSpan(ctx, "bookmark_ids_by_flag", userID,
		attribute.String("bookmarkx.flag", string(flag)),
		attribute.Bool("bookmarkx.flag_value", value),
	)
	defer func() { endSpan(span, err) }()

	if flag != bookmarkx.FlagArchived && flag != bookmarkx.FlagFavourited {
		return nil, errors.Wrapf(bookmarkx.ErrInvalidExpression, "unknown flag %q", flag)
	}
	return s.queryBookmarkIDs(ctx, userID, filter{
		expression: "#flag = :value",
		names:      map[string]string{"#flag": string(flag)},
		values:     map[string]types.AttributeValue{":value": &types.AttributeValueMemberBOOL{Value: value}},
	})
}

// BookmarkIDsByType implements bookmarkx.Store.
func (s *Store) BookmarkIDsByType(ctx context.Context, userID string, t bookmarkx.BookmarkType) (ids []string, err error) {
	ctx, span := s.startSpan(ctx, "bookmark_ids_by_type", userID, attribute.String("bookmarkx.type", string(t)))
	defer func() { endSpan(span, err) }()

	return s.queryBookmarkIDs(ctx, userID, filter{
		expression: "#type = :type",
		names:      map[string]string{"#type": "type"},
		values:     map[string]types.AttributeValue{":type": &types.AttributeValueMemberS{Value: string(t)}},
	})
}

// BookmarkIDsByCreatedAt implements bookmarkx.Store. Creation times are
// compared at millisecond precision.
func (s *Store) BookmarkIDsByCreatedAt(ctx context.Context, userID string, op bookmarkx.Operator, t time.Time) (ids []string, err error) {
	ctx, span := s.startSpan(ctx, "bookmark_ids_by_created_at", userID,
		attribute.String("bookmarkx.operator", string(op)),
		attribute.String("bookmarkx.created_at", t.Format(time.RFC3339)),
	)
	defer func() { endSpan(span, err) }()

	switch op {
	case bookmarkx.OpEq, bookmarkx.OpGt, bookmarkx.OpGte, bookmarkx.OpLt, bookmarkx.OpLte:
	default:
		return nil, errors.Wrapf(bookmarkx.ErrInvalidExpression, "unknown operator %q", op)
	}
	return s.queryBookmarkIDs(ctx, userID, filter{
		expression: "#createdAt " + op.Symbol() + " :createdAt",
		names:      map[string]string{"#createdAt": "createdAt"},
		values: map[string]types.AttributeValue{
			":createdAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)},
		},
	})
}

// TagIDsByName implements bookmarkx.Store. The ids come back sorted.
func (s *Store) TagIDsByName(ctx context.Context, userID string, names []string) (ids []string, err error) {
	ctx, span := s.startSpan(ctx, "tag_ids_by_name", userID, attribute.Int("bookmarkx.tag_count", len(names)))
	defer func() { endSpan(span, err) }()

	for _, batch := range chunk(slices.Compact(slices.Sorted(slices.Values(names))), inListLimit) {
		placeholders, values := listValues(":n", batch)
		input := s.partitionQuery(userID, ddb.TagPrefix)
		input.FilterExpression = aws.String("#name IN (" + strings.Join(placeholders, ", ") + ")")
		input.ProjectionExpression = aws.String("#id")
		input.ExpressionAttributeNames = map[string]string{"#name": "name", "#id": "id"}
		maps.Copy(input.ExpressionAttributeValues, values)

		err := s.query(ctx, input, func(item map[string]types.AttributeValue) error {
			var tag struct {
				ID string `dynamodbav:"id"`
			}
			if err := attributevalue.UnmarshalMap(item, &tag); err != nil {
				return errors.Wrap(err, "failed to unmarshal tag item")
			}
			ids = append(ids, tag.ID)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// BookmarkIDsWithTags implements bookmarkx.Store.
func (s *Store) BookmarkIDsWithTags(ctx context.Context, userID string, tagIDs []string) (ids []string, err error) {
	ctx, span := s.startSpan(ctx, "bookmark_ids_with_tags", userID, attribute.Int("bookmarkx.tag_count", len(tagIDs)))
	defer func() { endSpan(span, err) }()

	seen := make(map[string]bool)
	for _, batch := range chunk(tagIDs, inListLimit) {
		placeholders, values := listValues(":t", batch)
		conditions := make([]string, 0, len(placeholders))
		for _, p := range placeholders {
			conditions = append(conditions, "contains(#tagIds, "+p+")")
		}
		found, err := s.queryBookmarkIDs(ctx, userID, filter{
			expression: strings.Join(conditions, " OR "),
			names:      map[string]string{"#tagIds": "tagIds"},
			values:     values,
		})
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ListBookmarkIDs implements bookmarkx.Store. Memberships of bookmarks that
// no longer exist are dropped.
func (s *Store) ListBookmarkIDs(ctx context.Context, userID, listID string) (ids []string, err error) {
	ctx, span := s.startSpan(ctx, "list_bookmark_ids", userID, attribute.String("bookmarkx.list_id", listID))
	defer func() { endSpan(span, err) }()

	input := s.partitionQuery(userID, ddb.ListMembersPrefix(listID))
	input.ProjectionExpression = aws.String("#bookmarkId")
	input.ExpressionAttributeNames = map[string]string{"#bookmarkId": "bookmarkId"}

	var members []string
	err = s.query(ctx, input, func(item map[string]types.AttributeValue) error {
		var member ddb.ListMemberItem
		if err := attributevalue.UnmarshalMap(item, &member); err != nil {
			return errors.Wrap(err, "failed to unmarshal list member item")
		}
		members = append(members, member.BookmarkID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	items, err := s.batchGet(ctx, userID, members, "id")
	if err != nil {
		return nil, err
	}
	return keepFound(members, items), nil
}

// OwnedBookmarkIDs implements bookmarkx.Store.
func (s *Store) OwnedBookmarkIDs(ctx context.Context, userID string, ids []string) (owned []string, err error) {
	ctx, span := s.startSpan(ctx, "owned_bookmark_ids", userID, attribute.Int("bookmarkx.id_count", len(ids)))
	defer func() { endSpan(span, err) }()

	items, err := s.batchGet(ctx, userID, ids, "id")
	if err != nil {
		return nil, err
	}
	return keepFound(ids, items), nil
}

// SortFields implements bookmarkx.Store.
func (s *Store) SortFields(ctx context.Context, userID string, ids []string) (fields []bookmarkx.SortFields, err error) {
	ctx, span := s.startSpan(ctx, "sort_fields", userID, attribute.Int("bookmarkx.id_count", len(ids)))
	defer func() { endSpan(span, err) }()

	items, err := s.batchGet(ctx, userID, ids, "id", "createdAt", "archived", "favourited", "type")
	if err != nil {
		return nil, err
	}
	fields = make([]bookmarkx.SortFields, 0, len(items))
	for _, id := range keepFound(ids, items) {
		fields = append(fields, items[id].SortFields())
	}
	return fields, nil
}

// Bookmarks implements bookmarkx.Store.
func (s *Store) Bookmarks(ctx context.Context, userID string, ids []string) (bookmarks []bookmarkx.Bookmark, err error) {
	ctx, span := s.startSpan(ctx, "bookmarks", userID, attribute.Int("bookmarkx.id_count", len(ids)))
	defer func() { endSpan(span, err) }()

	items, err := s.batchGet(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	bookmarks = make([]bookmarkx.Bookmark, 0, len(items))
	for _, id := range keepFound(ids, items) {
		bookmarks = append(bookmarks, items[id].Bookmark())
	}
	return bookmarks, nil
}

func (s *Store) partitionQuery(userID, skPrefix string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: ddb.UserKey(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}
}

// queryBookmarkIDs returns the ids of the user's bookmark items accepted by f.
func (s *Store) queryBookmarkIDs(ctx context.Context, userID string, f filter) ([]string, error) {
	input := s.partitionQuery(userID, ddb.BookmarkPrefix)
	input.ProjectionExpression = aws.String("#id")
	input.ExpressionAttributeNames = map[string]string{"#id": "id"}
	if f.expression != "" {
		input.FilterExpression = aws.String(f.expression)
		maps.Copy(input.ExpressionAttributeNames, f.names)
		maps.Copy(input.ExpressionAttributeValues, f.values)
	}

	var ids []string
	err := s.query(ctx, input, func(item map[string]types.AttributeValue) error {
		var b struct {
			ID string `dynamodbav:"id"`
		}
		if err := attributevalue.UnmarshalMap(item, &b); err != nil {
			return errors.Wrap(err, "failed to unmarshal bookmark item")
		}
		ids = append(ids, b.ID)
		return nil
	})
	return ids, err
}

// query runs input and feeds every item of every page to visit.
func (s *Store) query(ctx context.Context, input *dynamodb.QueryInput, visit func(map[string]types.AttributeValue) error) error {
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return bookmarkx.WrapBackendError(err, "query table %s", s.tableName)
		}
		for _, item := range out.Items {
			if err := visit(item); err != nil {
				return bookmarkx.WrapBackendError(err, "query table %s", s.tableName)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// batchGet loads the user's bookmark items for ids, keyed by id. With
// attributes set only those are projected.
func (s *Store) batchGet(ctx context.Context, userID string, ids []string, attributes ...string) (map[string]ddb.BookmarkItem, error) {
	found := make(map[string]ddb.BookmarkItem, len(ids))
	unique := slices.Compact(slices.Sorted(slices.Values(ids)))

	for _, batch := range chunk(unique, batchGetLimit) {
		keys := make([]map[string]types.AttributeValue, 0, len(batch))
		for _, id := range batch {
			keys = append(keys, ddb.Key(ddb.UserKey(userID), ddb.BookmarkKey(id)))
		}
		request := map[string]types.KeysAndAttributes{
			s.tableName: projectKeys(keys, attributes),
		}

		for attempt := 0; len(request) > 0; attempt++ {
			if attempt > maxUnprocessedRetries {
				return nil, errors.WithSecondaryError(bookmarkx.ErrBackendUnavailable,
					errors.Newf("batch get on table %s left keys unprocessed after %d retries", s.tableName, maxUnprocessedRetries))
			}
			if attempt > 0 {
				if err := sleep(ctx, s.backoff*time.Duration(attempt)); err != nil {
					return nil, bookmarkx.WrapBackendError(err, "batch get on table %s", s.tableName)
				}
			}

			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, bookmarkx.WrapBackendError(err, "batch get on table %s", s.tableName)
			}
			for _, image := range out.Responses[s.tableName] {
				var item ddb.BookmarkItem
				if err := attributevalue.UnmarshalMap(image, &item); err != nil {
					return nil, bookmarkx.WrapBackendError(err, "unmarshal bookmark item")
				}
				found[item.ID] = item
			}
			request = out.UnprocessedKeys
		}
	}
	return found, nil
}

func projectKeys(keys []map[string]types.AttributeValue, attributes []string) types.KeysAndAttributes {
	ka := types.KeysAndAttributes{Keys: keys}
	if len(attributes) == 0 {
		return ka
	}
	placeholders := make([]string, 0, len(attributes))
	ka.ExpressionAttributeNames = make(map[string]string, len(attributes))
	for i, name := range attributes {
		p := fmt.Sprintf("#p%d", i)
		placeholders = append(placeholders, p)
		ka.ExpressionAttributeNames[p] = name
	}
	ka.ProjectionExpression = aws.String(strings.Join(placeholders, ", "))
	return ka
}

// keepFound filters ids down to the ones present in items, keeping order and
// dropping repeats.
func keepFound(ids []string, items map[string]ddb.BookmarkItem) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, id := range ids {
		if _, ok := items[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func listValues(prefix string, values []string) ([]string, map[string]types.AttributeValue) {
	placeholders := make([]string, 0, len(values))
	av := make(map[string]types.AttributeValue, len(values))
	for i, v := range values {
		p := prefix + strconv.Itoa(i)
		placeholders = append(placeholders, p)
		av[p] = &types.AttributeValueMemberS{Value: v}
	}
	return placeholders, av
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
