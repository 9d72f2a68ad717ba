package main

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/bookmarkx"
)

type indexCall struct {
	op        string
	indexName string
	id        string
	doc       bookmarkx.IndexDocument
}

// recordingIndexer records calls and optionally fails them.
type recordingIndexer struct {
	calls []indexCall
	err   error
}

func (r *recordingIndexer) IndexBookmark(ctx context.Context, indexName string, doc bookmarkx.IndexDocument) error {
	r.calls = append(r.calls, indexCall{op: "index", indexName: indexName, id: doc.ID, doc: doc})
	return r.err
}

func (r *recordingIndexer) DeleteBookmark(ctx context.Context, indexName, bookmarkID string) error {
	r.calls = append(r.calls, indexCall{op: "delete", indexName: indexName, id: bookmarkID})
	return r.err
}

func bookmarkImage(id string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"pk":         events.NewStringAttribute("USER#u1"),
		"sk":         events.NewStringAttribute("BOOKMARK#" + id),
		"kind":       events.NewStringAttribute("bookmark"),
		"id":         events.NewStringAttribute(id),
		"userId":     events.NewStringAttribute("u1"),
		"type":       events.NewStringAttribute("link"),
		"title":      events.NewStringAttribute("Title " + id),
		"archived":   events.NewBooleanAttribute(false),
		"favourited": events.NewBooleanAttribute(true),
		"createdAt":  events.NewNumberAttribute("1714554000000"),
		"tags": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
				"id":   events.NewStringAttribute("t1"),
				"name": events.NewStringAttribute("go"),
			}),
		}),
	}
}

func keys(sk string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"pk": events.NewStringAttribute("USER#u1"),
		"sk": events.NewStringAttribute(sk),
	}
}

func TestHandleDynamoDBEvent(t *testing.T) {
	tests := map[string]struct {
		records  []events.DynamoDBEventRecord
		expected []indexCall
	}{
		"insert": {
			records: []events.DynamoDBEventRecord{
				{EventName: "INSERT", Change: events.DynamoDBStreamRecord{NewImage: bookmarkImage("b1")}},
			},
			expected: []indexCall{{op: "index", indexName: "bookmarks", id: "b1"}},
		},
		"modify_then_remove": {
			records: []events.DynamoDBEventRecord{
				{EventName: "MODIFY", Change: events.DynamoDBStreamRecord{NewImage: bookmarkImage("b2")}},
				{EventName: "REMOVE", Change: events.DynamoDBStreamRecord{Keys: keys("BOOKMARK#b2")}},
			},
			expected: []indexCall{
				{op: "index", indexName: "bookmarks", id: "b2"},
				{op: "delete", indexName: "bookmarks", id: "b2"},
			},
		},
		"non_bookmark_items_ignored": {
			records: []events.DynamoDBEventRecord{
				{EventName: "INSERT", Change: events.DynamoDBStreamRecord{NewImage: map[string]events.DynamoDBAttributeValue{
					"pk":   events.NewStringAttribute("USER#u1"),
					"sk":   events.NewStringAttribute("TAG#t1"),
					"name": events.NewStringAttribute("go"),
				}}},
				{EventName: "REMOVE", Change: events.DynamoDBStreamRecord{Keys: keys("LIST#l1#BOOKMARK#b1")}},
			},
		},
		"malformed_records_skipped": {
			records: []events.DynamoDBEventRecord{
				{EventName: "INSERT"},
				{EventName: "MODIFY", Change: events.DynamoDBStreamRecord{NewImage: map[string]events.DynamoDBAttributeValue{
					"pk": events.NewStringAttribute("USER#u1"),
					"sk": events.NewStringAttribute("BOOKMARK#b9"),
				}}},
				{EventName: "INSERT", Change: events.DynamoDBStreamRecord{NewImage: bookmarkImage("b3")}},
			},
			expected: []indexCall{{op: "index", indexName: "bookmarks", id: "b3"}},
		},
		"unknown_event": {
			records: []events.DynamoDBEventRecord{
				{EventName: "TTL", Change: events.DynamoDBStreamRecord{NewImage: bookmarkImage("b1")}},
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			indexer := &recordingIndexer{}
			handler := NewHandler("bookmarks", indexer)

			if err := handler.HandleDynamoDBEvent(context.Background(), events.DynamoDBEvent{Records: tt.records}); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			var got []indexCall
			for _, call := range indexer.calls {
				got = append(got, indexCall{op: call.op, indexName: call.indexName, id: call.id})
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected calls %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestIndexedDocument(t *testing.T) {
	indexer := &recordingIndexer{}
	handler := NewHandler("bookmarks", indexer)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		{EventName: "INSERT", Change: events.DynamoDBStreamRecord{NewImage: bookmarkImage("b1")}},
	}}

	if err := handler.HandleDynamoDBEvent(context.Background(), event); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(indexer.calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(indexer.calls))
	}

	obj := indexer.calls[0].doc.Object()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded["objectID"] != "b1" || decoded["userId"] != "u1" || decoded["title"] != "Title b1" {
		t.Errorf("Unexpected object %v", decoded)
	}
	if decoded["createdAt"] != "2024-05-01T09:00:00Z" {
		t.Errorf("Expected RFC 3339 creation time, got %v", decoded["createdAt"])
	}
	if tags, ok := decoded["tags"].([]interface{}); !ok || len(tags) != 1 || tags[0] != "go" {
		t.Errorf("Expected tags [go], got %v", decoded["tags"])
	}
}

func TestIndexFailureFailsBatch(t *testing.T) {
	indexer := &recordingIndexer{err: errors.New("algolia down")}
	handler := NewHandler("bookmarks", indexer)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		{EventName: "INSERT", Change: events.DynamoDBStreamRecord{NewImage: bookmarkImage("b1")}},
		{EventName: "INSERT", Change: events.DynamoDBStreamRecord{NewImage: bookmarkImage("b2")}},
	}}

	if err := handler.HandleDynamoDBEvent(context.Background(), event); err == nil {
		t.Fatal("Expected an error")
	}
	if len(indexer.calls) != 1 {
		t.Errorf("Expected processing to stop after the failure, got %d calls", len(indexer.calls))
	}
}
