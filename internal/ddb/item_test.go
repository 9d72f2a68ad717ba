package ddb

import (
	"reflect"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/letmevibethatforyou/bookmarkx"
)

func TestBookmarkItemRoundTrip(t *testing.T) {
	b := bookmarkx.Bookmark{
		ID:         "b1",
		UserID:     "u1",
		Type:       bookmarkx.TypeAsset,
		Title:      "Slides",
		AssetID:    "a1",
		FileName:   "talk.pdf",
		Archived:   true,
		CreatedAt:  time.Date(2024, 5, 1, 9, 30, 15, 123_000_000, time.UTC),
		Tags:       []bookmarkx.Tag{{ID: "t1", Name: "talks"}},
		Favourited: false,
	}

	item := NewBookmarkItem(b)
	if item.PK != "USER#u1" || item.SK != "BOOKMARK#b1" || item.Kind != KindBookmark {
		t.Errorf("Unexpected keys %q %q %q", item.PK, item.SK, item.Kind)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		t.Fatalf("MarshalMap failed: %v", err)
	}
	if _, ok := av["note"]; ok {
		t.Error("Expected empty note to be omitted")
	}
	if _, ok := av["tagIds"].(*types.AttributeValueMemberSS); !ok {
		t.Errorf("Expected tagIds to be a string set, got %T", av["tagIds"])
	}

	decoded, ok, err := UnmarshalBookmark(av)
	if err != nil || !ok {
		t.Fatalf("Expected a bookmark item, got ok=%t err=%v", ok, err)
	}
	if got := decoded.Bookmark(); !reflect.DeepEqual(got, b) {
		t.Errorf("Expected %+v, got %+v", b, got)
	}

	fields := decoded.SortFields()
	if fields.Type != bookmarkx.TypeAsset || !fields.Archived || !fields.CreatedAt.Equal(b.CreatedAt) {
		t.Errorf("Unexpected sort fields %+v", fields)
	}
}

func TestUnmarshalBookmarkSkipsOtherKinds(t *testing.T) {
	tests := map[string]struct {
		item    interface{}
		wantErr bool
	}{
		"tag": {
			item: NewTagItem("u1", bookmarkx.Tag{ID: "t1", Name: "go"}),
		},
		"list_member": {
			item: NewListMemberItem("u1", "l1", "b1"),
		},
		"bookmark_without_user": {
			item:    BookmarkItem{PK: "USER#", SK: "BOOKMARK#b1", ID: "b1"},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			av, err := attributevalue.MarshalMap(tt.item)
			if err != nil {
				t.Fatalf("MarshalMap failed: %v", err)
			}
			_, ok, err := UnmarshalBookmark(av)
			if ok {
				t.Error("Expected no bookmark")
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %t, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBookmarkIDFromKeys(t *testing.T) {
	tests := map[string]struct {
		keys     map[string]types.AttributeValue
		expected string
		ok       bool
	}{
		"bookmark": {
			keys:     Key(UserKey("u1"), BookmarkKey("b1")),
			expected: "b1",
			ok:       true,
		},
		"tag": {
			keys: Key(UserKey("u1"), TagKey("t1")),
		},
		"list_member": {
			keys: Key(UserKey("u1"), ListMemberKey("l1", "b1")),
		},
		"empty_id": {
			keys: Key(UserKey("u1"), BookmarkPrefix),
		},
		"missing_sort_key": {
			keys: map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "USER#u1"}},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			id, ok := BookmarkIDFromKeys(tt.keys)
			if id != tt.expected || ok != tt.ok {
				t.Errorf("Expected (%q, %t), got (%q, %t)", tt.expected, tt.ok, id, ok)
			}
		})
	}
}
