// Package query implements the bookmark query language: its expression tree,
// parser, evaluator and sort engine.
//
// A tree is built either by Parse from user text or directly with the New*
// constructors, evaluated once with Evaluate, then discarded. Nodes are values
// and never change after construction.
package query

import (
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/bookmarkx"
)

// Node is an expression tree node. The set of node types is closed: Query,
// Logical, TagsIn, ListEquals, TextSearch, BookmarkTypeIs, FavouriteIs,
// ArchivedIs, CreatedDateCompare, SelectAll, SearchByID and OrderBy.
type Node interface {
	// node is a marker method that keeps the set of node types closed.
	node()
}

// baseNode provides the node marker method for all node types.
type baseNode struct{}

func (baseNode) node() {}

// Query evaluates Expr and orders its result with Order.
type Query struct {
	baseNode
	Expr  Node
	Order OrderBy
}

// NewQuery wraps expr with order. An empty order means createdDate desc.
func NewQuery(expr Node, order OrderBy) Query {
	if len(order.Items) == 0 {
		order = DefaultOrder()
	}
	return Query{Expr: expr, Order: order}
}

// LogicalOp is the boolean connective of a Logical node.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
)

// Logical combines two sub-expressions: And intersects, Or unions.
type Logical struct {
	baseNode
	Op    LogicalOp
	Left  Node
	Right Node
}

// And builds an And node.
func And(left, right Node) Logical {
	return Logical{Op: OpAnd, Left: left, Right: right}
}

// Or builds an Or node.
func Or(left, right Node) Logical {
	return Logical{Op: OpOr, Left: left, Right: right}
}

// TagsIn selects bookmarks linked to any of Tags, or with Negate the user's
// bookmarks linked to none of them. Tags hold ids when ByID is set and names
// otherwise.
type TagsIn struct {
	baseNode
	Tags   []string
	Negate bool
	ByID   bool
}

// NewTagsIn validates the tag references.
func NewTagsIn(tags []string, negate, byID bool) (TagsIn, error) {
	if len(tags) == 0 {
		return TagsIn{}, errors.Wrap(bookmarkx.ErrInvalidExpression, "tag list is empty")
	}
	for _, tag := range tags {
		if tag == "" {
			return TagsIn{}, errors.Wrap(bookmarkx.ErrInvalidExpression, "empty tag reference")
		}
	}
	return TagsIn{Tags: slices.Clone(tags), Negate: negate, ByID: byID}, nil
}

// ListEquals selects the members of a list.
type ListEquals struct {
	baseNode
	ListID string
}

// NewListEquals validates the list reference.
func NewListEquals(listID string) (ListEquals, error) {
	if listID == "" {
		return ListEquals{}, errors.Wrap(bookmarkx.ErrInvalidExpression, "empty list reference")
	}
	return ListEquals{ListID: listID}, nil
}

// TextSearch delegates to the full-text index.
type TextSearch struct {
	baseNode
	Text string
}

// BookmarkTypeIs selects bookmarks of one type.
type BookmarkTypeIs struct {
	baseNode
	Type bookmarkx.BookmarkType
}

// NewBookmarkTypeIs validates the type literal.
func NewBookmarkTypeIs(literal string) (BookmarkTypeIs, error) {
	t, err := bookmarkx.ParseBookmarkType(literal)
	if err != nil {
		return BookmarkTypeIs{}, err
	}
	return BookmarkTypeIs{Type: t}, nil
}

// FavouriteIs selects bookmarks by their favourite flag.
type FavouriteIs struct {
	baseNode
	Value bool
}

// ArchivedIs selects bookmarks by their archived flag.
type ArchivedIs struct {
	baseNode
	Value bool
}

// CreatedDateCompare compares the creation time against a date resolved when
// the node was built.
type CreatedDateCompare struct {
	baseNode
	Op   bookmarkx.Operator
	Date time.Time
}

// NewCreatedDateCompare parses the comparison operator.
func NewCreatedDateCompare(op string, date time.Time) (CreatedDateCompare, error) {
	operator, err := bookmarkx.ParseOperator(op)
	if err != nil {
		return CreatedDateCompare{}, err
	}
	return CreatedDateCompare{Op: operator, Date: date}, nil
}

// SelectAll selects every bookmark of the user.
type SelectAll struct {
	baseNode
}

// SearchByID wraps caller-supplied ids without touching the store.
type SearchByID struct {
	baseNode
	IDs []string
}

// NewSearchByID copies ids into a node.
func NewSearchByID(ids []string) SearchByID {
	return SearchByID{IDs: slices.Clone(ids)}
}

// SortKey names a value a result set can be ordered by.
type SortKey string

const (
	SortRank         SortKey = "rank"
	SortFavourite    SortKey = "favourite"
	SortCreatedDate  SortKey = "createdDate"
	SortArchived     SortKey = "archived"
	SortBookmarkType SortKey = "bookmarkType"
)

var sortKeys = []SortKey{SortRank, SortFavourite, SortCreatedDate, SortArchived, SortBookmarkType}

// ParseSortKey matches a sort key case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	for _, key := range sortKeys {
		if strings.EqualFold(s, string(key)) {
			return key, nil
		}
	}
	return "", errors.Wrapf(bookmarkx.ErrInvalidExpression, "unknown sort key %q", s)
}

// SortItem is one key of an OrderBy.
type SortItem struct {
	Key  SortKey
	Desc bool
}

// NewSortItem validates key and direction. An empty direction is ascending.
func NewSortItem(key, direction string) (SortItem, error) {
	k, err := ParseSortKey(key)
	if err != nil {
		return SortItem{}, err
	}
	switch strings.ToLower(direction) {
	case "", "asc":
		return SortItem{Key: k}, nil
	case "desc":
		return SortItem{Key: k, Desc: true}, nil
	}
	return SortItem{}, errors.Wrapf(bookmarkx.ErrInvalidExpression, "unknown sort direction %q", direction)
}

// OrderBy enriches and orders a result set. Items are in priority order; ties
// on all of them fall back to ascending id.
type OrderBy struct {
	baseNode
	Items []SortItem
}

// NewOrderBy copies items into a node.
func NewOrderBy(items ...SortItem) OrderBy {
	return OrderBy{Items: slices.Clone(items)}
}

// DefaultOrder is createdDate desc.
func DefaultOrder() OrderBy {
	return OrderBy{Items: []SortItem{{Key: SortCreatedDate, Desc: true}}}
}
