package query

import (
	"reflect"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/bookmarkx"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) ParseOption {
	return WithClock(func() time.Time { return t })
}

func mustTags(t *testing.T, negate bool, tags ...string) TagsIn {
	t.Helper()
	node, err := NewTagsIn(tags, negate, false)
	if err != nil {
		t.Fatalf("NewTagsIn failed: %v", err)
	}
	return node
}

func TestParse(t *testing.T) {
	now := time.Date(2024, 3, 31, 15, 30, 0, 0, time.UTC)

	tests := map[string]struct {
		input    string
		expected Query
	}{
		"flag": {
			input:    `favourite=true`,
			expected: NewQuery(FavouriteIs{Value: true}, OrderBy{}),
		},
		"whitespace_insensitive": {
			input:    "  archived =\tfalse ",
			expected: NewQuery(ArchivedIs{Value: false}, OrderBy{}),
		},
		"case_insensitive_keywords": {
			input: `FAVOURITE=TRUE AND Tags NOT IN ["Go"]`,
			expected: NewQuery(And(
				FavouriteIs{Value: true},
				mustTags(t, true, "Go"),
			), OrderBy{}),
		},
		"tags_in": {
			input:    `tags in ["go", "rust lang"]`,
			expected: NewQuery(mustTags(t, false, "go", "rust lang"), OrderBy{}),
		},
		"list": {
			input:    `list="l1"`,
			expected: NewQuery(ListEquals{ListID: "l1"}, OrderBy{}),
		},
		"text_verbatim": {
			input:    `text="Go AND Rust (2024)"`,
			expected: NewQuery(TextSearch{Text: "Go AND Rust (2024)"}, OrderBy{}),
		},
		"bookmark_type": {
			input:    `bookmarkType="asset"`,
			expected: NewQuery(BookmarkTypeIs{Type: bookmarkx.TypeAsset}, OrderBy{}),
		},
		"and_binds_tighter_than_or": {
			input: `favourite=true or archived=true and list="l1"`,
			expected: NewQuery(Or(
				FavouriteIs{Value: true},
				And(ArchivedIs{Value: true}, ListEquals{ListID: "l1"}),
			), OrderBy{}),
		},
		"left_associative": {
			input: `favourite=true and archived=false and list="l1"`,
			expected: NewQuery(And(
				And(FavouriteIs{Value: true}, ArchivedIs{Value: false}),
				ListEquals{ListID: "l1"},
			), OrderBy{}),
		},
		"groups": {
			input: `(favourite=true or archived=true) and text="kafka"`,
			expected: NewQuery(And(
				Or(FavouriteIs{Value: true}, ArchivedIs{Value: true}),
				TextSearch{Text: "kafka"},
			), OrderBy{}),
		},
		"absolute_date": {
			input:    `createdDate >= "2-1-2024"`,
			expected: NewQuery(CreatedDateCompare{Op: bookmarkx.OpGte, Date: day(2024, 1, 2)}, OrderBy{}),
		},
		"relative_days": {
			input:    `createdDate > "-3d"`,
			expected: NewQuery(CreatedDateCompare{Op: bookmarkx.OpGt, Date: day(2024, 3, 28)}, OrderBy{}),
		},
		"relative_weeks": {
			input:    `createdDate <= "-2w"`,
			expected: NewQuery(CreatedDateCompare{Op: bookmarkx.OpLte, Date: day(2024, 3, 17)}, OrderBy{}),
		},
		"relative_month_clamps": {
			input:    `createdDate < "-1m"`,
			expected: NewQuery(CreatedDateCompare{Op: bookmarkx.OpLt, Date: day(2024, 2, 29)}, OrderBy{}),
		},
		"relative_year": {
			input:    `createdDate = "-1y"`,
			expected: NewQuery(CreatedDateCompare{Op: bookmarkx.OpEq, Date: day(2023, 3, 31)}, OrderBy{}),
		},
		"order_by": {
			input: `archived=false ORDER BY rank DESC, bookmarkType, createdDate asc`,
			expected: NewQuery(ArchivedIs{Value: false}, NewOrderBy(
				SortItem{Key: SortRank, Desc: true},
				SortItem{Key: SortBookmarkType},
				SortItem{Key: SortCreatedDate},
			)),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(tt.input, fixedClock(now))
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Parse(%q)\n got: %#v\nwant: %#v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseDefaultOrder(t *testing.T) {
	q, err := Parse(`favourite=true`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !reflect.DeepEqual(q.Order, DefaultOrder()) {
		t.Errorf("Expected createdDate desc, got %+v", q.Order)
	}
}

func TestParseRelativeDateLeapYear(t *testing.T) {
	now := time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)
	q, err := Parse(`createdDate > "-1y"`, fixedClock(now))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cmp, ok := q.Expr.(CreatedDateCompare)
	if !ok {
		t.Fatalf("Expected CreatedDateCompare, got %T", q.Expr)
	}
	if !cmp.Date.Equal(day(2023, 2, 28)) {
		t.Errorf("Expected 2023-02-28, got %v", cmp.Date)
	}
}

func TestParseLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	q, err := Parse(`createdDate >= "01-06-2024"`, WithLocation(loc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC)
	if got := q.Expr.(CreatedDateCompare).Date; !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]struct {
		input  string
		line   int
		column int
	}{
		"empty":               {input: ``, line: 1, column: 1},
		"bad_flag":            {input: `favourite=maybe`, line: 1, column: 11},
		"unknown_type":        {input: `bookmarkType="video"`, line: 1, column: 14},
		"unknown_filter":      {input: `title="x"`, line: 1, column: 1},
		"unterminated":        {input: `text="open`, line: 1, column: 6},
		"unknown_sort_key":    {input: `favourite=true order by size`, line: 1, column: 25},
		"missing_by":          {input: `favourite=true order rank`, line: 1, column: 22},
		"second_line":         {input: "favourite=true\nand foo", line: 2, column: 5},
		"invalid_date":        {input: `createdDate > "31-02-2024"`, line: 1, column: 15},
		"malformed_date":      {input: `createdDate > "2024-01-01"`, line: 1, column: 15},
		"bad_relative_unit":   {input: `createdDate > "-3h"`, line: 1, column: 15},
		"empty_tags":          {input: `tags in []`, line: 1, column: 9},
		"empty_tag_name":      {input: `tags in ["go", ""]`, line: 1, column: 16},
		"missing_comma":       {input: `tags in ["a" "b"]`, line: 1, column: 14},
		"unclosed_group":      {input: `(favourite=true`, line: 1, column: 16},
		"missing_connective":  {input: `favourite=true archived=true`, line: 1, column: 16},
		"unexpected_char":     {input: `favourite!=true`, line: 1, column: 10},
		"empty_list_id":       {input: `list=""`, line: 1, column: 6},
		"operator_for_flag":   {input: `archived>true`, line: 1, column: 9},
		"dangling_connective": {input: `favourite=true and`, line: 1, column: 19},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Expected Parse(%q) to fail", tt.input)
			}
			if !errors.Is(err, bookmarkx.ErrSyntax) {
				t.Errorf("Expected ErrSyntax, got %v", err)
			}
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("Expected *SyntaxError, got %T", err)
			}
			if syntaxErr.Line != tt.line || syntaxErr.Column != tt.column {
				t.Errorf("Expected line %d col %d, got line %d col %d (%s)",
					tt.line, tt.column, syntaxErr.Line, syntaxErr.Column, syntaxErr.Message)
			}
		})
	}
}

func TestSyntaxErrorMessage(t *testing.T) {
	_, err := Parse(`favourite=maybe`)
	want := `Line 1, col 11: expected "true" or "false", found "maybe"`
	if err == nil || err.Error() != want {
		t.Errorf("Expected %q, got %v", want, err)
	}
}

func TestDescribeRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 31, 15, 30, 0, 0, time.UTC)
	inputs := []string{
		`favourite=true`,
		`tags not in ["go", "rust"] and createdDate >= "-2w"`,
		`(favourite=true or list="l1") and text="kafka" order by rank desc, createdDate`,
		`favourite=true and (archived=false and bookmarkType="link")`,
		`favourite=true or (archived=false or list="x")`,
		`(favourite=true or archived=true) and (list="a" or list="b")`,
		`createdDate < "05-11-2023" order by bookmarkType asc, archived desc, favourite`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := Parse(input, fixedClock(now))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			described := Describe(first)
			second, err := Parse(described, fixedClock(now))
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", described, err)
			}
			if !reflect.DeepEqual(first, second) {
				t.Errorf("Round trip through %q changed the tree", described)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	q := NewQuery(And(
		Or(FavouriteIs{Value: true}, ListEquals{ListID: "l1"}),
		TextSearch{Text: "kafka"},
	), OrderBy{})

	want := `(favourite=true or list="l1") and text="kafka" order by createdDate desc`
	if got := Describe(q); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
