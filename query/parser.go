package query

import (
	"strings"
	"time"
)

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	now func() time.Time
	loc *time.Location
}

// WithClock sets the clock relative dates are resolved against.
func WithClock(now func() time.Time) ParseOption {
	return func(cfg *parseConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithLocation sets the time zone dates are interpreted in. The default is UTC.
func WithLocation(loc *time.Location) ParseOption {
	return func(cfg *parseConfig) {
		if loc != nil {
			cfg.loc = loc
		}
	}
}

// Parse turns query text into a Query. Without an ORDER BY clause the query is
// ordered by createdDate desc. On failure the error is a *SyntaxError and no
// tree is returned.
//
//	tags not in ["work"] and createdDate >= "-2w"
//	(favourite=true or list="l1") and text="kafka" order by rank desc, createdDate
func Parse(text string, opts ...ParseOption) (Query, error) {
	cfg := parseConfig{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(&cfg)
	}

	tokens, err := tokenize(text)
	if err != nil {
		return Query{}, err
	}
	p := &parser{input: text, tokens: tokens, cfg: cfg}
	return p.parseQuery()
}

type parser struct {
	input  string
	tokens []token
	pos    int
	cfg    parseConfig
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...interface{}) error {
	return newSyntaxError(p.input, t.pos, format, args...)
}

func isKeyword(t token, keyword string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, keyword)
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", kind, t)
	}
	return t, nil
}

func (p *parser) expectKeyword(keyword string) error {
	t := p.next()
	if !isKeyword(t, keyword) {
		return p.errorf(t, "expected %q, found %s", keyword, t)
	}
	return nil
}

func (p *parser) expectEquals() error {
	t := p.next()
	if t.kind != tokOperator || t.text != "=" {
		return p.errorf(t, `expected "=", found %s`, t)
	}
	return nil
}

func (p *parser) parseQuery() (Query, error) {
	expr, err := p.parseOr()
	if err != nil {
		return Query{}, err
	}

	var order OrderBy
	if isKeyword(p.peek(), "order") {
		p.next()
		if err := p.expectKeyword("by"); err != nil {
			return Query{}, err
		}
		if order, err = p.parseOrderBy(); err != nil {
			return Query{}, err
		}
	}

	if t := p.peek(); t.kind != tokEOF {
		return Query{}, p.errorf(t, `expected "and", "or", "order by" or end of input, found %s`, t)
	}
	return NewQuery(expr, order), nil
}

// parseOr and parseAnd build left-associative chains.
func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for isKeyword(p.peek(), "or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for isKeyword(p.peek(), "and") {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

func (p *parser) parseTerm() (Node, error) {
	t := p.next()
	if t.kind == tokLParen {
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return expr, nil
	}
	if t.kind != tokIdent {
		return nil, p.errorf(t, "expected a filter, found %s", t)
	}

	switch strings.ToLower(t.text) {
	case "tags":
		return p.parseTags()
	case "list":
		if err := p.expectEquals(); err != nil {
			return nil, err
		}
		s, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		node, err := NewListEquals(s.text)
		if err != nil {
			return nil, p.errorf(s, "list id must not be empty")
		}
		return node, nil
	case "text":
		if err := p.expectEquals(); err != nil {
			return nil, err
		}
		s, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		return TextSearch{Text: s.text}, nil
	case "createddate":
		return p.parseCreatedDate()
	case "favourite":
		value, err := p.parseFlag()
		if err != nil {
			return nil, err
		}
		return FavouriteIs{Value: value}, nil
	case "archived":
		value, err := p.parseFlag()
		if err != nil {
			return nil, err
		}
		return ArchivedIs{Value: value}, nil
	case "bookmarktype":
		if err := p.expectEquals(); err != nil {
			return nil, err
		}
		s, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		node, err := NewBookmarkTypeIs(s.text)
		if err != nil {
			return nil, p.errorf(s, `unknown bookmark type %q, expected "link", "text" or "asset"`, s.text)
		}
		return node, nil
	}
	return nil, p.errorf(t, "unknown filter %q", t.text)
}

func (p *parser) parseTags() (Node, error) {
	negate := false
	if isKeyword(p.peek(), "not") {
		p.next()
		negate = true
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	open, err := p.expect(tokLBracket)
	if err != nil {
		return nil, err
	}

	var tags []string
	for p.peek().kind != tokRBracket {
		if len(tags) > 0 {
			if _, err := p.expect(tokComma); err != nil {
				return nil, err
			}
		}
		s, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		if s.text == "" {
			return nil, p.errorf(s, "tag name must not be empty")
		}
		tags = append(tags, s.text)
	}
	p.next()

	node, err := NewTagsIn(tags, negate, false)
	if err != nil {
		return nil, p.errorf(open, "tag list must not be empty")
	}
	return node, nil
}

func (p *parser) parseCreatedDate() (Node, error) {
	opTok, err := p.expect(tokOperator)
	if err != nil {
		return nil, err
	}
	s, err := p.expect(tokString)
	if err != nil {
		return nil, err
	}

	date, relative, err := parseRelativeDate(s.text, p.cfg.now().In(p.cfg.loc))
	if relative && err != nil {
		return nil, p.errorf(s, "invalid relative date %q", s.text)
	}
	if !relative {
		if date, err = AbsoluteDate(s.text, p.cfg.loc); err != nil {
			return nil, p.errorf(s, `invalid date %q, expected "dd-mm-yyyy" or "-<n><d|w|m|y>"`, s.text)
		}
	}

	node, err := NewCreatedDateCompare(opTok.text, date)
	if err != nil {
		return nil, p.errorf(opTok, "unknown operator %q", opTok.text)
	}
	return node, nil
}

func (p *parser) parseFlag() (bool, error) {
	if err := p.expectEquals(); err != nil {
		return false, err
	}
	t := p.next()
	switch {
	case isKeyword(t, "true"):
		return true, nil
	case isKeyword(t, "false"):
		return false, nil
	}
	return false, p.errorf(t, `expected "true" or "false", found %s`, t)
}

func (p *parser) parseOrderBy() (OrderBy, error) {
	var items []SortItem
	for {
		t, err := p.expect(tokIdent)
		if err != nil {
			return OrderBy{}, err
		}
		key, err := ParseSortKey(t.text)
		if err != nil {
			return OrderBy{}, p.errorf(t, "unknown sort key %q", t.text)
		}

		item := SortItem{Key: key}
		switch next := p.peek(); {
		case isKeyword(next, "asc"):
			p.next()
		case isKeyword(next, "desc"):
			p.next()
			item.Desc = true
		}
		items = append(items, item)

		if p.peek().kind != tokComma {
			return OrderBy{Items: items}, nil
		}
		p.next()
	}
}
