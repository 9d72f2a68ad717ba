package query

import (
	"fmt"
	"strings"

	"github.com/letmevibethatforyou/bookmarkx"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokOperator
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "keyword"
	case tokString:
		return "string"
	case tokOperator:
		return "operator"
	case tokLParen:
		return `"("`
	case tokRParen:
		return `")"`
	case tokLBracket:
		return `"["`
	case tokRBracket:
		return `"]"`
	case tokComma:
		return `","`
	}
	return "unknown"
}

// token is one lexeme. For strings, text holds the contents without quotes.
type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// SyntaxError reports malformed query text. Line and Column are 1-based;
// Offset is the byte offset into the input.
type SyntaxError struct {
	Offset  int
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Line %d, col %d: %s", e.Line, e.Column, e.Message)
}

// Unwrap lets errors.Is match bookmarkx.ErrSyntax.
func (e *SyntaxError) Unwrap() error {
	return bookmarkx.ErrSyntax
}

func newSyntaxError(input string, offset int, format string, args ...interface{}) *SyntaxError {
	offset = min(max(offset, 0), len(input))
	line := 1 + strings.Count(input[:offset], "\n")
	column := offset + 1
	if i := strings.LastIndexByte(input[:offset], '\n'); i >= 0 {
		column = offset - i
	}
	return &SyntaxError{
		Offset:  offset,
		Line:    line,
		Column:  column,
		Message: fmt.Sprintf(format, args...),
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// tokenize splits input into tokens, ending with a tokEOF.
func tokenize(input string) ([]token, error) {
	var tokens []token
	for pos := 0; pos < len(input); {
		c := input[pos]
		switch {
		case isSpace(c):
			pos++
		case c == '"':
			end := strings.IndexByte(input[pos+1:], '"')
			if end < 0 {
				return nil, newSyntaxError(input, pos, "unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokString, text: input[pos+1 : pos+1+end], pos: pos})
			pos += end + 2
		case c == '<' || c == '>':
			// "<=" and ">=" are single operators.
			if pos+1 < len(input) && input[pos+1] == '=' {
				tokens = append(tokens, token{kind: tokOperator, text: input[pos : pos+2], pos: pos})
				pos += 2
				continue
			}
			tokens = append(tokens, token{kind: tokOperator, text: input[pos : pos+1], pos: pos})
			pos++
		case c == '=':
			tokens = append(tokens, token{kind: tokOperator, text: "=", pos: pos})
			pos++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: pos})
			pos++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: pos})
			pos++
		case c == '[':
			tokens = append(tokens, token{kind: tokLBracket, text: "[", pos: pos})
			pos++
		case c == ']':
			tokens = append(tokens, token{kind: tokRBracket, text: "]", pos: pos})
			pos++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: pos})
			pos++
		case isIdentByte(c):
			start := pos
			for pos < len(input) && isIdentByte(input[pos]) {
				pos++
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[start:pos], pos: start})
		default:
			return nil, newSyntaxError(input, pos, "unexpected character %q", c)
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(input)}), nil
}
