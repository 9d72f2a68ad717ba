package query

import (
	"fmt"
	"strings"
)

// Describe renders n as query text. For trees produced by Parse, parsing the
// description yields an equal tree. Nodes that the grammar cannot express
// (SelectAll, SearchByID, tags by id) are rendered in a readable pseudo-syntax.
func Describe(n Node) string {
	var b strings.Builder
	describe(&b, n)
	return b.String()
}

func precedence(n Node) int {
	if l, ok := n.(Logical); ok {
		if l.Op == OpOr {
			return 1
		}
		return 2
	}
	return 3
}

func describe(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case Query:
		describe(b, n.Expr)
		b.WriteByte(' ')
		describe(b, n.Order)
	case Logical:
		prec := precedence(n)
		describeOperand(b, n.Left, precedence(n.Left) < prec)
		fmt.Fprintf(b, " %s ", n.Op)
		describeOperand(b, n.Right, precedence(n.Right) <= prec)
	case TagsIn:
		b.WriteString("tags ")
		if n.ByID {
			b.WriteString("#")
		}
		if n.Negate {
			b.WriteString("not ")
		}
		b.WriteString("in [")
		for i, tag := range n.Tags {
			if i > 0 {
				b.WriteString(", ")
			}
			quote(b, tag)
		}
		b.WriteString("]")
	case ListEquals:
		b.WriteString("list=")
		quote(b, n.ListID)
	case TextSearch:
		b.WriteString("text=")
		quote(b, n.Text)
	case BookmarkTypeIs:
		b.WriteString("bookmarkType=")
		quote(b, string(n.Type))
	case FavouriteIs:
		fmt.Fprintf(b, "favourite=%t", n.Value)
	case ArchivedIs:
		fmt.Fprintf(b, "archived=%t", n.Value)
	case CreatedDateCompare:
		fmt.Fprintf(b, "createdDate %s ", n.Op.Symbol())
		quote(b, n.Date.Format("02-01-2006"))
	case SelectAll:
		b.WriteString("*")
	case SearchByID:
		fmt.Fprintf(b, "id in %q", n.IDs)
	case OrderBy:
		b.WriteString("order by ")
		for i, item := range n.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(string(item.Key))
			if item.Desc {
				b.WriteString(" desc")
			} else {
				b.WriteString(" asc")
			}
		}
	default:
		fmt.Fprintf(b, "<%T>", n)
	}
}

func describeOperand(b *strings.Builder, n Node, parens bool) {
	if parens {
		b.WriteByte('(')
	}
	describe(b, n)
	if parens {
		b.WriteByte(')')
	}
}

func quote(b *strings.Builder, s string) {
	b.WriteByte('"')
	b.WriteString(s)
	b.WriteByte('"')
}
