package atom

import (
	"strings"
	"unicode"

	"github.com/cognicore/kinship/pkg/kinship/internalerr"
)

// Expr is one node of an S-expression: either a symbol or a list.
type Expr struct {
	Symbol string
	List   []Expr
	IsList bool
	Line   int
}

// String renders the expression back in S-expression syntax.
func (e Expr) String() string {
	if !e.IsList {
		return e.Symbol
	}
	parts := make([]string, len(e.List))
	for i, c := range e.List {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Head returns the leading symbol of a list, or "" when there is none.
func (e Expr) Head() string {
	if !e.IsList || len(e.List) == 0 || e.List[0].IsList {
		return ""
	}
	return e.List[0].Symbol
}

type token struct {
	kind  byte // '(', ')' or 's'
	value string
	line  int
}

func tokenize(text string) ([]token, error) {
	var toks []token
	line := 1
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '\n':
			line++
		case unicode.IsSpace(r):
		case r == ';':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			i--
		case r == '(' || r == ')':
			toks = append(toks, token{kind: byte(r), line: line})
		case r == '"':
			start := line
			var sb strings.Builder
			i++
			for ; i < len(rs) && rs[i] != '"'; i++ {
				if rs[i] == '\n' {
					line++
				}
				if rs[i] == '\\' && i+1 < len(rs) {
					i++
				}
				sb.WriteRune(rs[i])
			}
			if i >= len(rs) {
				return nil, internalerr.Invalid("line %d: unterminated string", start)
			}
			toks = append(toks, token{kind: 's', value: sb.String(), line: start})
		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) && rs[j] != '(' && rs[j] != ')' && rs[j] != ';' {
				j++
			}
			toks = append(toks, token{kind: 's', value: string(rs[i:j]), line: line})
			i = j - 1
		}
	}
	return toks, nil
}

// Read parses every top-level expression in text. Comments start with ';'
// and run to the end of the line.
func Read(text string) ([]Expr, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	var out []Expr
	pos := 0
	for pos < len(toks) {
		e, next, err := readExpr(toks, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		pos = next
	}
	return out, nil
}

func readExpr(toks []token, pos int) (Expr, int, error) {
	t := toks[pos]
	switch t.kind {
	case ')':
		return Expr{}, 0, internalerr.Invalid("line %d: unexpected ')'", t.line)
	case 's':
		return Expr{Symbol: t.value, Line: t.line}, pos + 1, nil
	}
	e := Expr{IsList: true, Line: t.line, List: []Expr{}}
	pos++
	for {
		if pos >= len(toks) {
			return Expr{}, 0, internalerr.Invalid("line %d: unclosed '('", t.line)
		}
		if toks[pos].kind == ')' {
			return e, pos + 1, nil
		}
		child, next, err := readExpr(toks, pos)
		if err != nil {
			return Expr{}, 0, err
		}
		e.List = append(e.List, child)
		pos = next
	}
}

// Symbols returns the symbols of a flat list, failing on nested lists.
func (e Expr) Symbols() ([]string, error) {
	if !e.IsList {
		return nil, internalerr.Invalid("line %d: %q is not a list", e.Line, e.Symbol)
	}
	out := make([]string, len(e.List))
	for i, c := range e.List {
		if c.IsList {
			return nil, internalerr.Invalid("line %d: nested expression %s", e.Line, c)
		}
		out[i] = c.Symbol
	}
	return out, nil
}
