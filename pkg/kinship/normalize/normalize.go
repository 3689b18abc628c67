// Package normalize flattens raw engine results into typed scalars.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cognicore/kinship/pkg/kinship/atom"
	"github.com/cognicore/kinship/pkg/kinship/inference"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	Text Kind = iota
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	}
	return "text"
}

// Value is one normalized result token.
type Value struct {
	Kind  Kind
	Text  string
	Int   int64
	Float float64
}

func TextValue(s string) Value { return Value{Kind: Text, Text: s} }

func IntValue(n int64) Value { return Value{Kind: Int, Int: n} }

func FloatValue(f float64) Value { return Value{Kind: Float, Float: f} }

// Any returns the underlying Go value.
func (v Value) Any() any {
	switch v.Kind {
	case Int:
		return v.Int
	case Float:
		return v.Float
	}
	return v.Text
}

// String renders numbers bare and text single-quoted, the way the answer
// prompt shows results: 0.25, 3, 'Abebe'.
func (v Value) String() string {
	switch v.Kind {
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return atom.FormatFraction(v.Float)
	}
	return "'" + strings.ReplaceAll(v.Text, "'", `\'`) + "'"
}

// MarshalJSON encodes the underlying value: numbers as JSON numbers,
// text as a JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// Normalize walks raw depth-first. A token containing "." is tried as a
// float, any other token as an integer; tokens that do not parse stay text.
// The result is never nil.
func Normalize(raw inference.Result) []Value {
	out := []Value{}
	for _, row := range raw {
		for _, tok := range row {
			out = append(out, token(tok))
		}
	}
	return out
}

func token(s string) Value {
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return FloatValue(f)
		}
		return TextValue(s)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(n)
	}
	return TextValue(s)
}

// Render prints values as a bracketed list: ['Kaleb', 'Selam'].
func Render(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
