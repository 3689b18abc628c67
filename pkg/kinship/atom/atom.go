// Package atom implements the fact-atom grammar of the family-tree
// knowledge base:
//
//	(Male Name)
//	(Female Name)
//	(Parent ParentName ChildName)
//	(Ethnicity Name Group Fraction)
//
// Facts are written to the fact file exactly as String renders them.
package atom

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cognicore/kinship/pkg/kinship/internalerr"
)

// Predicate is the head symbol of a fact atom.
type Predicate string

const (
	Male      Predicate = "Male"
	Female    Predicate = "Female"
	Parent    Predicate = "Parent"
	Ethnicity Predicate = "Ethnicity"
)

var arity = map[Predicate]int{
	Male:      1,
	Female:    1,
	Parent:    2,
	Ethnicity: 3,
}

// Predicates lists the fact predicates in grammar order.
func Predicates() []Predicate {
	return []Predicate{Male, Female, Parent, Ethnicity}
}

// Fact is one atom of the knowledge base.
type Fact struct {
	Predicate Predicate
	Args      []string
}

// NewGender builds (Male name) or (Female name).
func NewGender(g Predicate, name string) Fact {
	return Fact{Predicate: g, Args: []string{name}}
}

// NewParent builds (Parent parent child).
func NewParent(parent, child string) Fact {
	return Fact{Predicate: Parent, Args: []string{parent, child}}
}

// NewEthnicity builds (Ethnicity name group fraction).
func NewEthnicity(name, group string, fraction float64) Fact {
	return Fact{Predicate: Ethnicity, Args: []string{name, group, FormatFraction(fraction)}}
}

// String renders the fact in the fact-file grammar.
func (f Fact) String() string {
	return "(" + string(f.Predicate) + " " + strings.Join(f.Args, " ") + ")"
}

// Fraction returns the numeric argument of an Ethnicity fact.
func (f Fact) Fraction() (float64, error) {
	if f.Predicate != Ethnicity || len(f.Args) != 3 {
		return 0, internalerr.Invalid("%s is not an ethnicity fact", f)
	}
	v, err := strconv.ParseFloat(f.Args[2], 64)
	if err != nil {
		return 0, internalerr.Invalid("%s: fraction %q is not a number", f, f.Args[2])
	}
	return v, nil
}

// Validate checks the predicate, its arity, the names and, for ethnicity,
// that the fraction lies in [0, 1].
func (f Fact) Validate() error {
	n, ok := arity[f.Predicate]
	if !ok {
		return internalerr.Invalid("unknown predicate %q", f.Predicate)
	}
	if len(f.Args) != n {
		return internalerr.Invalid("%s takes %d argument(s), got %d", f.Predicate, n, len(f.Args))
	}
	names := f.Args
	if f.Predicate == Ethnicity {
		names = f.Args[:2]
	}
	for _, name := range names {
		if err := ValidName(name); err != nil {
			return err
		}
	}
	if f.Predicate == Ethnicity {
		v, err := f.Fraction()
		if err != nil {
			return err
		}
		if v < 0 || v > 1 {
			return internalerr.Invalid("fraction %v outside 0.0-1.0", v)
		}
	}
	return nil
}

// ParseGender accepts "male"/"female" in any case.
func ParseGender(s string) (Predicate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return Male, nil
	case "female":
		return Female, nil
	}
	return "", internalerr.Invalid("gender must be Male or Female, got %q", s)
}

// ValidName reports whether s can stand as a single symbol in a fact atom.
func ValidName(s string) error {
	if s == "" {
		return internalerr.Invalid("empty name")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || r == '(' || r == ')' || r == ';' || r == '"' || r == '\'' {
			return internalerr.Invalid("name %q must be a single word", s)
		}
	}
	return nil
}

// ProperCase trims s and title-cases it: "chernet" becomes "Chernet".
// A Caser holds state, so each call gets its own.
func ProperCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

// Capitalize trims s and upper-cases its first letter only, so
// "chernet" becomes "Chernet" and "McDonald" stays "McDonald".
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// FormatFraction renders f with at least one decimal so it always reads
// back as a fractional number: 1 becomes "1.0", 0.25 stays "0.25".
func FormatFraction(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Join renders facts one per line.
func Join(facts ...Fact) string {
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = f.String()
	}
	return strings.Join(lines, "\n")
}

// Document is the result of reading fact text.
type Document struct {
	Facts    []Fact
	Skipped  []Expr // rule definitions, evaluations and other forms
	Rejected []Rejected
}

// Rejected is a form headed by a fact predicate that failed validation.
type Rejected struct {
	Expr Expr
	Err  error
}

// Parse reads fact text. Fact atoms are validated; every other top-level
// form ("(= ...)" rule definitions, "!" evaluations) is kept in Skipped.
// Fact-headed forms that fail validation go to Rejected and do not stop
// the parse. Only malformed text is an error.
func Parse(text string) (Document, error) {
	exprs, err := Read(text)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	for i := 0; i < len(exprs); i++ {
		e := exprs[i]
		if !e.IsList && e.Symbol == "!" && i+1 < len(exprs) {
			doc.Skipped = append(doc.Skipped, exprs[i+1])
			i++
			continue
		}
		pred := Predicate(e.Head())
		if _, ok := arity[pred]; !ok {
			doc.Skipped = append(doc.Skipped, e)
			continue
		}
		syms, err := e.Symbols()
		if err != nil {
			doc.Rejected = append(doc.Rejected, Rejected{Expr: e, Err: err})
			continue
		}
		f := Fact{Predicate: pred, Args: syms[1:]}
		if err := f.Validate(); err != nil {
			doc.Rejected = append(doc.Rejected, Rejected{Expr: e, Err: errors.Wrapf(err, "line %d", e.Line)})
			continue
		}
		if pred == Ethnicity {
			v, _ := f.Fraction()
			f.Args[2] = FormatFraction(v)
		}
		doc.Facts = append(doc.Facts, f)
	}
	return doc, nil
}

// ParseFacts reads text that must consist of fact atoms only.
func ParseFacts(text string) ([]Fact, error) {
	doc, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if len(doc.Rejected) > 0 {
		return nil, doc.Rejected[0].Err
	}
	if len(doc.Skipped) > 0 {
		return nil, internalerr.Invalid("line %d: %s is not a fact atom", doc.Skipped[0].Line, doc.Skipped[0])
	}
	if len(doc.Facts) == 0 {
		return nil, internalerr.Invalid("no fact atoms in %q", text)
	}
	return doc.Facts, nil
}
