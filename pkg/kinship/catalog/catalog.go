// Package catalog is the registry of query functions the family tree
// understands. The same registry renders the extraction prompt, validates
// extracted intents and guards engine calls, so the three cannot drift.
package catalog

import (
	"fmt"
	"strings"

	"github.com/cognicore/kinship/pkg/kinship/internalerr"
)

// ResultKind describes what a function returns.
type ResultKind string

const (
	People   ResultKind = "names"    // zero or more people
	Fraction ResultKind = "fraction" // a number between 0 and 1
)

// Function is one entry of the catalog.
type Function struct {
	Name        string
	Params      []string // argument roles, positional
	Result      ResultKind
	Description string
}

// Arity is the number of arguments the function takes.
func (f Function) Arity() int { return len(f.Params) }

// Signature renders "get-ethnicity(person, group)".
func (f Function) Signature() string {
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(f.Params, ", "))
}

var person = []string{"person"}

var functions = []Function{
	{Name: "get-brothers", Params: person, Result: People, Description: "male siblings"},
	{Name: "get-sisters", Params: person, Result: People, Description: "female siblings"},
	{Name: "get-siblings", Params: person, Result: People, Description: "people sharing a parent"},
	{Name: "get-father", Params: person, Result: People, Description: "male parent"},
	{Name: "get-mother", Params: person, Result: People, Description: "female parent"},
	{Name: "get-parents", Params: person, Result: People, Description: "both parents"},
	{Name: "get-uncles", Params: person, Result: People, Description: "brothers of a parent"},
	{Name: "get-aunt", Params: person, Result: People, Description: "sisters of a parent"},
	{Name: "get-aunts", Params: person, Result: People, Description: "sisters of a parent"},
	{Name: "get-cousin", Params: person, Result: People, Description: "children of a parent's siblings"},
	{Name: "get-cousins", Params: person, Result: People, Description: "children of a parent's siblings"},
	{Name: "get-grandparent", Params: person, Result: People, Description: "parents of a parent"},
	{Name: "get-grand-father", Params: person, Result: People, Description: "male grandparents"},
	{Name: "get-grand-mother", Params: person, Result: People, Description: "female grandparents"},
	{Name: "get-grandchild", Params: person, Result: People, Description: "children of a child"},
	{Name: "get-niece", Params: person, Result: People, Description: "daughters of a sibling"},
	{Name: "get-nieces", Params: person, Result: People, Description: "daughters of a sibling"},
	{Name: "get-nephew", Params: person, Result: People, Description: "sons of a sibling"},
	{Name: "get-nephews", Params: person, Result: People, Description: "sons of a sibling"},
	{Name: "get-ethnicity", Params: []string{"person", "group"}, Result: Fraction, Description: "fraction of the person belonging to an ethnic group"},
	{Name: "get-children", Params: person, Result: People, Description: "sons and daughters"},
	{Name: "get-sons", Params: person, Result: People, Description: "male children"},
	{Name: "get-daughters", Params: person, Result: People, Description: "female children"},
	{Name: "get-wife", Params: person, Result: People, Description: "female co-parent"},
	{Name: "get-husband", Params: person, Result: People, Description: "male co-parent"},
	{Name: "get-relations", Params: person, Result: People, Description: "everyone related by a known relationship"},
}

var index = func() map[string]Function {
	m := make(map[string]Function, len(functions))
	for _, f := range functions {
		m[f.Name] = f
	}
	return m
}()

// All returns the catalog in its canonical order.
func All() []Function {
	out := make([]Function, len(functions))
	copy(out, functions)
	return out
}

// Names returns the function names in canonical order.
func Names() []string {
	out := make([]string, len(functions))
	for i, f := range functions {
		out[i] = f.Name
	}
	return out
}

// Lookup finds a function by name.
func Lookup(name string) (Function, bool) {
	f, ok := index[name]
	return f, ok
}

// Validate checks that name is in the catalog and that args matches its arity.
func Validate(name string, args []string) (Function, error) {
	f, ok := Lookup(name)
	if !ok {
		return Function{}, internalerr.Invalid("unknown function %q", name)
	}
	if len(args) != f.Arity() {
		return Function{}, internalerr.Invalid("%s expects %d argument(s), got %d", name, f.Arity(), len(args))
	}
	return f, nil
}
