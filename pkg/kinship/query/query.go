// Package query renders intents into the engine's query syntax and reads
// query text back into calls.
package query

import (
	"strings"

	"github.com/cognicore/kinship/pkg/kinship/atom"
	"github.com/cognicore/kinship/pkg/kinship/intent"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
)

// Format converts {"function_name": "get-siblings", "args": ["Chernet"]}
// into "! (get-siblings Chernet)".
//
// Arguments are joined in the order supplied; the engine relations are
// positional. With no arguments the separating space is kept, giving
// "! (get-children )", which the engine reader accepts.
func Format(in intent.Intent) (string, error) {
	if in.FunctionName == "" {
		return "", internalerr.Invalid("no function name provided")
	}
	return "! (" + in.FunctionName + " " + strings.Join(in.Args, " ") + ")", nil
}

// Call is a parsed query.
type Call struct {
	Function string
	Args     []string
}

// Parse reads "! (fn arg1 arg2 ...)". The leading "!" is required; the
// whitespace between tokens is not significant.
func Parse(text string) (Call, error) {
	exprs, err := atom.Read(text)
	if err != nil {
		return Call{}, err
	}
	if len(exprs) != 2 || exprs[0].IsList || exprs[0].Symbol != "!" || !exprs[1].IsList {
		return Call{}, internalerr.Invalid("query %q is not of the form ! (function args...)", text)
	}
	syms, err := exprs[1].Symbols()
	if err != nil {
		return Call{}, err
	}
	if len(syms) == 0 {
		return Call{}, internalerr.Invalid("query %q has no function", text)
	}
	return Call{Function: syms[0], Args: syms[1:]}, nil
}
