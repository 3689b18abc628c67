// Package intent turns a free-text question into a structured call against
// the function catalog.
package intent

import "strings"

// Intent is a structured call derived from a question.
type Intent struct {
	FunctionName string   `json:"function_name"`
	Args         []string `json:"args"`
}

// String renders "get-siblings [Chernet]" for logs and debug output.
func (i Intent) String() string {
	return i.FunctionName + " [" + strings.Join(i.Args, ", ") + "]"
}
