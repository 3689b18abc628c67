package inference

import (
	"context"
	"strings"

	"github.com/cognicore/kinship/pkg/kinship/atom"
)

// Engine provides symbolic reasoning over the family facts.
// This interface allows swapping implementations (embedded Prolog, a MeTTa bridge, etc.)
type Engine interface {
	// LoadRules loads a rule program (engine-specific syntax)
	LoadRules(ctx context.Context, rules string) error

	// AddFacts asserts fact atoms; asserting a known fact again is a no-op
	AddFacts(ctx context.Context, facts ...atom.Fact) error

	// Reset drops every fact but keeps the loaded rules
	Reset(ctx context.Context) error

	// Solve evaluates one catalog function and returns its results in engine order
	// Example: Solve("get-siblings", ["Chernet"]) → ["Abebe", "Selam"]
	Solve(ctx context.Context, function string, args []string) ([]string, error)

	// Facts lists the facts currently asserted
	Facts(ctx context.Context) ([]atom.Fact, error)
}

// Result is the engine's native answer to a query: one inner sequence per
// evaluated expression, each holding the textual tokens it produced.
type Result [][]string

// String renders the result as nested lists: [[Abebe, Selam]].
func (r Result) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, inner := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('[')
		b.WriteString(strings.Join(inner, ", "))
		b.WriteByte(']')
	}
	b.WriteByte(']')
	return b.String()
}
