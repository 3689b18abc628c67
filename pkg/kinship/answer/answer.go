// Package answer turns normalized engine results into a short prose reply.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/kinship/pkg/kinship/normalize"
)

// NoInformation is the reply for an empty result.
const NoInformation = "No information found."

// Generator is the language model used for phrasing.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Writer phrases answers. It never fails: when the model cannot be used it
// falls back to a deterministic rendering of the result.
type Writer struct {
	gen     Generator
	timeout time.Duration
	logger  *zap.Logger
}

// NewWriter creates a Writer. gen may be nil, in which case every answer is
// the fallback.
func NewWriter(gen Generator, timeout time.Duration, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{gen: gen, timeout: timeout, logger: logger}
}

// Generate answers question from values.
func (w *Writer) Generate(ctx context.Context, question string, values []normalize.Value) string {
	if w.gen == nil {
		return Fallback(values)
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	reply, err := w.gen.Generate(ctx, Prompt(question, values))
	if err != nil {
		w.logger.Warn("answer generation failed, using fallback", zap.Error(err))
		return Fallback(values)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Fallback(values)
	}
	return reply
}

// Fallback renders values without a model.
func Fallback(values []normalize.Value) string {
	if len(values) == 0 {
		return NoInformation
	}
	return "Raw Result: " + normalize.Render(values)
}

// Prompt builds the phrasing prompt.
func Prompt(question string, values []normalize.Value) string {
	return fmt.Sprintf(`User Question: %q
Database Result: %s

The result comes from a family tree reasoning engine.
1. If the result is empty or [], say %q
2. If the result is a number (like 0.25), format it as a percentage (25%%).
3. If the result is a list of names, list them clearly.

Write a brief, friendly response.
`, question, normalize.Render(values), NoInformation)
}
