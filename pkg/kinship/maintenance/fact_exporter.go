package maintenance

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/kinship/pkg/kinship/atom"
)

// FactWriter persists exported facts to a destination (file, stream, etc.).
type FactWriter interface {
	WriteFacts(ctx context.Context, content string) error
}

// FactSource lists the facts of a live session.
type FactSource interface {
	Facts(ctx context.Context) ([]atom.Fact, error)
}

// FactExporter renders the live fact set in fact-file grammar.
type FactExporter struct {
	Source FactSource
	Writer FactWriter
}

// Export writes every fact of the source and returns how many were written.
func (e *FactExporter) Export(ctx context.Context) (int, error) {
	if e.Source == nil || e.Writer == nil {
		return 0, errors.New("fact exporter: nil source or writer")
	}
	facts, err := e.Source.Facts(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list facts")
	}
	if err := e.Writer.WriteFacts(ctx, Render(facts)); err != nil {
		return 0, errors.Wrap(err, "write facts")
	}
	return len(facts), nil
}

// Render groups facts by predicate under a comment header, one per line.
func Render(facts []atom.Fact) string {
	groups := make(map[atom.Predicate][]atom.Fact)
	for _, f := range facts {
		groups[f.Predicate] = append(groups[f.Predicate], f)
	}
	var b strings.Builder
	for _, p := range atom.Predicates() {
		if len(groups[p]) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("; " + string(p) + "\n")
		b.WriteString(atom.Join(groups[p]...))
		b.WriteString("\n")
	}
	return b.String()
}

// StreamWriter writes to an io.Writer such as stdout.
type StreamWriter struct {
	W io.Writer
}

func (w StreamWriter) WriteFacts(ctx context.Context, content string) error {
	_, err := io.WriteString(w.W, content)
	return err
}

// FileWriter replaces the file at Path. The content is written to a
// sibling temporary file first and renamed into place.
type FileWriter struct {
	Path string
}

func (w FileWriter) WriteFacts(ctx context.Context, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(w.Path), filepath.Base(w.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), w.Path)
}
