// Package kb owns the live reasoning session: it loads the fact file into
// an inference engine, runs formatted queries, and appends new facts to both
// the file and the session.
package kb

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/kinship/pkg/kinship/atom"
	"github.com/cognicore/kinship/pkg/kinship/catalog"
	"github.com/cognicore/kinship/pkg/kinship/inference"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
	"github.com/cognicore/kinship/pkg/kinship/query"
)

// FactFileName is the conventional name of the fact file.
const FactFileName = "family-tree.metta"

// DefaultCandidates is the default lookup order: the working directory
// first, then its data directory.
func DefaultCandidates() []string {
	return []string{FactFileName, "data/" + FactFileName}
}

// Options configures a Session.
type Options struct {
	// Candidates are tried in order; the first existing file is loaded.
	Candidates []string
	Engine     inference.Engine
	// Rules is the program loaded before any fact.
	Rules   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Session is the single handle on the reasoning engine. All operations are
// serialized by one mutex: engine replay is not reentrant.
type Session struct {
	mu       sync.Mutex
	opts     Options
	engine   inference.Engine
	logger   *zap.Logger
	path     string
	loaded   bool
	skipped  int
	rejected int
}

// New creates a session. Nothing is read until the first operation or an
// explicit Load.
func New(opts Options) *Session {
	if len(opts.Candidates) == 0 {
		opts.Candidates = DefaultCandidates()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{opts: opts, engine: opts.Engine, logger: logger}
}

// Load locates and loads the fact file if that has not happened yet.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLoaded(ctx)
}

// Path returns the fact file in use, or "" before loading.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Locate returns the first existing candidate.
func Locate(candidates []string) (string, error) {
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	err := errors.Wrapf(internalerr.ErrNotFound, "%s not found at %s", FactFileName, strings.Join(candidates, ", "))
	return "", errors.Mark(err, fs.ErrNotExist)
}

func (s *Session) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	if s.engine == nil {
		return errors.AssertionFailedf("kb: session has no engine")
	}
	path, err := Locate(s.opts.Candidates)
	if err != nil {
		return err
	}
	s.logger.Info("loading fact file", zap.String("path", path))
	if s.opts.Rules != "" {
		if err := s.engine.LoadRules(ctx, s.opts.Rules); err != nil {
			return err
		}
	}
	if err := s.loadFile(ctx, path); err != nil {
		return err
	}
	s.path = path
	s.loaded = true
	return nil
}

// readFactFile parses path without touching the engine.
func readFactFile(path string) (atom.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return atom.Document{}, errors.Wrapf(err, "read %s", path)
	}
	doc, err := atom.Parse(string(data))
	if err != nil {
		return atom.Document{}, errors.Wrapf(err, "parse %s", path)
	}
	return doc, nil
}

func (s *Session) loadFile(ctx context.Context, path string) error {
	doc, err := readFactFile(path)
	if err != nil {
		return err
	}
	return s.apply(ctx, path, doc)
}

func (s *Session) apply(ctx context.Context, path string, doc atom.Document) error {
	if err := s.engine.AddFacts(ctx, doc.Facts...); err != nil {
		return err
	}
	for _, r := range doc.Rejected {
		s.logger.Warn("invalid fact ignored",
			zap.String("path", path),
			zap.String("form", r.Expr.String()),
			zap.Error(r.Err))
	}
	s.skipped = len(doc.Skipped)
	s.rejected = len(doc.Rejected)
	s.logger.Info("fact file loaded",
		zap.String("path", path),
		zap.Int("facts", len(doc.Facts)),
		zap.Int("skipped_forms", len(doc.Skipped)),
		zap.Int("invalid_facts", len(doc.Rejected)))
	return nil
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// Execute runs a formatted query such as "! (get-siblings Chernet)".
// Engine errors are returned as they are, wrapped with the query text.
func (s *Session) Execute(ctx context.Context, q string) (inference.Result, error) {
	call, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	if _, err := catalog.Validate(call.Function, call.Args); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	values, err := s.engine.Solve(ctx, call.Function, call.Args)
	if err != nil {
		return nil, internalerr.Deadline(errors.Wrapf(err, "execute %s", q), "engine")
	}
	s.logger.Debug("query executed", zap.String("query", q), zap.Int("results", len(values)))
	return inference.Result{values}, nil
}

// Append writes factText to the fact file, preceded and followed by a
// newline, then replays it into the live session so that queries issued
// right after observe it.
//
// There is no rollback: if the replay fails after the write, the file holds
// facts the session does not.
func (s *Session) Append(ctx context.Context, factText string) error {
	facts, err := atom.ParseFacts(factText)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	if err := appendFile(s.path, factText); err != nil {
		return errors.Mark(errors.Wrapf(err, "append to %s", s.path), internalerr.ErrStoreUnavailable)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.engine.AddFacts(ctx, facts...); err != nil {
		return internalerr.Deadline(errors.Wrap(err, "replay appended facts"), "engine")
	}
	s.logger.Info("facts appended", zap.String("path", s.path), zap.Int("facts", len(facts)))
	return nil
}

func appendFile(path, text string) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = f.WriteString("\n" + text + "\n")
	return err
}

// Reload reads the fact file again and swaps it in for the session facts.
// If the file cannot be read or parsed the session keeps its current facts.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return s.ensureLoaded(ctx)
	}
	doc, err := readFactFile(s.path)
	if err != nil {
		return err
	}
	if err := s.engine.Reset(ctx); err != nil {
		return err
	}
	return s.apply(ctx, s.path, doc)
}

// Facts lists the facts of the live session.
func (s *Session) Facts(ctx context.Context) ([]atom.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.engine.Facts(ctx)
}

// Skipped reports how many non-fact forms the last load ignored.
func (s *Session) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Rejected reports how many invalid facts the last load ignored.
func (s *Session) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}
