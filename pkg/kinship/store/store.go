// Package store defines the interaction journal: every answered question
// and every appended fact is recorded for history and auditing. The fact
// file remains the source of truth for facts; the journal is never replayed.
package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store is the journal interface.
type Store interface {
	Close() error

	RecordQuery(ctx context.Context, r QueryRecord) error
	GetQuery(ctx context.Context, id string) (QueryRecord, error)
	RecentQueries(ctx context.Context, limit int) ([]QueryRecord, error)

	RecordFact(ctx context.Context, r FactRecord) error
	RecentFacts(ctx context.Context, limit int) ([]FactRecord, error)
}

// QueryRecord is one pass through the question pipeline. Fields after the
// failing stage are empty.
type QueryRecord struct {
	ID         string          `json:"id"`
	Question   string          `json:"question"`
	Function   string          `json:"function,omitempty"`
	Args       []string        `json:"args,omitempty"`
	Query      string          `json:"query,omitempty"`
	Raw        [][]string      `json:"raw,omitempty"`
	Normalized json.RawMessage `json:"normalized,omitempty"`
	Answer     string          `json:"answer,omitempty"`
	Error      string          `json:"error,omitempty"`
	AskedAt    time.Time       `json:"asked_at"`
	Latency    time.Duration   `json:"latency_ns"`
}

// FactRecord is one successful append to the fact file.
type FactRecord struct {
	ID      string    `json:"id"`
	Text    string    `json:"text"`
	AddedAt time.Time `json:"added_at"`
}

// DefaultLimit applies when a caller passes a non-positive limit.
const DefaultLimit = 20

// Limit normalizes a requested page size.
func Limit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}

// IDGenerator issues ULIDs that sort by creation time, including IDs
// created within the same millisecond.
type IDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDGenerator creates a generator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns an ID for t.
func (g *IDGenerator) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}
