package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/kinship/pkg/kinship/internalerr"
	"github.com/cognicore/kinship/pkg/kinship/store"
)

func openTemp(t *testing.T) (store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	st, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, path
}

func TestQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)

	asked := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	rec := store.QueryRecord{
		ID:         store.NewIDGenerator().New(asked),
		Question:   "What percent Oromo is Chernet?",
		Function:   "get-ethnicity",
		Args:       []string{"Chernet", "Oromo"},
		Query:      "! (get-ethnicity Chernet Oromo)",
		Raw:        [][]string{{"0.25"}},
		Normalized: json.RawMessage(`[0.25]`),
		Answer:     "Chernet is 25% Oromo.",
		AskedAt:    asked,
		Latency:    1500 * time.Millisecond,
	}
	if err := st.RecordQuery(ctx, rec); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}

	got, err := st.GetQuery(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetQuery: %v", err)
	}
	if got.Question != rec.Question || got.Query != rec.Query || got.Answer != rec.Answer {
		t.Errorf("text fields mismatch: %+v", got)
	}
	if len(got.Args) != 2 || got.Args[1] != "Oromo" {
		t.Errorf("args mismatch: %v", got.Args)
	}
	if len(got.Raw) != 1 || got.Raw[0][0] != "0.25" {
		t.Errorf("raw mismatch: %v", got.Raw)
	}
	if string(got.Normalized) != "[0.25]" {
		t.Errorf("normalized mismatch: %s", got.Normalized)
	}
	if !got.AskedAt.Equal(asked) {
		t.Errorf("asked_at mismatch: %v", got.AskedAt)
	}
	if got.Latency != rec.Latency {
		t.Errorf("latency mismatch: %v", got.Latency)
	}
}

func TestFailedQueryRecord(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)
	rec := store.QueryRecord{
		ID:       store.NewIDGenerator().New(time.Now()),
		Question: "What is the weather today?",
		Error:    "no intent resolved",
		AskedAt:  time.Now(),
	}
	if err := st.RecordQuery(ctx, rec); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}
	got, err := st.GetQuery(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetQuery: %v", err)
	}
	if got.Error != rec.Error || got.Args != nil || got.Raw != nil || got.Normalized != nil {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestGetQueryMissing(t *testing.T) {
	st, _ := openTemp(t)
	_, err := st.GetQuery(context.Background(), "missing")
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentOrderingAndReopen(t *testing.T) {
	ctx := context.Background()
	st, path := openTemp(t)
	ids := store.NewIDGenerator()
	start := time.Now()

	for i, q := range []string{"first", "second", "third"} {
		at := start.Add(time.Duration(i) * time.Millisecond)
		if err := st.RecordQuery(ctx, store.QueryRecord{ID: ids.New(at), Question: q, AskedAt: at}); err != nil {
			t.Fatal(err)
		}
		if err := st.RecordFact(ctx, store.FactRecord{ID: ids.New(at), Text: "(Male " + q + ")", AddedAt: at}); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	queries, err := reopened.RecentQueries(ctx, 2)
	if err != nil {
		t.Fatalf("RecentQueries: %v", err)
	}
	if len(queries) != 2 || queries[0].Question != "third" || queries[1].Question != "second" {
		t.Fatalf("unexpected order: %+v", queries)
	}

	facts, err := reopened.RecentFacts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentFacts: %v", err)
	}
	if len(facts) != 3 || facts[0].Text != "(Male third)" {
		t.Fatalf("unexpected facts: %+v", facts)
	}
}

func TestConcurrentRecords(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)
	ids := store.NewIDGenerator()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.RecordQuery(ctx, store.QueryRecord{ID: ids.New(time.Now()), Question: "q", AskedAt: time.Now()})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RecordQuery: %v", err)
		}
	}
	recent, err := st.RecentQueries(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 20 {
		t.Fatalf("expected 20 records, got %d", len(recent))
	}
}
