package memstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/kinship/pkg/kinship/internalerr"
	"github.com/cognicore/kinship/pkg/kinship/store"
)

var _ store.Store = (*Store)(nil)

func TestQueriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	ids := store.NewIDGenerator()
	now := time.Now()

	for _, q := range []string{"Who is the father of Kaleb?", "Who are the cousins of Chernet?", "List the nieces of Genet."} {
		rec := store.QueryRecord{ID: ids.New(now), Question: q, AskedAt: now}
		if err := s.RecordQuery(ctx, rec); err != nil {
			t.Fatalf("RecordQuery: %v", err)
		}
	}

	recent, err := s.RecentQueries(ctx, 2)
	if err != nil {
		t.Fatalf("RecentQueries: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Question != "List the nieces of Genet." {
		t.Errorf("expected newest first, got %q", recent[0].Question)
	}
}

func TestGetQueryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := store.QueryRecord{
		ID:         "01J0000000000000000000000A",
		Question:   "Who are the siblings of Chernet?",
		Args:       []string{"Chernet"},
		Raw:        [][]string{{"Kaleb"}},
		Normalized: json.RawMessage(`["Kaleb"]`),
	}
	if err := s.RecordQuery(ctx, rec); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}
	rec.Args[0] = "mutated"
	rec.Raw[0][0] = "mutated"

	got, err := s.GetQuery(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetQuery: %v", err)
	}
	if got.Args[0] != "Chernet" || got.Raw[0][0] != "Kaleb" {
		t.Fatalf("stored record was aliased: %+v", got)
	}
	got.Args[0] = "again"
	again, _ := s.GetQuery(ctx, rec.ID)
	if again.Args[0] != "Chernet" {
		t.Fatal("returned record was aliased")
	}
}

func TestGetQueryMissing(t *testing.T) {
	_, err := New().GetQuery(context.Background(), "nope")
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordQueryRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := store.QueryRecord{ID: "x", Question: "q"}
	if err := s.RecordQuery(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordQuery(ctx, rec); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := s.RecordQuery(ctx, store.QueryRecord{Question: "q"}); err == nil {
		t.Fatal("expected error without id")
	}
}

func TestFacts(t *testing.T) {
	ctx := context.Background()
	s := New()
	ids := store.NewIDGenerator()
	for _, text := range []string{"(Male Abebe)\n(Parent Abebe Kebede)", "(Ethnicity Selam Amhara 0.5)"} {
		if err := s.RecordFact(ctx, store.FactRecord{ID: ids.New(time.Now()), Text: text, AddedAt: time.Now()}); err != nil {
			t.Fatalf("RecordFact: %v", err)
		}
	}
	facts, err := s.RecentFacts(ctx, 0)
	if err != nil {
		t.Fatalf("RecentFacts: %v", err)
	}
	if len(facts) != 2 || facts[0].Text != "(Ethnicity Selam Amhara 0.5)" {
		t.Fatalf("unexpected facts %+v", facts)
	}
}
