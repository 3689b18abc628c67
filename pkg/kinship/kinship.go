// Package kinship answers natural-language questions about a family tree.
//
// A question flows through five stages: intent extraction, query
// formatting, engine execution, result normalization and answer phrasing.
// Data entry appends fact atoms to the fact file and the live session.
package kinship

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/kinship/pkg/kinship/atom"
	"github.com/cognicore/kinship/pkg/kinship/catalog"
	"github.com/cognicore/kinship/pkg/kinship/inference"
	"github.com/cognicore/kinship/pkg/kinship/intent"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
	"github.com/cognicore/kinship/pkg/kinship/kb"
	"github.com/cognicore/kinship/pkg/kinship/maintenance"
	"github.com/cognicore/kinship/pkg/kinship/normalize"
	"github.com/cognicore/kinship/pkg/kinship/query"
	"github.com/cognicore/kinship/pkg/kinship/store"
	"github.com/cognicore/kinship/pkg/kinship/store/memstore"
)

// IntentExtractor resolves a question to a catalog call.
type IntentExtractor interface {
	Extract(ctx context.Context, question string) (intent.Intent, error)
}

// AnswerWriter phrases a result. It does not fail.
type AnswerWriter interface {
	Generate(ctx context.Context, question string, values []normalize.Value) string
}

// Kinship is the main facade
type Kinship struct {
	session *kb.Session
	intents IntentExtractor
	answers AnswerWriter
	journal store.Store
	ids     *store.IDGenerator
	logger  *zap.Logger
	now     func() time.Time
}

// Options configures a Kinship instance
type Options struct {
	Session *kb.Session
	Intents IntentExtractor
	Answers AnswerWriter
	// Journal records interactions; nil keeps them in memory.
	Journal store.Store
	Logger  *zap.Logger
}

// New creates a Kinship instance with the given dependencies
func New(opts Options) (*Kinship, error) {
	if opts.Session == nil || opts.Intents == nil || opts.Answers == nil {
		return nil, errors.AssertionFailedf("kinship: session, intents and answers are required")
	}
	k := &Kinship{
		session: opts.Session,
		intents: opts.Intents,
		answers: opts.Answers,
		journal: opts.Journal,
		ids:     store.NewIDGenerator(),
		logger:  opts.Logger,
		now:     time.Now,
	}
	if k.journal == nil {
		k.journal = memstore.New()
	}
	if k.logger == nil {
		k.logger = zap.NewNop()
	}
	return k, nil
}

// Close cleanly shuts down the journal
func (k *Kinship) Close() error {
	return k.journal.Close()
}

// Session returns the reasoning session, for watching the fact file.
func (k *Kinship) Session() *kb.Session { return k.session }

// Response is the answer to one question together with its trace.
type Response struct {
	ID         string            `json:"id"`
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Intent     intent.Intent     `json:"intent"`
	Query      string            `json:"query"`
	Raw        inference.Result  `json:"raw"`
	Normalized []normalize.Value `json:"normalized"`
}

// Ask runs question through the pipeline. A question that cannot be mapped
// to a catalog call fails with ErrUnresolvedIntent and never reaches the
// engine. Every attempt is journaled.
func (k *Kinship) Ask(ctx context.Context, question string) (Response, error) {
	start := k.now()
	resp := Response{ID: k.ids.New(start), Question: question}

	err := k.ask(ctx, &resp)
	k.record(ctx, resp, err, start)
	if err != nil {
		k.logger.Info("question failed", zap.String("question", question), zap.Error(err))
		return resp, err
	}
	k.logger.Info("question answered",
		zap.String("question", question),
		zap.String("query", resp.Query),
		zap.Int("results", len(resp.Normalized)))
	return resp, nil
}

func (k *Kinship) ask(ctx context.Context, resp *Response) error {
	in, err := k.intents.Extract(ctx, resp.Question)
	if err != nil {
		return err
	}
	resp.Intent = in

	q, err := query.Format(in)
	if err != nil {
		return err
	}
	resp.Query = q

	raw, err := k.session.Execute(ctx, q)
	if err != nil {
		return err
	}
	resp.Raw = raw
	resp.Normalized = normalize.Normalize(raw)
	resp.Answer = k.answers.Generate(ctx, resp.Question, resp.Normalized)
	return nil
}

func (k *Kinship) record(ctx context.Context, resp Response, askErr error, start time.Time) {
	rec := store.QueryRecord{
		ID:       resp.ID,
		Question: resp.Question,
		Function: resp.Intent.FunctionName,
		Args:     resp.Intent.Args,
		Query:    resp.Query,
		Raw:      resp.Raw,
		Answer:   resp.Answer,
		AskedAt:  start,
		Latency:  k.now().Sub(start),
	}
	if resp.Normalized != nil {
		if data, err := json.Marshal(resp.Normalized); err == nil {
			rec.Normalized = data
		}
	}
	if askErr != nil {
		rec.Error = askErr.Error()
	}
	if err := k.journal.RecordQuery(context.WithoutCancel(ctx), rec); err != nil {
		k.logger.Warn("journal write failed", zap.String("id", rec.ID), zap.Error(err))
	}
}

// Relationship is a parent/child pair entered by hand.
type Relationship struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
	// Gender of the parent: Male or Female.
	Gender string `json:"gender"`
}

// Ethnicity is an ethnic-group fraction entered by hand.
type Ethnicity struct {
	Name     string  `json:"name"`
	Group    string  `json:"group"`
	Fraction float64 `json:"fraction"`
}

// AddRelationship appends (Gender Parent) and (Parent Parent Child) and
// returns the confirmation message.
func (k *Kinship) AddRelationship(ctx context.Context, r Relationship) (string, error) {
	parent, child := atom.ProperCase(r.Parent), atom.ProperCase(r.Child)
	gender, err := atom.ParseGender(r.Gender)
	if err != nil {
		return "", err
	}
	text := atom.Join(atom.NewGender(gender, parent), atom.NewParent(parent, child))
	if err := k.addFacts(ctx, text); err != nil {
		return "", err
	}
	return "Successfully added: " + parent + " is the parent of " + child, nil
}

// AddEthnicity appends (Ethnicity Name Group Fraction) and returns the
// confirmation message.
func (k *Kinship) AddEthnicity(ctx context.Context, e Ethnicity) (string, error) {
	name, group := atom.ProperCase(e.Name), atom.ProperCase(e.Group)
	if math.IsNaN(e.Fraction) || e.Fraction < 0 || e.Fraction > 1 {
		return "", internalerr.Invalid("fraction must be between 0.0 and 1.0, got %v", e.Fraction)
	}
	text := atom.NewEthnicity(name, group, e.Fraction).String()
	if err := k.addFacts(ctx, text); err != nil {
		return "", err
	}
	return "Successfully added: " + name + " is " + Percent(e.Fraction) + " " + group, nil
}

func (k *Kinship) addFacts(ctx context.Context, text string) error {
	if err := k.session.Append(ctx, text); err != nil {
		return err
	}
	now := k.now()
	rec := store.FactRecord{ID: k.ids.New(now), Text: text, AddedAt: now}
	if err := k.journal.RecordFact(context.WithoutCancel(ctx), rec); err != nil {
		k.logger.Warn("journal write failed", zap.String("id", rec.ID), zap.Error(err))
	}
	return nil
}

// Percent renders a fraction as a percentage: 0.25 becomes "25%".
func Percent(f float64) string {
	return strconv.FormatFloat(math.Round(f*10000)/100, 'f', -1, 64) + "%"
}

// Functions lists the catalog.
func (k *Kinship) Functions() []catalog.Function {
	return catalog.All()
}

// History is the recent journal.
type History struct {
	Queries []store.QueryRecord `json:"queries"`
	Facts   []store.FactRecord  `json:"facts"`
}

// History returns up to limit recent questions and fact appends, newest
// first.
func (k *Kinship) History(ctx context.Context, limit int) (History, error) {
	queries, err := k.journal.RecentQueries(ctx, limit)
	if err != nil {
		return History{}, err
	}
	facts, err := k.journal.RecentFacts(ctx, limit)
	if err != nil {
		return History{}, err
	}
	return History{Queries: queries, Facts: facts}, nil
}

// Export writes the live fact set to w.
func (k *Kinship) Export(ctx context.Context, w maintenance.FactWriter) (int, error) {
	exporter := maintenance.FactExporter{Source: k.session, Writer: w}
	return exporter.Export(ctx)
}
