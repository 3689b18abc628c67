package kinship

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kinship/pkg/kinship/answer"
	"github.com/cognicore/kinship/pkg/kinship/inference"
	"github.com/cognicore/kinship/pkg/kinship/inference/prolog"
	"github.com/cognicore/kinship/pkg/kinship/intent"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
	"github.com/cognicore/kinship/pkg/kinship/kb"
	"github.com/cognicore/kinship/pkg/kinship/maintenance"
	"github.com/cognicore/kinship/pkg/kinship/normalize"
)

const tree = `; test family
(Male Kebede) (Female Hana)
(Parent Kebede Chernet) (Parent Hana Chernet)
(Parent Kebede Kaleb) (Parent Hana Kaleb)
(Ethnicity Chernet Oromo 0.25)
`

// intents maps questions to canned model replies.
type intents map[string]string

func (m intents) Generate(ctx context.Context, prompt string) (string, error) {
	_, question, _ := strings.Cut(prompt, "User Question:")
	for q, reply := range m {
		if strings.Contains(question, q) {
			return reply, nil
		}
	}
	return "I can only answer family tree questions.", nil
}

type echo struct{}

func (echo) Generate(ctx context.Context, question string, values []normalize.Value) string {
	return "answer: " + normalize.Render(values)
}

type fixture struct {
	k    *Kinship
	path string
}

func newFixture(t *testing.T, replies intents) fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), kb.FactFileName)
	require.NoError(t, os.WriteFile(path, []byte(tree), 0o644))

	engine, err := prolog.New()
	require.NoError(t, err)
	session := kb.New(kb.Options{Candidates: []string{path}, Engine: engine, Rules: prolog.FamilyRules})

	ex, err := intent.NewExtractor(replies, intent.Options{})
	require.NoError(t, err)

	k, err := New(Options{Session: session, Intents: ex, Answers: echo{}})
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
	return fixture{k: k, path: path}
}

func TestAskSiblings(t *testing.T) {
	f := newFixture(t, intents{
		"siblings of Chernet": `{"function_name": "get-siblings", "args": ["Chernet"]}`,
	})
	resp, err := f.k.Ask(context.Background(), "Who are the siblings of Chernet?")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, intent.Intent{FunctionName: "get-siblings", Args: []string{"Chernet"}}, resp.Intent)
	assert.Equal(t, "! (get-siblings Chernet)", resp.Query)
	assert.Equal(t, inference.Result{{"Kaleb"}}, resp.Raw)
	assert.Equal(t, []normalize.Value{normalize.TextValue("Kaleb")}, resp.Normalized)
	assert.Equal(t, "answer: ['Kaleb']", resp.Answer)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"normalized":["Kaleb"]`)
}

func TestAskEthnicityIsNumeric(t *testing.T) {
	f := newFixture(t, intents{
		"Oromo": "```json\n{\"function_name\": \"get-ethnicity\", \"args\": [\"chernet\", \"oromo\"]}\n```",
	})
	resp, err := f.k.Ask(context.Background(), "What percent Oromo is Chernet?")
	require.NoError(t, err)
	assert.Equal(t, []normalize.Value{normalize.FloatValue(0.25)}, resp.Normalized)
}

func TestAskUnresolvedSkipsEngine(t *testing.T) {
	f := newFixture(t, intents{})
	_, err := f.k.Ask(context.Background(), "What is the capital of France?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalerr.ErrUnresolvedIntent))
	assert.Equal(t, "Could not understand the question. Please try again.", internalerr.UserMessage(err))

	h, err := f.k.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, h.Queries, 1)
	assert.Empty(t, h.Queries[0].Query)
	assert.NotEmpty(t, h.Queries[0].Error)
}

func TestAskWithRealAnswerFallback(t *testing.T) {
	f := newFixture(t, intents{"father of Hana": `{"function_name": "get-father", "args": ["Hana"]}`})
	f.k.answers = answer.NewWriter(nil, 0, nil)

	resp, err := f.k.Ask(context.Background(), "Who is the father of Hana?")
	require.NoError(t, err)
	assert.Equal(t, answer.NoInformation, resp.Answer)
}

func TestAddRelationshipThenAsk(t *testing.T) {
	f := newFixture(t, intents{"father of Kebede": `{"function_name": "get-father", "args": ["Kebede"]}`})
	ctx := context.Background()

	msg, err := f.k.AddRelationship(ctx, Relationship{Parent: "abebe", Child: "kebede", Gender: "male"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully added: Abebe is the parent of Kebede", msg)

	data, err := os.ReadFile(f.path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n(Male Abebe)\n(Parent Abebe Kebede)\n"))

	resp, err := f.k.Ask(ctx, "Who is the father of Kebede?")
	require.NoError(t, err)
	assert.Equal(t, inference.Result{{"Abebe"}}, resp.Raw)

	h, err := f.k.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, h.Facts, 1)
	assert.Equal(t, "(Male Abebe)\n(Parent Abebe Kebede)", h.Facts[0].Text)
}

func TestAddRelationshipRejectsBadInput(t *testing.T) {
	f := newFixture(t, intents{})
	ctx := context.Background()
	for _, r := range []Relationship{
		{Parent: "Abebe", Child: "Kebede", Gender: "other"},
		{Parent: "", Child: "Kebede", Gender: "Male"},
		{Parent: "Abebe Tesfaye", Child: "Kebede", Gender: "Male"},
	} {
		_, err := f.k.AddRelationship(ctx, r)
		assert.True(t, errors.Is(err, internalerr.ErrInvalidInput), "%+v: %v", r, err)
	}
	data, err := os.ReadFile(f.path)
	require.NoError(t, err)
	assert.Equal(t, tree, string(data))
}

func TestAddEthnicity(t *testing.T) {
	f := newFixture(t, intents{"Amhara": `{"function_name": "get-ethnicity", "args": ["Selam", "Amhara"]}`})
	ctx := context.Background()

	msg, err := f.k.AddEthnicity(ctx, Ethnicity{Name: "selam", Group: "amhara", Fraction: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "Successfully added: Selam is 50% Amhara", msg)

	resp, err := f.k.Ask(ctx, "What percent Amhara is Selam?")
	require.NoError(t, err)
	assert.Equal(t, []normalize.Value{normalize.FloatValue(0.5)}, resp.Normalized)

	_, err = f.k.AddEthnicity(ctx, Ethnicity{Name: "Selam", Group: "Tigray", Fraction: 1.5})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput))
}

func TestPercent(t *testing.T) {
	tests := map[float64]string{0: "0%", 0.25: "25%", 0.1: "10%", 1: "100%", 0.125: "12.5%"}
	for in, want := range tests {
		assert.Equal(t, want, Percent(in), "%v", in)
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t, intents{})
	var buf bytes.Buffer
	n, err := f.k.Export(context.Background(), maintenance.StreamWriter{W: &buf})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Contains(t, buf.String(), "(Ethnicity Chernet Oromo 0.25)")
}

func TestHistoryLatency(t *testing.T) {
	f := newFixture(t, intents{"siblings of Kaleb": `{"function_name": "get-siblings", "args": ["Kaleb"]}`})
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.k.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	_, err := f.k.Ask(context.Background(), "Who are the siblings of Kaleb?")
	require.NoError(t, err)

	h, err := f.k.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, h.Queries, 1)
	assert.Equal(t, time.Second, h.Queries[0].Latency)
	assert.Equal(t, "answer: ['Chernet']", h.Queries[0].Answer)
	assert.JSONEq(t, `["Chernet"]`, string(h.Queries[0].Normalized))
}

func TestFunctions(t *testing.T) {
	f := newFixture(t, intents{})
	assert.Len(t, f.k.Functions(), 26)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
