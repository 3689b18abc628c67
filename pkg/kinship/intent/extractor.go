package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/cognicore/kinship/pkg/kinship/atom"
	"github.com/cognicore/kinship/pkg/kinship/catalog"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
)

// Generator is the language model used for extraction.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures an Extractor.
type Options struct {
	// CacheSize bounds the resolved-intent cache; 0 disables it.
	CacheSize int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Extractor maps questions to catalog calls through a language model.
type Extractor struct {
	gen     Generator
	timeout time.Duration
	logger  *zap.Logger
	cache   *lru.Cache[string, Intent]
}

// NewExtractor creates an extractor around gen.
func NewExtractor(gen Generator, opts Options) (*Extractor, error) {
	if gen == nil {
		return nil, errors.AssertionFailedf("intent: nil generator")
	}
	e := &Extractor{gen: gen, timeout: opts.Timeout, logger: opts.Logger}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, Intent](opts.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "intent cache")
		}
		e.cache = cache
	}
	return e, nil
}

// Extract resolves question to an Intent whose function is in the catalog
// and whose argument count matches it. Any other outcome, including a
// failed model call, is ErrUnresolvedIntent. Calls are not retried.
func (e *Extractor) Extract(ctx context.Context, question string) (Intent, error) {
	key := cacheKey(question)
	if key == "" {
		return Intent{}, internalerr.Invalid("empty question")
	}
	if e.cache != nil {
		if in, ok := e.cache.Get(key); ok {
			e.logger.Debug("intent cache hit", zap.String("question", question), zap.Stringer("intent", in))
			return in, nil
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	reply, err := e.gen.Generate(ctx, Prompt(question))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Intent{}, internalerr.Deadline(err, "extract intent")
		}
		e.logger.Warn("intent extraction failed", zap.Error(err))
		return Intent{}, internalerr.Unresolved(err, "")
	}
	e.logger.Debug("intent reply", zap.String("question", question), zap.String("reply", reply))

	in, err := Decode(reply)
	if err != nil {
		return Intent{}, internalerr.Unresolved(err, reply)
	}
	if e.cache != nil {
		e.cache.Add(key, in)
	}
	return in, nil
}

func cacheKey(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}

// Decode reads a model reply into a validated Intent. The reply may be
// wrapped in a code fence. Arguments are trimmed and their first letter
// upper-cased; the rest of each name is kept as written.
func Decode(reply string) (Intent, error) {
	dec := json.NewDecoder(strings.NewReader(StripFences(reply)))
	dec.DisallowUnknownFields()

	var raw struct {
		FunctionName *string  `json:"function_name"`
		Args         []string `json:"args"`
	}
	if err := dec.Decode(&raw); err != nil {
		return Intent{}, errors.Wrap(err, "decode intent")
	}
	if dec.More() {
		return Intent{}, errors.New("decode intent: trailing data after object")
	}
	if raw.FunctionName == nil {
		return Intent{}, errors.New("decode intent: missing function_name")
	}

	in := Intent{FunctionName: strings.TrimSpace(*raw.FunctionName), Args: make([]string, len(raw.Args))}
	for i, a := range raw.Args {
		in.Args[i] = atom.Capitalize(a)
	}
	if _, err := catalog.Validate(in.FunctionName, in.Args); err != nil {
		return Intent{}, err
	}
	return in, nil
}

// StripFences removes Markdown code-fence markup: the first ```json block
// wins, then the first plain ``` block. Text without fences is trimmed.
func StripFences(text string) string {
	for _, fence := range []string{"```json", "```"} {
		if _, rest, ok := strings.Cut(text, fence); ok {
			body, _, _ := strings.Cut(rest, "```")
			return strings.TrimSpace(body)
		}
	}
	return strings.TrimSpace(text)
}

// Prompt builds the extraction prompt for question from the catalog.
func Prompt(question string) string {
	var buf bytes.Buffer
	buf.WriteString("You are a specialized parser for a family tree expert system.\n\n")
	buf.WriteString("Map the user's question to ONE of the following functions:\n")
	for _, f := range catalog.All() {
		fmt.Fprintf(&buf, "- %s: %s\n", f.Signature(), f.Description)
	}
	buf.WriteString(`
Rules:
1. Most functions take 1 argument (the name of the person).
2. 'get-ethnicity' takes 2 arguments: (PersonName, EthnicityGroup).
3. Ignore capitalization differences, but keep names in Proper Case.
4. If the question asks about a relationship (like "Who is X's brother"), map it to the getter (e.g. 'get-brothers').
5. If the question asks "What percent Oromo is Chernet?", map to 'get-ethnicity' with args ["Chernet", "Oromo"].
6. If the question is not about family tree relationships, reply formally that you are a family tree assistant and can only answer related questions.

Output strictly a JSON object:
{
    "function_name": "exact_function_name_from_list",
    "args": ["arg1", "arg2"]
}
`)
	fmt.Fprintf(&buf, "\nUser Question: %q\n", question)
	return buf.String()
}
