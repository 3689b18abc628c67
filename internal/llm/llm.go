// Package llm adapts language-model providers to a single prompt-in,
// text-out interface.
package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Generator sends one prompt and returns the model's reply text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultGeminiModel = "gemini-2.5-flash"
)

// ErrEmptyReply is returned when a provider answers without any text.
var ErrEmptyReply = errors.New("llm: empty response")

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	// BaseURL is the chat-completions endpoint for the openai provider and
	// an optional API override for gemini.
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Open builds the Generator named by opts.Provider.
func Open(ctx context.Context, opts Options) (Generator, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderGemini:
		return NewGemini(ctx, opts)
	case ProviderOpenAI:
		c := &Client{
			BaseURL:    opts.BaseURL,
			APIKey:     opts.APIKey,
			Model:      opts.Model,
			HTTPClient: opts.HTTPClient,
		}
		if c.BaseURL == "" || c.Model == "" {
			return nil, errors.New("llm: base URL and model required")
		}
		return c, nil
	}
	return nil, errors.Newf("llm: unknown provider %q", opts.Provider)
}
