package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "family tree") {
			t.Errorf("prompt missing from body: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Kaleb"}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), Options{
		APIKey:     "key",
		Model:      "gemini-test",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	out, err := g.Generate(context.Background(), "a family tree question")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Kaleb" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestGeminiDefaultModel(t *testing.T) {
	g, err := NewGemini(context.Background(), Options{APIKey: "key"})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	if g.Model() != DefaultGeminiModel {
		t.Fatalf("unexpected model %s", g.Model())
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Options{Provider: "gemini", APIKey: "key"}); err != nil {
		t.Fatalf("gemini: %v", err)
	}
	gen, err := Open(ctx, Options{Provider: "openai", BaseURL: "https://api.test/v1/chat/completions", Model: "m"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := gen.(*Client); !ok {
		t.Fatalf("expected *Client, got %T", gen)
	}
	if _, err := Open(ctx, Options{Provider: "openai"}); err == nil {
		t.Fatal("expected error for openai without endpoint")
	}
	if _, err := Open(ctx, Options{Provider: "claude"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
