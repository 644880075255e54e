package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/lexlapax/go-llms/pkg/llm/domain"
)

func newFakeGemini(t *testing.T, status int, body string, inspect func(r *http.Request, payload map[string]any)) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)
		if inspect != nil {
			inspect(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewGeminiClient(GeminiConfig{APIKey: "test-key", Model: "gemini-test", BaseURL: srv.URL, Timeout: 5 * time.Second})
}

func TestGeminiGenerateSendsParamsAndJoinsParts(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"[{\"a\":"},{"text":"1}]"}]},"finishReason":"STOP"}]}`
	c := newFakeGemini(t, http.StatusOK, body, func(r *http.Request, payload map[string]any) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("api key header missing")
		}
		cfg := payload["generationConfig"].(map[string]any)
		if cfg["temperature"] != 0.8 || cfg["maxOutputTokens"] != float64(3048) || cfg["topK"] != float64(40) {
			t.Errorf("unexpected generation config %v", cfg)
		}
		if cfg["responseMimeType"] != "application/json" {
			t.Errorf("JSON output hint not sent: %v", cfg)
		}
	})

	text, err := c.Generate(context.Background(), "hi", Params{Temperature: 0.8, MaxOutputTokens: 3048, JSONOutput: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != `[{"a":1}]` {
		t.Fatalf("unexpected text %q", text)
	}
	if c.Model() != "gemini-test" {
		t.Fatalf("unexpected model %q", c.Model())
	}
}

func TestGeminiGenerateOmitsJSONHint(t *testing.T) {
	c := newFakeGemini(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`,
		func(_ *http.Request, payload map[string]any) {
			cfg := payload["generationConfig"].(map[string]any)
			if _, ok := cfg["responseMimeType"]; ok {
				t.Errorf("unexpected responseMimeType")
			}
			if _, ok := cfg["maxOutputTokens"]; ok {
				t.Errorf("unexpected maxOutputTokens")
			}
		})
	if _, err := c.Generate(context.Background(), "hi", Params{Temperature: 0.9}); err != nil {
		t.Fatalf("generate: %v", err)
	}
}

func TestGeminiGenerateFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   int
		want   string
		is     error
	}{
		{name: "upstream error", status: 429, body: `{"error":{"code":429,"message":"quota exceeded"}}`, code: 429, want: "quota exceeded"},
		{name: "non json error", status: 502, body: `bad gateway`, code: 502, want: "bad gateway"},
		{name: "blocked", status: 200, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`, code: 200, is: ErrBlocked},
		{name: "empty", status: 200, body: `{"candidates":[{"content":{"parts":[]}}]}`, code: 200, is: ErrEmptyResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newFakeGemini(t, tc.status, tc.body, nil)
			_, err := c.Generate(context.Background(), "hi", Params{})
			var gerr *GenerationError
			if !errors.As(err, &gerr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if gerr.StatusCode != tc.code {
				t.Fatalf("expected status %d, got %d", tc.code, gerr.StatusCode)
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("expected errors.Is %v, got %v", tc.is, err)
			}
		})
	}
}

func TestGeminiErrorBodyCutOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", errorBodyPreview-1) + strings.Repeat("é", 10)
	c := newFakeGemini(t, http.StatusServiceUnavailable, body, nil)
	_, err := c.Generate(context.Background(), "hi", Params{})
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	msg := gerr.Err.Error()
	if !utf8.ValidString(msg) || !strings.HasSuffix(msg, "...") || len(msg) > errorBodyPreview+3 {
		t.Fatalf("bad preview %q", msg)
	}
}

func TestGeminiGenerateTransportFailure(t *testing.T) {
	c := NewGeminiClient(GeminiConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.Generate(context.Background(), "hi", Params{})
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Op != "request" {
		t.Fatalf("expected request GenerationError, got %v", err)
	}
}

func TestGeminiGenerateHonoursContext(t *testing.T) {
	c := newFakeGemini(t, http.StatusOK, `{}`, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Generate(ctx, "hi", Params{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeProvider struct {
	domain.Provider
	text string
	err  error
	opts domain.ProviderOptions
}

func (f *fakeProvider) Generate(_ context.Context, _ string, options ...domain.Option) (string, error) {
	for _, o := range options {
		o(&f.opts)
	}
	return f.text, f.err
}

func TestLLMSGeneratorPassesOptions(t *testing.T) {
	p := &fakeProvider{text: `{"ok":true}`}
	g := NewLLMSGenerator(p, "gemini-llms")
	text, err := g.Generate(context.Background(), "hi", Params{Temperature: 0.7, MaxOutputTokens: 8192})
	if err != nil || text != `{"ok":true}` {
		t.Fatalf("unexpected result %q %v", text, err)
	}
	if p.opts.Temperature != 0.7 || p.opts.MaxTokens != 8192 || p.opts.TopK != DefaultTopK {
		t.Fatalf("options not applied: %+v", p.opts)
	}
	if g.Model() != "gemini-llms" {
		t.Fatalf("unexpected model %q", g.Model())
	}
}

func TestLLMSGeneratorWrapsErrors(t *testing.T) {
	g := NewLLMSGenerator(&fakeProvider{err: errors.New("boom")}, "m")
	_, err := g.Generate(context.Background(), "hi", Params{})
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Op != "provider" {
		t.Fatalf("expected provider GenerationError, got %v", err)
	}

	g = NewLLMSGenerator(&fakeProvider{text: "  "}, "m")
	if _, err := g.Generate(context.Background(), "hi", Params{}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
