// internal/generation/gemini.go
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"menu-catalog-api/internal/extract"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.5-flash"

	maxResponseBytes = 4 << 20
	errorBodyPreview = 300
)

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls the generateContent REST endpoint directly.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &GeminiClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   model,
	}
}

func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	genConfig := map[string]interface{}{
		"temperature": p.Temperature,
		"topK":        DefaultTopK,
		"topP":        DefaultTopP,
	}
	if p.MaxOutputTokens > 0 {
		genConfig["maxOutputTokens"] = p.MaxOutputTokens
	}
	if p.JSONOutput {
		genConfig["responseMimeType"] = "application/json"
	}

	requestData := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": []map[string]interface{}{{"text": prompt}},
			},
		},
		"generationConfig": genConfig,
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return "", &GenerationError{Op: "encode", Err: err}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &GenerationError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &GenerationError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &GenerationError{Op: "read", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = extract.Preview(string(body), errorBodyPreview)
		}
		return "", &GenerationError{Op: "request", StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	if reason := gjson.GetBytes(body, "promptFeedback.blockReason"); reason.Exists() {
		return "", &GenerationError{Op: "response", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: %s", ErrBlocked, reason.String())}
	}

	var parts []string
	for _, t := range gjson.GetBytes(body, "candidates.0.content.parts.#.text").Array() {
		parts = append(parts, t.String())
	}
	text := strings.Join(parts, "")

	finishReason := gjson.GetBytes(body, "candidates.0.finishReason").String()
	fields := log.Fields{
		"event":         "generation_complete",
		"model":         c.model,
		"finish_reason": finishReason,
		"text_length":   len(text),
		"duration_ms":   time.Since(start).Milliseconds(),
	}
	if finishReason == "MAX_TOKENS" {
		log.WithFields(fields).Warn("Model output hit the token limit, response may be truncated")
	} else {
		log.WithFields(fields).Debug("Model call completed")
	}

	if strings.TrimSpace(text) == "" {
		return "", &GenerationError{Op: "response", StatusCode: resp.StatusCode, Err: ErrEmptyResponse}
	}
	return text, nil
}

