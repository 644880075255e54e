// Package generation talks to the hosted text-generation model. A Generator
// returns the raw text of one completion; turning that text into structured
// data is left to the extract package.
package generation

import (
	"context"
	"errors"
	"fmt"
)

const (
	DefaultTopK = 40
	DefaultTopP = 0.95
)

// Params tunes a single generation call.
type Params struct {
	Temperature     float64
	MaxOutputTokens int
	// JSONOutput asks the backend for native JSON output. Backends may ignore it.
	JSONOutput bool
}

type Generator interface {
	Generate(ctx context.Context, prompt string, p Params) (string, error)
	Model() string
}

var (
	ErrEmptyResponse = errors.New("model returned no text")
	ErrBlocked       = errors.New("prompt was blocked by the model")
)

// GenerationError is returned for every failed call: transport errors,
// non-2xx statuses, upstream error payloads and empty completions alike.
type GenerationError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation %s failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
