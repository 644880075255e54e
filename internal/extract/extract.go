// Package extract recovers structured JSON values from free-form text
// returned by a generative model.
//
// Extraction runs an ordered cascade of strategies and returns the first
// result that parses and has the requested top-level shape:
//
//   - direct: the text as-is
//   - fence: the text without a leading/trailing ``` code fence
//   - bracket_span: first opening delimiter to last closing delimiter
//   - balanced_scan: a string-aware delimiter scan that can close a
//     response truncated by an output-size limit
//
// A value is either returned fully parsed or an *ExtractionError is
// returned; partial results are never produced. Extract holds no state and
// is safe for concurrent use.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	// MaxInputBytes bounds how much text the cascade will look at.
	MaxInputBytes = 1 << 20
	// PreviewBytes bounds the raw-text preview carried by ExtractionError.
	PreviewBytes = 200
)

type Shape string

const (
	ShapeArray  Shape = "array"
	ShapeObject Shape = "object"
)

func (s Shape) opener() byte {
	if s == ShapeArray {
		return '['
	}
	return '{'
}

func (s Shape) closer() byte {
	if s == ShapeArray {
		return ']'
	}
	return '}'
}

func (s Shape) matches(v any) bool {
	switch s {
	case ShapeArray:
		_, ok := v.([]any)
		return ok
	case ShapeObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

const (
	StrategyDirect       = "direct"
	StrategyFence        = "fence"
	StrategyBracketSpan  = "bracket_span"
	StrategyBalancedScan = "balanced_scan"
)

type Result struct {
	Value    any
	Strategy string
}

// Array returns the value as a list. It is only meaningful for ShapeArray results.
func (r *Result) Array() []any {
	v, _ := r.Value.([]any)
	return v
}

// Object returns the value as a map. It is only meaningful for ShapeObject results.
func (r *Result) Object() map[string]any {
	v, _ := r.Value.(map[string]any)
	return v
}

// ExtractionError is returned when no strategy yields a value of the
// requested shape. It never carries the full raw text.
type ExtractionError struct {
	Shape     Shape
	RawLength int
	Preview   string
	Attempts  []string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no extraction strategy produced a valid %s (raw length %d, preview %q)",
		e.Shape, e.RawLength, e.Preview)
}

var (
	errNotJSON       = errors.New("not valid JSON")
	errNoDelimiters  = errors.New("no delimited span found")
	errShapeMismatch = errors.New("parsed value has the wrong top-level shape")
	errUnbalanced    = errors.New("mismatched closing delimiter")
	errUnknownShape  = errors.New("unknown shape")
)

type strategy struct {
	name string
	run  func(text string, shape Shape) (any, error)
}

var strategies = []strategy{
	{StrategyDirect, directParse},
	{StrategyFence, fenceParse},
	{StrategyBracketSpan, bracketSpanParse},
	{StrategyBalancedScan, balancedScanParse},
}

// Extract runs the strategy cascade over raw and returns the first value whose
// top-level type matches shape.
func Extract(raw string, shape Shape) (*Result, error) {
	if shape != ShapeArray && shape != ShapeObject {
		return nil, fmt.Errorf("extract: %w %q", errUnknownShape, shape)
	}
	fail := &ExtractionError{Shape: shape, RawLength: len(raw), Preview: Preview(raw, PreviewBytes)}
	if len(raw) > MaxInputBytes {
		fail.Attempts = append(fail.Attempts, fmt.Sprintf("input exceeds %d bytes", MaxInputBytes))
		return nil, fail
	}

	for _, s := range strategies {
		v, err := s.run(raw, shape)
		if err == nil && !shape.matches(v) {
			err = errShapeMismatch
		}
		if err != nil {
			fail.Attempts = append(fail.Attempts, s.name+": "+err.Error())
			continue
		}
		return &Result{Value: v, Strategy: s.name}, nil
	}
	return nil, fail
}

// Preview returns at most n bytes of s, cut on a rune boundary.
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func parse(text string) (any, error) {
	if !gjson.Valid(text) {
		return nil, errNotJSON
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func directParse(text string, _ Shape) (any, error) {
	return parse(text)
}

func fenceParse(text string, _ Shape) (any, error) {
	return parse(stripFences(text))
}

// stripFences removes a leading ``` marker (with its optional language tag)
// and a trailing ``` marker, plus surrounding whitespace.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		i := 0
		for i < len(s) && isFenceTagByte(s[i]) {
			i++
		}
		s = s[i:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isFenceTagByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c == '+' || c == '.'
}

func bracketSpanParse(text string, shape Shape) (any, error) {
	start := strings.IndexByte(text, shape.opener())
	end := strings.LastIndexByte(text, shape.closer())
	if start < 0 || end <= start {
		return nil, errNoDelimiters
	}
	return parse(text[start : end+1])
}

// balancedScanParse scans from the first opener only. An earlier balanced span
// such as the "[2]" in "Here are [2] items: [...]" is what gets returned;
// later openers are not retried.
func balancedScanParse(text string, shape Shape) (any, error) {
	start := strings.IndexByte(text, shape.opener())
	if start < 0 {
		return nil, errNoDelimiters
	}
	r := scanBalanced(text, start)
	switch {
	case r.balanced():
		return parse(text[start:r.end])
	case r.truncated():
		return parse(repairTruncated(text[start:], r))
	default:
		return nil, errUnbalanced
	}
}
