package extract

import "strings"

type scanState int

const (
	outsideString scanState = iota
	insideString
	insideStringEscape
)

func (s scanState) String() string {
	switch s {
	case insideString:
		return "inside-string"
	case insideStringEscape:
		return "inside-string-after-escape"
	default:
		return "outside-string"
	}
}

// scanResult describes where a balanced span ends. When the text runs out
// before the span closes, end is -1 and open holds the unclosed delimiters,
// outermost first.
type scanResult struct {
	end      int
	open     []byte
	state    scanState
	mismatch bool
}

func (r scanResult) balanced() bool { return r.end >= 0 && !r.mismatch }

func (r scanResult) truncated() bool { return r.end < 0 && !r.mismatch }

// scanBalanced walks text from start, which must index an opening delimiter,
// until the delimiter depth returns to zero. Delimiters inside string
// literals are ignored.
func scanBalanced(text string, start int) scanResult {
	stack := make([]byte, 0, 8)
	state := outsideString
	for i := start; i < len(text); i++ {
		c := text[i]
		switch state {
		case insideStringEscape:
			state = insideString
		case insideString:
			switch c {
			case '\\':
				state = insideStringEscape
			case '"':
				state = outsideString
			}
		case outsideString:
			switch c {
			case '"':
				state = insideString
			case '{', '[':
				stack = append(stack, c)
			case '}', ']':
				if len(stack) == 0 || stack[len(stack)-1] != openerFor(c) {
					return scanResult{end: -1, mismatch: true, state: state}
				}
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return scanResult{end: i + 1, state: state}
				}
			}
		}
	}
	return scanResult{end: -1, open: stack, state: state}
}

// repairTruncated closes a span that was cut off mid-way: an open string is
// terminated, a dangling trailing comma is dropped and the minimal sequence of
// closing delimiters is appended.
func repairTruncated(span string, r scanResult) string {
	var b strings.Builder
	b.Grow(len(span) + len(r.open) + 1)

	switch r.state {
	case insideStringEscape:
		b.WriteString(span[:len(span)-1])
		b.WriteByte('"')
	case insideString:
		b.WriteString(span)
		b.WriteByte('"')
	default:
		trimmed := strings.TrimRight(span, " \t\r\n")
		b.WriteString(strings.TrimSuffix(trimmed, ","))
	}

	for i := len(r.open) - 1; i >= 0; i-- {
		b.WriteByte(closerFor(r.open[i]))
	}
	return b.String()
}

func openerFor(closer byte) byte {
	if closer == ']' {
		return '['
	}
	return '{'
}

func closerFor(opener byte) byte {
	if opener == '[' {
		return ']'
	}
	return '}'
}
