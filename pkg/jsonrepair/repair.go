// Package jsonrepair extracts and repairs JSON payloads from free-form LLM
// output. Models preface JSON with commentary, wrap it in markdown fences,
// emit raw control characters inside string literals, and truncate output at
// the token limit; Normalize recovers a decodable JSON value from all of
// these, or fails with an *UnparseableError.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const excerptLen = 200

// UnparseableError is returned when no valid JSON can be recovered even after
// repair. Head and Tail carry excerpts of the original text for diagnosis.
type UnparseableError struct {
	Head string
	Tail string
	Err  error
}

func (e *UnparseableError) Error() string {
	return fmt.Sprintf("unparseable model output: %v (head: %q, tail: %q)", e.Err, e.Head, e.Tail)
}

func (e *UnparseableError) Unwrap() error { return e.Err }

// Normalize extracts a single JSON value from raw model output and returns it
// as valid JSON bytes. Already-valid JSON is returned unchanged, so Normalize
// is idempotent. Repair attempts, in order: markdown fence stripping, leading
// prose removal, trailing text removal, control-character escaping inside
// string literals, and structural closing of truncated output.
func Normalize(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}

	s = stripCodeFence(s)

	// Discard prose before the first structural opener.
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, unparseable(raw, errors.New("no JSON object or array found"))
	}
	s = s[start:]

	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}

	// Discard trailing text after the last matching closer.
	if t, ok := trimAfterCloser(s); ok && json.Valid([]byte(t)) {
		return []byte(t), nil
	}

	// Raw control characters inside string literals break decoding even when
	// the structure is fine.
	s = escapeControlChars(s)
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	if t, ok := trimAfterCloser(s); ok && json.Valid([]byte(t)) {
		return []byte(t), nil
	}

	// Still failing: assume truncation and close open structures.
	s = closeStructures(s)
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}

	return nil, unparseable(raw, errors.New("repair strategies exhausted"))
}

// Unmarshal normalizes raw and decodes the recovered JSON into v.
func Unmarshal(raw string, v any) error {
	data, err := Normalize(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return unparseable(raw, err)
	}
	return nil
}

func unparseable(raw string, err error) *UnparseableError {
	head := raw
	if len(head) > excerptLen {
		head = head[:excerptLen]
	}
	tail := raw
	if len(tail) > excerptLen {
		tail = tail[len(tail)-excerptLen:]
	}
	return &UnparseableError{Head: head, Tail: tail, Err: err}
}

// stripCodeFence removes a single markdown code fence (``` or ```json)
// wrapping the payload. An unterminated fence is treated as truncated output
// and its content kept.
func stripCodeFence(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	inner := s[open+3:]
	inner = strings.TrimPrefix(inner, "json")
	if close := strings.Index(inner, "```"); close >= 0 {
		inner = inner[:close]
	}
	return strings.TrimSpace(inner)
}

// trimAfterCloser cuts everything after the last closer matching the opening
// bracket. Reports false when no closer exists (fully truncated output).
func trimAfterCloser(s string) (string, bool) {
	closer := byte('}')
	if s[0] == '[' {
		closer = ']'
	}
	idx := strings.LastIndexByte(s, closer)
	if idx < 0 {
		return s, false
	}
	return s[:idx+1], true
}

// escapeControlChars escapes raw control bytes that appear inside string
// literals. A single pass toggles an in-string flag on unescaped quotes; a
// backslash consumes the following character. Bytes outside string literals
// are never altered.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
			b.WriteByte(c)
		case inString && c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inString = !inString
			b.WriteByte(c)
		case inString && c < 0x20:
			switch c {
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				fmt.Fprintf(&b, `\u%04x`, c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// closeStructures repairs truncated output: it closes a dangling string,
// strips a trailing comma, and appends the closers for every still-open
// brace/bracket, innermost first.
func closeStructures(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	// Truncation mid-escape leaves a dangling backslash.
	if escaped {
		s = s[:len(s)-1]
	}
	if inString {
		s += `"`
	}
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimSuffix(s, ",")

	var b strings.Builder
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
