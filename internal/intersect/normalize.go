package intersect

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Format is the declared shape of an uploaded file.
type Format int

const (
	// FormatText is newline-delimited tokens.
	FormatText Format = iota
	// FormatJSONArray is a JSON array of strings.
	FormatJSONArray
)

func (f Format) String() string {
	switch f {
	case FormatJSONArray:
		return "json"
	default:
		return "text"
	}
}

// DetectFormat derives the declared format from a file name. Names ending in
// ".json" or ".json.txt" are JSON arrays; everything else is plain text.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".json.txt") {
		return FormatJSONArray
	}
	return FormatText
}

// isTrimmable matches Unicode whitespace plus the byte order mark, which
// editors like to prepend to exported lists. NEL (U+0085) is not whitespace
// for ECMAScript trim, so it stays part of the token.
func isTrimmable(r rune) bool {
	if r == '\u0085' {
		return false
	}
	return unicode.IsSpace(r) || r == '\uFEFF'
}

func trim(s string) string {
	return strings.TrimFunc(s, isTrimmable)
}

// Normalize converts raw file bytes into the canonical token sequence: one
// trimmed, non-empty token per line, in source order. Duplicates are kept.
func Normalize(raw []byte, format Format) ([]string, error) {
	if !utf8.Valid(raw) {
		return nil, ErrDecode
	}

	content := trim(string(raw))
	content = strings.ReplaceAll(content, "\r\n", "\n")

	if format == FormatJSONArray {
		joined, err := joinJSONArray(content)
		if err != nil {
			return nil, err
		}
		content = joined
	}

	tokens := splitTokens(content)
	if len(tokens) == 0 {
		return nil, ErrEmptyContent
	}
	return tokens, nil
}

// joinJSONArray parses content as a flat array of strings and joins the
// elements with newlines, producing the same shape as a text upload.
func joinJSONArray(content string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	items, ok := v.([]any)
	if !ok {
		return "", fmt.Errorf("%w: top-level value is not an array", ErrInvalidJSON)
	}

	elems := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return "", fmt.Errorf("%w: element %d is %s, want string", ErrInvalidJSON, i, jsonKind(item))
		}
		elems = append(elems, s)
	}
	return strings.Join(elems, "\n"), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func splitTokens(content string) []string {
	lines := strings.Split(content, "\n")
	tokens := make([]string, 0, len(lines))
	for _, line := range lines {
		if tok := trim(line); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Render produces the formatted artifact for a token sequence: tokens joined
// by newlines with a trailing newline. Normalizing it yields the same tokens.
func Render(tokens []string) []byte {
	if len(tokens) == 0 {
		return nil
	}
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
