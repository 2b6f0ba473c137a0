// Package jsonrepair recovers a JSON value from loosely formatted model output.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrNoJSON = errors.New("jsonrepair: no json value found")

	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// Clean returns the first candidate that parses as JSON, trying in order: the
// raw text, the body of a ``` fence, the outermost {...} span, the outermost
// [...] span. Trailing commas before a closing bracket are removed from each
// candidate that fails to parse as-is.
func Clean(raw string) (string, error) {
	for _, c := range candidates(raw) {
		if json.Valid([]byte(c)) {
			return c, nil
		}
		fixed := trailingComma.ReplaceAllString(c, "$1")
		if json.Valid([]byte(fixed)) {
			return fixed, nil
		}
	}
	return "", ErrNoJSON
}

// Unmarshal cleans raw and decodes it into out.
func Unmarshal(raw string, out any) error {
	clean, err := Clean(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(clean), out)
}

func candidates(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	out := []string{s}
	if f := stripFence(s); f != "" && f != s {
		out = append(out, f)
		s = f
	}
	if span := between(s, '{', '}'); span != "" {
		out = append(out, span)
	}
	if span := between(s, '[', ']'); span != "" {
		out = append(out, span)
	}
	return out
}

func stripFence(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return ""
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func between(s string, open, close byte) string {
	i := strings.IndexByte(s, open)
	j := strings.LastIndexByte(s, close)
	if i == -1 || j <= i {
		return ""
	}
	return s[i : j+1]
}
