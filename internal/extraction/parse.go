package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/spendbook/internal/domain"
)

// cleanModelJSON strips Markdown code fences around a model answer.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.Trim(s, "`")
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// trailingObject returns the last balanced JSON object in s that decodes.
// Each candidate is found by walking back from a '}' to its opening brace.
func trailingObject(s string) (string, bool) {
	for end := strings.LastIndexByte(s, '}'); end != -1; end = strings.LastIndexByte(s[:end], '}') {
		start, ok := openingBrace(s, end)
		if !ok {
			continue
		}
		if candidate := s[start : end+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// openingBrace returns the index of the '{' matching the '}' at end,
// ignoring braces inside string literals.
func openingBrace(s string, end int) (int, bool) {
	depth := 0
	inString := false
	for i := end; i >= 0; i-- {
		c := s[i]
		if c == '"' && !escaped(s, i) {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// escaped reports whether the byte at i is preceded by an odd run of
// backslashes.
func escaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// ParsePayload decodes the transactions object from free-form model text.
func ParsePayload(text string) (*Payload, error) {
	obj, ok := trailingObject(cleanModelJSON(text))
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response: %.200q", domain.ErrParse, text)
	}

	var p Payload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return nil, fmt.Errorf("%w: decode transactions: %v", domain.ErrParse, err)
	}
	if p.Transactions == nil {
		p.Transactions = []RawTransaction{}
	}
	return &p, nil
}
