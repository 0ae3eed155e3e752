package inference

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/skillgrid/internal/matrix"
)

// Envelope is the structured answer shape models are asked for when
// structured output is enabled.
type Envelope struct {
	Answer    string            `json:"answer"`
	Citations []matrix.Citation `json:"citations,omitempty"`
}

var (
	fencePattern         = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// RepairJSON returns raw as valid JSON, fixing code fences, trailing commas
// and truncation, then deferring to jsonrepair. repaired reports whether any
// change was needed.
func RepairJSON(raw string) (out string, repaired bool, err error) {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if json.Valid([]byte(s)) {
		return s, s != raw, nil
	}

	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	s = closeOpenStructures(s)
	if json.Valid([]byte(s)) {
		return s, true, nil
	}

	fixed, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return s, true, fmt.Errorf("json repair failed: %w", err)
	}
	if !json.Valid([]byte(fixed)) {
		return fixed, true, fmt.Errorf("json repair produced invalid output")
	}
	return fixed, true, nil
}

// closeOpenStructures appends missing closers in LIFO order, ignoring
// brackets inside strings.
func closeOpenStructures(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

// DecodeAnswer extracts the answer line and citations from model output.
// Plain text passes through unchanged; JSON-looking output is decoded as an
// Envelope, repaired first when needed.
func DecodeAnswer(raw string) (answer string, citations []matrix.Citation) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "```") {
		return trimmed, nil
	}
	fixed, _, err := RepairJSON(trimmed)
	if err != nil {
		return trimmed, nil
	}
	var env Envelope
	if err := json.Unmarshal([]byte(fixed), &env); err != nil || strings.TrimSpace(env.Answer) == "" {
		return trimmed, nil
	}
	return strings.TrimSpace(env.Answer), env.Citations
}
