// Package jsonx is the single JSON seam for the repository: goccy-backed
// encode/decode plus lenient decoding of model output.
package jsonx

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/kaptinlin/jsonrepair"
)

// Every caller goes through these aliases rather than a json import, so
// the backing implementation stays swappable.
var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	NewDecoder    = json.NewDecoder
	NewEncoder    = json.NewEncoder
)

type RawMessage = json.RawMessage
type Number = json.Number

// DecodeLenient decodes model-produced JSON into v, tolerating the usual
// decoration LLMs wrap around structured output. Stages, cheapest first:
// strict decode, markdown fence stripping, outermost-brace extraction, and
// finally mechanical repair via jsonrepair. The first stage that yields a
// successful decode wins; if none does, the strict decode error is returned.
func DecodeLenient(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("empty response text")
	}

	strictErr := Unmarshal([]byte(trimmed), v)
	if strictErr == nil {
		return nil
	}

	if stripped := StripFences(trimmed); stripped != trimmed {
		if err := Unmarshal([]byte(stripped), v); err == nil {
			return nil
		}
		trimmed = stripped
	}

	if extracted, ok := extractBraces(trimmed); ok {
		if err := Unmarshal([]byte(extracted), v); err == nil {
			return nil
		}
		trimmed = extracted
	}

	if repaired, err := jsonrepair.JSONRepair(trimmed); err == nil {
		if err := Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("lenient decode failed: %w", strictErr)
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, leaving other text untouched.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. ```json).
		body = body[idx+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// extractBraces returns the substring spanning the first '{' through the
// last '}', which recovers JSON objects embedded in surrounding prose.
func extractBraces(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
