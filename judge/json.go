package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnparsable is returned when no structured payload can be recovered
// from a model response.
var ErrUnparsable = errors.New("no parsable JSON in model response")

// RecoverJSON unmarshals a model response into v, tolerating formatting
// noise around the structured payload. It strips markdown code fences,
// then falls back to boundary-character scanning: the substring from
// the first opening to the last closing delimiter.
func RecoverJSON(text string, v any) error {
	cleaned := stripFences(text)
	if cleaned == "" {
		return fmt.Errorf("%w: empty response", ErrUnparsable)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	opening, closing := "{", "}"
	if strings.HasPrefix(strings.TrimSpace(firstJSONToken(cleaned)), "[") {
		opening, closing = "[", "]"
	}
	start := strings.Index(cleaned, opening)
	end := strings.LastIndex(cleaned, closing)
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("%w: %s", ErrUnparsable, truncate(cleaned, 200))
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return nil
}

// firstJSONToken finds the earliest JSON delimiter so array payloads are
// scanned with the matching bracket pair.
func firstJSONToken(s string) string {
	obj := strings.Index(s, "{")
	arr := strings.Index(s, "[")
	if arr != -1 && (obj == -1 || arr < obj) {
		return s[arr:]
	}
	if obj != -1 {
		return s[obj:]
	}
	return ""
}

func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if idx := strings.Index(cleaned, "```json"); idx != -1 {
		cleaned = cleaned[idx+len("```json"):]
		if end := strings.Index(cleaned, "```"); end != -1 {
			cleaned = cleaned[:end]
		}
	} else if strings.Contains(cleaned, "```") {
		parts := strings.Split(cleaned, "```")
		if len(parts) >= 2 {
			cleaned = parts[1]
		}
	}
	return strings.TrimSpace(cleaned)
}

// decodeVerdict parses and sanitizes a raw model verdict: the correct
// answer letter is trimmed and upper-cased so comparisons against
// option keys stay exact.
func decodeVerdict(raw string) (Verdict, error) {
	var verdict Verdict
	if err := RecoverJSON(raw, &verdict); err != nil {
		return Verdict{}, err
	}
	verdict.CorrectAnswer = strings.ToUpper(strings.TrimSpace(verdict.CorrectAnswer))
	verdict.Explanation = strings.TrimSpace(verdict.Explanation)
	return verdict, nil
}
