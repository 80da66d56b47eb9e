package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a completion contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in completion")

// DecodeJSON unmarshals a completion into out. Models occasionally wrap the object
// in markdown fences or prose, so the outermost {...} is tried as a fallback.
func DecodeJSON(text string, out any) error {
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("malformed JSON in completion: %w", err)
	}
	return nil
}
