package llm

import (
	"errors"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Stance string `json:"stance"`
	}
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"stance":"SUPPORTS"}`, "SUPPORTS"},
		{"fenced", "```json\n{\"stance\":\"NEUTRAL\"}\n```", "NEUTRAL"},
		{"prose", `Sure! Here is the result: {"stance":"CONTRADICTS"} Hope this helps.`, "CONTRADICTS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p payload
			if err := DecodeJSON(tc.in, &p); err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if p.Stance != tc.want {
				t.Fatalf("stance = %s, want %s", p.Stance, tc.want)
			}
		})
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	var v map[string]any
	if err := DecodeJSON("no object at all", &v); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
	if err := DecodeJSON(`{"a": }`, &v); err == nil || errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected malformed JSON error, got %v", err)
	}
}
