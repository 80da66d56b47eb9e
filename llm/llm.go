// Package llm is the language-model collaborator: structured JSON completions and
// text embeddings against an OpenAI-compatible HTTP API.
package llm

import "context"

// JSONRequest describes one structured completion call.
type JSONRequest struct {
	System     string
	Prompt     string
	SchemaName string
	// Schema is a JSON schema; the model is asked to answer strictly in this shape.
	Schema map[string]any
}

// Completer returns the raw JSON text produced for a request.
type Completer interface {
	CompleteJSON(ctx context.Context, req JSONRequest) (string, error)
}

// Embedder converts texts into fixed-dimension vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
