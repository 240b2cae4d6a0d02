// Package llm abstracts the model provider behind a minimal JSON-mode
// generation interface so pipeline lanes never touch an SDK directly.
package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Client generates a single JSON document conforming to schema. The
// returned bytes are the raw model output; callers own unmarshaling and
// validation.
type Client interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema) ([]byte, error)
}

// ProviderError wraps any transport or API failure from the underlying
// provider. The pipeline treats it as fatal for the current turn.
type ProviderError struct {
	Stage string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider error in %s: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
