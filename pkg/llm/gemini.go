package llm

import (
	"context"
	"fmt"
	"time"

	"recalld/pkg/logger"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Gemini is the production Client backed by Google's Gemini API.
type Gemini struct {
	client    *genai.Client
	model     string
	timeout   time.Duration
	maxOutput int64
}

// NewGemini creates a Gemini client. The timeout bounds each generation
// call; zero means no per-call deadline beyond the caller's context.
// maxOutput bounds the size of any single model response in bytes; zero
// disables the bound.
func NewGemini(apiKey, model string, timeout time.Duration, maxOutput int64) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, timeout: timeout, maxOutput: maxOutput}, nil
}

// GenerateJSON asks the model for a single JSON document matching schema.
func (g *Gemini) GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema) ([]byte, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		logger.Error("gemini_generate_failed", "model", g.model, "error", err)
		return nil, &ProviderError{Stage: "generate", Err: err}
	}
	out, err := g.boundResponse(resp.Text())
	if err != nil {
		return nil, err
	}
	logger.Debug("gemini_generate_ok", "model", g.model, "elapsed", time.Since(start).String(), "bytes", len(out))
	return out, nil
}

// boundResponse rejects empty and oversized model output.
func (g *Gemini) boundResponse(text string) ([]byte, error) {
	if text == "" {
		return nil, &ProviderError{Stage: "generate", Err: fmt.Errorf("empty model response")}
	}
	if g.maxOutput > 0 && int64(len(text)) > g.maxOutput {
		return nil, &ProviderError{Stage: "generate", Err: fmt.Errorf("model response is %d bytes, limit is %d", len(text), g.maxOutput)}
	}
	return []byte(text), nil
}
