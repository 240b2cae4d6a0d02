package llm

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// Fake is an in-memory Client that replays scripted responses in order.
// It records every call so tests can assert on prompts and call counts.
type Fake struct {
	mu        sync.Mutex
	Responses [][]byte
	Errs      []error
	Calls     []FakeCall
}

// FakeCall records one GenerateJSON invocation.
type FakeCall struct {
	System string
	Prompt string
	Schema *genai.Schema
}

func (f *Fake) GenerateJSON(_ context.Context, system, prompt string, schema *genai.Schema) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.Calls)
	f.Calls = append(f.Calls, FakeCall{System: system, Prompt: prompt, Schema: schema})
	if i < len(f.Errs) && f.Errs[i] != nil {
		return nil, f.Errs[i]
	}
	if i < len(f.Responses) {
		return f.Responses[i], nil
	}
	return []byte(`{}`), nil
}

// CallCount returns how many times GenerateJSON was invoked.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
