package lanes

import (
	"context"
	"encoding/json"
	"strings"

	"recalld/pkg/llm"

	"google.golang.org/genai"
)

var askSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"answer": {Type: genai.TypeString},
	},
	Required: []string{"answer"},
}

const askSystem = `You answer a single question for a calling service.
Use ONLY the provided conversation history and pinned notes. If they do
not contain the answer, say so plainly. Respond with JSON only.`

// Answer runs the direct question lane used by the synchronous callback
// API. It takes flattened history lines and pin texts, no retrieval.
func Answer(ctx context.Context, client llm.Client, question string, history, pinTexts []string) (string, error) {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("CONVERSATION HISTORY:\n")
		for _, h := range history {
			b.WriteString(h + "\n")
		}
	}
	if len(pinTexts) > 0 {
		b.WriteString("\nPINNED NOTES:\n")
		for _, p := range pinTexts {
			b.WriteString("- " + p + "\n")
		}
	}
	b.WriteString("\nQUESTION:\n" + question + "\n")

	raw, err := client.GenerateJSON(ctx, askSystem, b.String(), askSchema)
	if err != nil {
		return "", &StageError{Stage: "ask", Reason: "model call failed", Err: err}
	}
	var res struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", &StageError{Stage: "ask", Reason: "invalid JSON output", Err: err}
	}
	if strings.TrimSpace(res.Answer) == "" {
		return "", &StageError{Stage: "ask", Reason: "missing answer"}
	}
	return res.Answer, nil
}
