// Package lanes implements the two model stages of the turn pipeline:
// triage (fast lane) and synthesis (deep lane). Each stage builds its own
// prompt, calls the model through llm.Client, and validates the structured
// output at the boundary.
package lanes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"recalld/pkg/llm"
	"recalld/pkg/logger"
	"recalld/pkg/models"

	"google.golang.org/genai"
)

// TriageInput carries everything the fast lane sees about the thread.
type TriageInput struct {
	UserMessage string
	ContextNote string
	LastTurn    models.LastTurnRecord
	PinTexts    []string
}

// TriageResult is the validated fast-lane output.
type TriageResult struct {
	NewContextNote     string   `json:"new_context_note"`
	UpdatedPins        []string `json:"updated_pins,omitempty"`
	SearchQueries      []string `json:"search_queries"`
	IntentCategory     string   `json:"intent_category"`
	NeedsClarification bool     `json:"needs_clarification"`
	ClarifyingQuestion string   `json:"clarifying_question,omitempty"`
}

var triageSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"new_context_note": {Type: genai.TypeString},
		"updated_pins": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
		"search_queries": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
		"intent_category":     {Type: genai.TypeString, Enum: []string{models.TypeChat, models.TypeCommand, models.TypeDecision}},
		"needs_clarification": {Type: genai.TypeBoolean},
		"clarifying_question": {Type: genai.TypeString},
	},
	Required: []string{"new_context_note", "search_queries", "intent_category", "needs_clarification"},
}

const triageSystem = `You are the triage stage of a conversational memory service.
You maintain a running context note for the thread, decide which prior
messages deserve pinning, and produce search queries for recall. You never
answer the user yourself. Respond with JSON only.`

func triagePrompt(in TriageInput) string {
	var b strings.Builder
	b.WriteString("CURRENT CONTEXT NOTE:\n")
	if in.ContextNote == "" {
		b.WriteString("(none yet)\n")
	} else {
		b.WriteString(in.ContextNote + "\n")
	}
	if in.LastTurn.LastUserMessage != "" || in.LastTurn.LastAssistantReply != "" {
		b.WriteString("\nPREVIOUS TURN:\n")
		b.WriteString("user: " + in.LastTurn.LastUserMessage + "\n")
		b.WriteString("assistant: " + in.LastTurn.LastAssistantReply + "\n")
		if in.LastTurn.NextAction != "" {
			b.WriteString("pending next action: " + in.LastTurn.NextAction + "\n")
		}
	}
	if len(in.PinTexts) > 0 {
		b.WriteString("\nPINNED MESSAGES:\n")
		for _, p := range in.PinTexts {
			b.WriteString("- " + p + "\n")
		}
	}
	b.WriteString("\nNEW USER MESSAGE:\n" + in.UserMessage + "\n")
	b.WriteString(`
Produce:
- new_context_note: the full replacement context note for this thread,
  folding in the new message. Keep it short and factual.
- updated_pins: only if the pin list should change, the exact contents of
  every message that should be pinned (full replacement). Omit otherwise.
- search_queries: 3 to 5 short keyword phrases for finding relevant prior
  messages in this thread.
- intent_category: "chat", "command", or "decision".
- needs_clarification: true only if the message cannot be acted on without
  asking the user something first.
- clarifying_question: exactly one direct question, required when
  needs_clarification is true.`)
	return b.String()
}

// Triage runs the fast lane and validates its output. A malformed result
// is a *StageError; the caller must treat it as fatal for the turn.
func Triage(ctx context.Context, client llm.Client, in TriageInput) (*TriageResult, error) {
	raw, err := client.GenerateJSON(ctx, triageSystem, triagePrompt(in), triageSchema)
	if err != nil {
		return nil, &StageError{Stage: "triage", Reason: "model call failed", Err: err}
	}
	var res TriageResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &StageError{Stage: "triage", Reason: "invalid JSON output", Err: err}
	}
	if strings.TrimSpace(res.NewContextNote) == "" {
		return nil, &StageError{Stage: "triage", Reason: "missing new_context_note"}
	}
	switch res.IntentCategory {
	case models.TypeChat, models.TypeCommand, models.TypeDecision:
	default:
		return nil, &StageError{Stage: "triage", Reason: fmt.Sprintf("invalid intent_category %q", res.IntentCategory)}
	}
	if res.NeedsClarification {
		if strings.TrimSpace(res.ClarifyingQuestion) == "" {
			return nil, &StageError{Stage: "triage", Reason: "needs_clarification without clarifying_question"}
		}
	} else {
		var queries []string
		for _, q := range res.SearchQueries {
			if s := strings.TrimSpace(q); s != "" {
				queries = append(queries, s)
			}
		}
		if len(queries) < 3 || len(queries) > 5 {
			return nil, &StageError{Stage: "triage", Reason: fmt.Sprintf("expected 3-5 search_queries, got %d", len(queries))}
		}
		res.SearchQueries = queries
	}
	logger.Debug("triage_ok", "intent", res.IntentCategory, "clarify", res.NeedsClarification, "queries", len(res.SearchQueries), "pins_proposed", len(res.UpdatedPins))
	return &res, nil
}
