package lanes

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"recalld/pkg/llm"
	"recalld/pkg/logger"
	"recalld/pkg/models"

	"google.golang.org/genai"
)

// RefusalReply is returned verbatim when a recall-style question finds
// nothing in the thread history. Callers must not alter it.
const RefusalReply = "I cannot find that in our history. Please restate or provide more details."

// recallPattern flags questions that ask about prior history. Combined
// with an empty snippet set it triggers the grounded refusal without a
// model call.
var recallPattern = regexp.MustCompile(`(?i)\b(what|who|when|where|why|how|did we|tell me about)\b`)

// SynthesisInput carries the memory pack the deep lane answers from.
type SynthesisInput struct {
	UserMessage string
	ContextNote string
	Snippets    []models.Snippet
	PinTexts    []string
	ReplyStyle  string // "Short" when empty
}

// SynthesisResult is the validated deep-lane output.
type SynthesisResult struct {
	ReplyText  string   `json:"reply_text"`
	SourceIDs  []string `json:"source_ids"`
	NextAction string   `json:"next_action,omitempty"`
}

var synthesisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"reply_text": {Type: genai.TypeString},
		"source_ids": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
		"next_action": {Type: genai.TypeString},
	},
	Required: []string{"reply_text", "source_ids"},
}

const synthesisSystem = `You are the reply stage of a conversational memory service.
Answer using ONLY the memory pack you are given: the context note, pinned
messages, and retrieved snippets. Never invent facts that are not in the
pack. When citing a snippet, include its id in source_ids. If the user is
formally recording a decision, start the reply with "/decision ". Respond
with JSON only.`

func synthesisPrompt(in SynthesisInput) string {
	style := in.ReplyStyle
	if style == "" {
		style = "Short"
	}
	var b strings.Builder
	b.WriteString("CONTEXT NOTE:\n")
	if in.ContextNote == "" {
		b.WriteString("(none yet)\n")
	} else {
		b.WriteString(in.ContextNote + "\n")
	}
	if len(in.PinTexts) > 0 {
		b.WriteString("\nPINNED MESSAGES:\n")
		for _, p := range in.PinTexts {
			b.WriteString("- " + p + "\n")
		}
	}
	if len(in.Snippets) > 0 {
		b.WriteString("\nRETRIEVED SNIPPETS:\n")
		for _, s := range in.Snippets {
			b.WriteString(fmt.Sprintf("[%s] (%s) %s\n", s.ID, s.Role, s.Text))
		}
	}
	b.WriteString("\nUSER MESSAGE:\n" + in.UserMessage + "\n")
	b.WriteString("\nReply style: " + style + `.
Produce:
- reply_text: the reply to the user, grounded in the pack above.
- source_ids: the snippet ids the reply relies on (empty if none).
- next_action: a single concrete follow-up for the user, only when one
  naturally exists.`)
	return b.String()
}

// Synthesize runs the deep lane. A recall-style question with no snippets
// short-circuits to the refusal sentence without touching the model; the
// refusal is a success outcome, not an error.
func Synthesize(ctx context.Context, client llm.Client, in SynthesisInput) (*SynthesisResult, error) {
	if len(in.Snippets) == 0 && recallPattern.MatchString(in.UserMessage) {
		logger.Info("synthesis_refused_ungrounded")
		return &SynthesisResult{ReplyText: RefusalReply, SourceIDs: []string{}}, nil
	}
	raw, err := client.GenerateJSON(ctx, synthesisSystem, synthesisPrompt(in), synthesisSchema)
	if err != nil {
		return nil, &StageError{Stage: "synthesis", Reason: "model call failed", Err: err}
	}
	var res SynthesisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &StageError{Stage: "synthesis", Reason: "invalid JSON output", Err: err}
	}
	if strings.TrimSpace(res.ReplyText) == "" {
		return nil, &StageError{Stage: "synthesis", Reason: "missing reply_text"}
	}
	known := map[string]struct{}{}
	for _, s := range in.Snippets {
		known[s.ID] = struct{}{}
	}
	for _, id := range res.SourceIDs {
		if _, ok := known[id]; !ok {
			return nil, &StageError{Stage: "synthesis", Reason: fmt.Sprintf("source id %q not among retrieved snippets", id)}
		}
	}
	if res.SourceIDs == nil {
		res.SourceIDs = []string{}
	}
	logger.Debug("synthesis_ok", "sources", len(res.SourceIDs), "next_action", res.NextAction != "")
	return &res, nil
}
