package validation

import (
	"strings"
	"testing"
)

func TestValidateTurnText(t *testing.T) {
	if err := ValidateTurnText("hello"); err != nil {
		t.Fatalf("valid text rejected: %v", err)
	}
	if err := ValidateTurnText("   "); err == nil {
		t.Fatalf("blank text accepted")
	}
	if err := ValidateTurnText(strings.Repeat("x", MaxTextBytes+1)); err == nil {
		t.Fatalf("oversized text accepted")
	}
}

func TestValidateAskReportsEveryField(t *testing.T) {
	req := AskRequest{
		Question: "",
		History: []AskHistoryItem{
			{Role: "robot", Content: "hi"},
			{Role: "user", Content: "  "},
		},
		Pins: []AskPin{{Content: ""}},
	}
	errs := ValidateAsk(req)
	if len(errs) != 4 {
		t.Fatalf("expected 4 field errors, got %d: %v", len(errs), errs)
	}
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{"question", "history[0].role", "history[1].content", "pins[0].content"} {
		if !fields[want] {
			t.Fatalf("missing field error %q in %v", want, errs)
		}
	}
}

func TestValidateAskAcceptsGoodRequest(t *testing.T) {
	req := AskRequest{
		Question: "what is the budget?",
		History: []AskHistoryItem{
			{Role: "user", Content: "budget is 10k"},
			{Role: "assistant", Content: "noted"},
			{Role: "system", Content: "ERROR: earlier turn failed"},
		},
		Pins: []AskPin{{Content: "10k budget"}},
	}
	if errs := ValidateAsk(req); len(errs) != 0 {
		t.Fatalf("valid request rejected: %v", errs)
	}
}
