package turn

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"recalld/pkg/lanes"
	"recalld/pkg/llm"
	"recalld/pkg/models"
	"recalld/pkg/store"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func triageJSON(note string, queries ...string) []byte {
	q := `"` + strings.Join(queries, `", "`) + `"`
	return []byte(`{
		"new_context_note": "` + note + `",
		"search_queries": [` + q + `],
		"intent_category": "chat",
		"needs_clarification": false
	}`)
}

// Scenario: a normal turn persists the user message, applies the triage
// batch, retrieves, answers with sources, and updates the last-turn record.
func TestSubmitTurnFullPipeline(t *testing.T) {
	openStore(t)
	// seed prior history so retrieval has something to find
	_, err := store.SaveMessage(models.Message{ID: "m0", Thread: "t1", Role: models.RoleUser, Content: "we picked postgres for storage", Type: models.TypeChat})
	require.NoError(t, err)

	fake := &llm.Fake{Responses: [][]byte{
		triageJSON("user asks about storage", "postgres", "storage", "database"),
		[]byte(`{"reply_text": "you picked postgres", "source_ids": ["m0"], "next_action": "confirm the version"}`),
	}}
	ctrl := NewController(fake, "")

	out, err := ctrl.SubmitTurn(context.Background(), "t1", "what storage did we pick?")
	require.NoError(t, err)
	require.False(t, out.Clarification)
	require.False(t, out.Refused)
	require.Equal(t, "you picked postgres", out.Reply.Content)
	require.Equal(t, []string{"m0"}, out.Reply.SourceIDs)
	require.Equal(t, StatusDone, ctrl.Status("t1"))
	require.Equal(t, 2, fake.CallCount())

	msgs, err := store.ListMessages("t1")
	require.NoError(t, err)
	require.Len(t, msgs, 3) // seeded + user + assistant
	require.Equal(t, models.RoleUser, msgs[1].Role)
	require.Equal(t, models.RoleAssistant, msgs[2].Role)

	note, err := store.GetContext("t1")
	require.NoError(t, err)
	require.Equal(t, "user asks about storage", note.Note)

	rec, err := store.GetLastTurn("t1")
	require.NoError(t, err)
	require.Equal(t, "what storage did we pick?", rec.LastUserMessage)
	require.Equal(t, "you picked postgres", rec.LastAssistantReply)
	require.Equal(t, "confirm the version", rec.NextAction)
}

// Scenario: triage asks for clarification; retrieval and synthesis never run.
func TestSubmitTurnClarificationShortCircuit(t *testing.T) {
	openStore(t)
	fake := &llm.Fake{Responses: [][]byte{[]byte(`{
		"new_context_note": "ambiguous request",
		"search_queries": [],
		"intent_category": "chat",
		"needs_clarification": true,
		"clarifying_question": "Which report do you mean?"
	}`)}}
	ctrl := NewController(fake, "")

	out, err := ctrl.SubmitTurn(context.Background(), "t1", "send the report")
	require.NoError(t, err)
	require.True(t, out.Clarification)
	require.Equal(t, "Which report do you mean?", out.Reply.Content)
	require.Equal(t, 1, fake.CallCount(), "only the triage model call may run")
	require.Equal(t, StatusDone, ctrl.Status("t1"))

	rec, err := store.GetLastTurn("t1")
	require.NoError(t, err)
	require.Equal(t, "Which report do you mean?", rec.LastAssistantReply)
	require.Empty(t, rec.NextAction)
}

// A clarification exchange must not erase the pending next action, and a
// synthesis result without one keeps the previous value.
func TestNextActionSurvivesLaterTurns(t *testing.T) {
	openStore(t)
	require.NoError(t, store.SetLastTurn("t1", models.LastTurnRecord{NextAction: "review the doc"}))

	fake := &llm.Fake{Responses: [][]byte{[]byte(`{
		"new_context_note": "ambiguous",
		"search_queries": [],
		"intent_category": "chat",
		"needs_clarification": true,
		"clarifying_question": "Which doc?"
	}`)}}
	ctrl := NewController(fake, "")
	_, err := ctrl.SubmitTurn(context.Background(), "t1", "is it ready?")
	require.NoError(t, err)
	rec, err := store.GetLastTurn("t1")
	require.NoError(t, err)
	require.Equal(t, "review the doc", rec.NextAction)

	fake2 := &llm.Fake{Responses: [][]byte{
		triageJSON("status check", "doc", "review", "status"),
		[]byte(`{"reply_text": "still pending", "source_ids": []}`),
	}}
	ctrl2 := NewController(fake2, "")
	_, err = ctrl2.SubmitTurn(context.Background(), "t1", "any update on that?")
	require.NoError(t, err)
	rec, err = store.GetLastTurn("t1")
	require.NoError(t, err)
	require.Equal(t, "review the doc", rec.NextAction)
}

// Scenario: a recall question over empty history yields the verbatim
// refusal with no synthesis model call.
func TestSubmitTurnGroundedRefusal(t *testing.T) {
	openStore(t)
	fake := &llm.Fake{Responses: [][]byte{
		triageJSON("user asks about a decision", "budget", "decision", "meeting"),
	}}
	ctrl := NewController(fake, "")

	out, err := ctrl.SubmitTurn(context.Background(), "t1", "what did we decide about the budget?")
	require.NoError(t, err)
	require.True(t, out.Refused)
	require.Equal(t, lanes.RefusalReply, out.Reply.Content)
	require.Empty(t, out.Reply.SourceIDs)
	require.Equal(t, 1, fake.CallCount(), "refusal must not call the synthesis model")
}

func TestSubmitTurnCommandTypeFromSlashPrefix(t *testing.T) {
	openStore(t)
	fake := &llm.Fake{Responses: [][]byte{
		triageJSON("command noted", "status", "report", "daily"),
		[]byte(`{"reply_text": "done", "source_ids": []}`),
	}}
	ctrl := NewController(fake, "")

	_, err := ctrl.SubmitTurn(context.Background(), "t1", "/status daily report")
	require.NoError(t, err)
	msgs, err := store.ListMessages("t1")
	require.NoError(t, err)
	require.Equal(t, models.TypeCommand, msgs[0].Type)
}

func TestSubmitTurnDecisionReplyType(t *testing.T) {
	openStore(t)
	fake := &llm.Fake{Responses: [][]byte{
		[]byte(`{
			"new_context_note": "decision recorded",
			"search_queries": ["vendor", "contract", "choice"],
			"intent_category": "decision",
			"needs_clarification": false
		}`),
		[]byte(`{"reply_text": "/decision we will use vendor A", "source_ids": []}`),
	}}
	ctrl := NewController(fake, "")

	out, err := ctrl.SubmitTurn(context.Background(), "t1", "let's lock in vendor A")
	require.NoError(t, err)
	require.Equal(t, models.TypeDecision, out.Reply.Type)
}

func TestSubmitTurnStageErrorLeavesSystemTrace(t *testing.T) {
	openStore(t)
	fake := &llm.Fake{Responses: [][]byte{[]byte(`garbage`)}}
	ctrl := NewController(fake, "")

	_, err := ctrl.SubmitTurn(context.Background(), "t1", "hello")
	var se *lanes.StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StatusError, ctrl.Status("t1"))

	msgs, err2 := store.ListMessages("t1")
	require.NoError(t, err2)
	require.Len(t, msgs, 2) // user message + system error trace
	require.Equal(t, models.RoleSystem, msgs[1].Role)
	require.True(t, strings.HasPrefix(msgs[1].Content, "ERROR: "))
}

func TestSubmitTurnBatchFailureKeepsPriorDocs(t *testing.T) {
	openStore(t)
	require.NoError(t, store.SetContext("t1", models.ContextNote{Note: "before"}))

	// synthesis output references a snippet that cannot exist, so the turn
	// fails after the batch; here we fail earlier with a bad triage note.
	fake := &llm.Fake{Responses: [][]byte{[]byte(`{
		"new_context_note": "",
		"search_queries": ["a", "b", "c"],
		"intent_category": "chat",
		"needs_clarification": false
	}`)}}
	ctrl := NewController(fake, "")

	_, err := ctrl.SubmitTurn(context.Background(), "t1", "hi")
	require.Error(t, err)
	note, err2 := store.GetContext("t1")
	require.NoError(t, err2)
	require.Equal(t, "before", note.Note)
}

// blockingClient parks the first model call until released so a second
// submission can race against the in-flight guard.
type blockingClient struct {
	entered chan struct{}
	release chan struct{}
	inner   *llm.Fake
}

func (b *blockingClient) GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema) ([]byte, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.inner.GenerateJSON(ctx, system, prompt, schema)
}

func TestSubmitTurnRejectsConcurrentSubmission(t *testing.T) {
	openStore(t)
	bc := &blockingClient{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
		inner: &llm.Fake{Responses: [][]byte{
			triageJSON("n", "a", "b", "c"),
			[]byte(`{"reply_text": "ok", "source_ids": []}`),
		}},
	}
	ctrl := NewController(bc, "")

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.SubmitTurn(context.Background(), "t1", "first message")
		done <- err
	}()

	select {
	case <-bc.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("first turn never reached the model")
	}

	_, err := ctrl.SubmitTurn(context.Background(), "t1", "second message")
	require.ErrorIs(t, err, ErrTurnInFlight)

	close(bc.release)
	require.NoError(t, <-done)
	require.Equal(t, StatusDone, ctrl.Status("t1"))

	// after completion the guard is released
	fake := &llm.Fake{Responses: [][]byte{
		triageJSON("n2", "x", "y", "z"),
		[]byte(`{"reply_text": "ok again", "source_ids": []}`),
	}}
	ctrl2 := NewController(fake, "")
	_, err = ctrl2.SubmitTurn(context.Background(), "t1", "third message")
	require.NoError(t, err)
}

func TestStatusDefaultsToIdle(t *testing.T) {
	ctrl := NewController(&llm.Fake{}, "")
	if got := ctrl.Status("never-seen"); got != StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}

func TestSubmitTurnPersistFailureAbortsEverything(t *testing.T) {
	// store deliberately not opened: step 1 must fail with a
	// PersistenceError and the model must never be called
	fake := &llm.Fake{}
	ctrl := NewController(fake, "")
	_, err := ctrl.SubmitTurn(context.Background(), "t1", "hello")
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if fake.CallCount() != 0 {
		t.Fatalf("model called despite persistence failure")
	}
}
