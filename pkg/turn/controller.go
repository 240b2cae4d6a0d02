// Package turn drives one user message through the full pipeline:
// persist, triage, optional clarification short-circuit, retrieval,
// synthesis, reply persistence. It is the single error boundary of the
// pipeline and keeps at most one turn in flight per thread.
package turn

import (
	"context"
	"strings"
	"sync"
	"time"

	"recalld/pkg/lanes"
	"recalld/pkg/llm"
	"recalld/pkg/logger"
	"recalld/pkg/models"
	"recalld/pkg/pins"
	"recalld/pkg/retrieval"
	"recalld/pkg/store"
	"recalld/pkg/telemetry"
	"recalld/pkg/utils"
)

// Turn states, externally visible via Status.
const (
	StatusIdle       = "idle"
	StatusSaving     = "saving"
	StatusTriaged    = "triaged"
	StatusRetrieving = "retrieving"
	StatusAnswering  = "answering"
	StatusDone       = "done"
	StatusError      = "error"
)

// DecisionMarker at the start of a reply marks it as a formally recorded
// decision.
const DecisionMarker = "/decision"

// Outcome describes a completed turn.
type Outcome struct {
	Reply         models.Message
	Clarification bool
	Refused       bool
}

// Controller runs turns. One Controller serves all threads.
type Controller struct {
	mu       sync.Mutex
	inflight map[string]bool
	status   map[string]string

	client     llm.Client
	replyStyle string
}

// NewController builds a Controller around the given model client.
func NewController(client llm.Client, replyStyle string) *Controller {
	return &Controller{
		inflight:   map[string]bool{},
		status:     map[string]string{},
		client:     client,
		replyStyle: replyStyle,
	}
}

// Status returns the last observed turn state for a thread, "idle" when
// the thread has never run a turn.
func (c *Controller) Status(threadID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.status[threadID]; ok {
		return s
	}
	return StatusIdle
}

func (c *Controller) setStatus(threadID, s string) {
	c.mu.Lock()
	c.status[threadID] = s
	c.mu.Unlock()
}

// acquire marks a thread busy; reports false when a turn is already active.
func (c *Controller) acquire(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[threadID] {
		return false
	}
	c.inflight[threadID] = true
	return true
}

func (c *Controller) release(threadID string) {
	c.mu.Lock()
	delete(c.inflight, threadID)
	c.mu.Unlock()
}

// SubmitTurn runs the whole pipeline for one user message, synchronously.
// A second submission for the same thread while one is running returns
// ErrTurnInFlight. On any stage failure the turn moves to the error state,
// a best-effort system message is appended to the log, and the original
// error is returned; progress made before the failure is kept.
func (c *Controller) SubmitTurn(ctx context.Context, threadID, text string) (*Outcome, error) {
	if !c.acquire(threadID) {
		return nil, ErrTurnInFlight
	}
	defer c.release(threadID)

	logger.Info("turn_started", "thread", threadID)
	c.setStatus(threadID, StatusSaving)

	c.touchThread(threadID)

	// Step 1: persist the user message. Nothing else runs if this fails.
	msgType := models.TypeChat
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		msgType = models.TypeCommand
	}
	userMsg := models.Message{
		ID:      utils.GenID(),
		Thread:  threadID,
		Role:    models.RoleUser,
		Content: text,
		Type:    msgType,
	}
	if _, err := store.SaveMessage(userMsg); err != nil {
		c.setStatus(threadID, StatusError)
		telemetry.TurnFinished("error")
		return nil, &PersistenceError{Op: "save user message", Err: err}
	}

	out, err := c.runPipeline(ctx, threadID, text)
	if err != nil {
		c.setStatus(threadID, StatusError)
		telemetry.TurnFinished("error")
		c.appendErrorMessage(threadID, err)
		return nil, err
	}
	c.setStatus(threadID, StatusDone)
	switch {
	case out.Clarification:
		telemetry.TurnFinished("clarification")
	case out.Refused:
		telemetry.TurnFinished("refusal")
	default:
		telemetry.TurnFinished("answered")
	}
	logger.Info("turn_done", "thread", threadID, "clarification", out.Clarification, "refused", out.Refused)
	return out, nil
}

func (c *Controller) runPipeline(ctx context.Context, threadID, text string) (*Outcome, error) {
	// Step 2: triage, then apply its outcome atomically.
	note, err := store.GetContext(threadID)
	if err != nil {
		return nil, &PersistenceError{Op: "read context", Err: err}
	}
	last, err := store.GetLastTurn(threadID)
	if err != nil {
		return nil, &PersistenceError{Op: "read last turn", Err: err}
	}
	pinTexts, err := pins.Flatten(threadID)
	if err != nil {
		return nil, &PersistenceError{Op: "read pins", Err: err}
	}

	start := time.Now()
	tri, err := lanes.Triage(ctx, c.client, lanes.TriageInput{
		UserMessage: text,
		ContextNote: note.Note,
		LastTurn:    last,
		PinTexts:    pinTexts,
	})
	if err != nil {
		return nil, err
	}
	telemetry.StageObserved("triage", time.Since(start))

	newPins, err := pins.Reconcile(threadID, tri.UpdatedPins)
	if err != nil {
		return nil, &PersistenceError{Op: "reconcile pins", Err: err}
	}
	last.LastUserMessage = text
	if err := store.ApplyTurnBatch(threadID,
		models.ContextNote{Note: tri.NewContextNote}, newPins, last); err != nil {
		return nil, &PersistenceError{Op: "apply turn batch", Err: err}
	}
	c.setStatus(threadID, StatusTriaged)

	// Step 3: clarification short-circuits retrieval and synthesis.
	if tri.NeedsClarification {
		reply, err := c.saveReply(threadID, tri.ClarifyingQuestion, models.TypeChat, nil)
		if err != nil {
			return nil, err
		}
		// the pending next action survives a clarification exchange
		last.LastAssistantReply = tri.ClarifyingQuestion
		if err := store.SetLastTurn(threadID, last); err != nil {
			return nil, &PersistenceError{Op: "update last turn", Err: err}
		}
		return &Outcome{Reply: reply, Clarification: true}, nil
	}

	// Step 4: retrieval then synthesis.
	c.setStatus(threadID, StatusRetrieving)
	start = time.Now()
	snips, err := retrieval.Search(threadID, tri.SearchQueries)
	if err != nil {
		return nil, &PersistenceError{Op: "retrieval scan", Err: err}
	}
	telemetry.StageObserved("retrieval", time.Since(start))
	telemetry.ScanObserved(len(snips))

	c.setStatus(threadID, StatusAnswering)
	start = time.Now()
	syn, err := lanes.Synthesize(ctx, c.client, lanes.SynthesisInput{
		UserMessage: text,
		ContextNote: tri.NewContextNote,
		Snippets:    snips,
		PinTexts:    pinTexts,
		ReplyStyle:  c.replyStyle,
	})
	if err != nil {
		return nil, err
	}
	telemetry.StageObserved("synthesis", time.Since(start))

	replyType := models.TypeChat
	if tri.IntentCategory == models.TypeDecision || strings.HasPrefix(syn.ReplyText, DecisionMarker) {
		replyType = models.TypeDecision
	}
	reply, err := c.saveReply(threadID, syn.ReplyText, replyType, syn.SourceIDs)
	if err != nil {
		return nil, err
	}
	last.LastAssistantReply = syn.ReplyText
	if syn.NextAction != "" {
		last.NextAction = syn.NextAction
	}
	if err := store.SetLastTurn(threadID, last); err != nil {
		return nil, &PersistenceError{Op: "update last turn", Err: err}
	}
	return &Outcome{Reply: reply, Refused: syn.ReplyText == lanes.RefusalReply}, nil
}

func (c *Controller) saveReply(threadID, text, msgType string, sourceIDs []string) (models.Message, error) {
	reply := models.Message{
		ID:        utils.GenID(),
		Thread:    threadID,
		Role:      models.RoleAssistant,
		Content:   text,
		Type:      msgType,
		SourceIDs: sourceIDs,
	}
	saved, err := store.SaveMessage(reply)
	if err != nil {
		return reply, &PersistenceError{Op: "save assistant reply", Err: err}
	}
	return saved, nil
}

// appendErrorMessage leaves a system-role trace of a failed turn in the
// log. Its own failure is swallowed; the original error wins.
func (c *Controller) appendErrorMessage(threadID string, cause error) {
	m := models.Message{
		ID:      utils.GenID(),
		Thread:  threadID,
		Role:    models.RoleSystem,
		Content: "ERROR: " + cause.Error(),
		Type:    models.TypeChat,
	}
	if _, err := store.SaveMessage(m); err != nil {
		logger.Warn("error_message_append_failed", "thread", threadID, "error", err)
	}
}

// touchThread creates thread metadata on first contact and bumps the
// updated timestamp otherwise. Failures here never block a turn.
func (c *Controller) touchThread(threadID string) {
	now := time.Now().UTC().UnixNano()
	th, err := store.GetThread(threadID)
	if err != nil {
		th = models.Thread{ID: threadID, CreatedTS: now}
	}
	th.UpdatedTS = now
	if err := store.SaveThread(threadID, th); err != nil {
		logger.Warn("thread_touch_failed", "thread", threadID, "error", err)
	}
}
