package store

import (
	"errors"
	"testing"

	"recalld/pkg/models"
)

func openTemp(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestSaveMessagePreservesLogOrder(t *testing.T) {
	openTemp(t)
	texts := []string{"first", "second", "third"}
	for i, txt := range texts {
		m := models.Message{ID: "m" + string(rune('a'+i)), Thread: "t1", Role: models.RoleUser, Content: txt, Type: models.TypeChat}
		if _, err := SaveMessage(m); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}
	msgs, err := ListMessages("t1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, txt := range texts {
		if msgs[i].Content != txt {
			t.Fatalf("position %d: expected %q got %q", i, txt, msgs[i].Content)
		}
	}
}

func TestGetMessageByID(t *testing.T) {
	openTemp(t)
	m := models.Message{ID: "m1", Thread: "t1", Role: models.RoleUser, Content: "hello", Type: models.TypeChat}
	if _, err := SaveMessage(m); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	got, err := GetMessage("m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Content != "hello" || got.Thread != "t1" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if _, err := GetMessage("missing"); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestMessagesScopedByThread(t *testing.T) {
	openTemp(t)
	if _, err := SaveMessage(models.Message{ID: "a", Thread: "t1", Role: models.RoleUser, Content: "one", Type: models.TypeChat}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if _, err := SaveMessage(models.Message{ID: "b", Thread: "t2", Role: models.RoleUser, Content: "two", Type: models.TypeChat}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	msgs, err := ListMessages("t1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "a" {
		t.Fatalf("thread isolation broken: %+v", msgs)
	}
}

func TestSingletonDocuments(t *testing.T) {
	openTemp(t)
	// missing docs read as zero values, not errors
	note, err := GetContext("t1")
	if err != nil || note.Note != "" {
		t.Fatalf("empty context: %v %+v", err, note)
	}
	if err := SetContext("t1", models.ContextNote{Note: "running summary"}); err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	note, err = GetContext("t1")
	if err != nil || note.Note != "running summary" {
		t.Fatalf("context roundtrip: %v %+v", err, note)
	}

	if err := SetPins("t1", models.PinSet{Items: []string{"m2", "m1"}}); err != nil {
		t.Fatalf("SetPins: %v", err)
	}
	set, err := GetPins("t1")
	if err != nil || len(set.Items) != 2 || set.Items[0] != "m2" {
		t.Fatalf("pins roundtrip: %v %+v", err, set)
	}

	if err := SetLastTurn("t1", models.LastTurnRecord{LastUserMessage: "hi"}); err != nil {
		t.Fatalf("SetLastTurn: %v", err)
	}
	rec, err := GetLastTurn("t1")
	if err != nil || rec.LastUserMessage != "hi" {
		t.Fatalf("lastturn roundtrip: %v %+v", err, rec)
	}
}

func TestApplyTurnBatchWritesAllDocuments(t *testing.T) {
	openTemp(t)
	pins := &models.PinSet{Items: []string{"m1"}}
	err := ApplyTurnBatch("t1", models.ContextNote{Note: "n"}, pins, models.LastTurnRecord{LastUserMessage: "q"})
	if err != nil {
		t.Fatalf("ApplyTurnBatch: %v", err)
	}
	note, _ := GetContext("t1")
	set, _ := GetPins("t1")
	rec, _ := GetLastTurn("t1")
	if note.Note != "n" || len(set.Items) != 1 || rec.LastUserMessage != "q" {
		t.Fatalf("batch not fully applied: %+v %+v %+v", note, set, rec)
	}
}

func TestApplyTurnBatchSkipsNilPins(t *testing.T) {
	openTemp(t)
	if err := SetPins("t1", models.PinSet{Items: []string{"keep"}}); err != nil {
		t.Fatalf("SetPins: %v", err)
	}
	if err := ApplyTurnBatch("t1", models.ContextNote{Note: "n"}, nil, models.LastTurnRecord{}); err != nil {
		t.Fatalf("ApplyTurnBatch: %v", err)
	}
	set, _ := GetPins("t1")
	if len(set.Items) != 1 || set.Items[0] != "keep" {
		t.Fatalf("nil pins should leave the stored set untouched: %+v", set)
	}
}

func TestApplyTurnBatchIsAtomic(t *testing.T) {
	openTemp(t)
	if err := SetContext("t1", models.ContextNote{Note: "before"}); err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	if err := SetLastTurn("t1", models.LastTurnRecord{LastUserMessage: "before"}); err != nil {
		t.Fatalf("SetLastTurn: %v", err)
	}

	batchFailpoint = func() error { return errors.New("injected failure") }
	defer func() { batchFailpoint = nil }()

	pins := &models.PinSet{Items: []string{"m9"}}
	err := ApplyTurnBatch("t1", models.ContextNote{Note: "after"}, pins, models.LastTurnRecord{LastUserMessage: "after"})
	if err == nil {
		t.Fatalf("expected injected failure")
	}

	note, _ := GetContext("t1")
	if note.Note != "before" {
		t.Fatalf("context changed despite failed batch: %+v", note)
	}
	set, _ := GetPins("t1")
	if len(set.Items) != 0 {
		t.Fatalf("pins changed despite failed batch: %+v", set)
	}
	rec, _ := GetLastTurn("t1")
	if rec.LastUserMessage != "before" {
		t.Fatalf("lastturn changed despite failed batch: %+v", rec)
	}
}

func TestThreadMetadata(t *testing.T) {
	openTemp(t)
	if err := SaveThread("t1", models.Thread{ID: "t1", Title: "demo", CreatedTS: 1}); err != nil {
		t.Fatalf("SaveThread: %v", err)
	}
	th, err := GetThread("t1")
	if err != nil || th.Title != "demo" {
		t.Fatalf("GetThread: %v %+v", err, th)
	}
	all, err := ListThreads()
	if err != nil || len(all) != 1 {
		t.Fatalf("ListThreads: %v %+v", err, all)
	}
}
