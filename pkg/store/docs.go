package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"recalld/pkg/logger"
	"recalld/pkg/models"

	"github.com/cockroachdb/pebble"
)

func contextKey(threadID string) []byte {
	return []byte("thread:" + threadID + ":doc:context")
}

func pinsKey(threadID string) []byte {
	return []byte("thread:" + threadID + ":doc:pins")
}

func lastTurnKey(threadID string) []byte {
	return []byte("thread:" + threadID + ":doc:lastturn")
}

func getDoc(key []byte, out interface{}) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, out); err != nil {
		return false, fmt.Errorf("invalid document JSON at %s: %w", string(key), err)
	}
	return true, nil
}

func setDoc(key []byte, v interface{}) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return db.Set(key, data, pebble.Sync)
}

// GetContext returns the running context note for a thread. A missing
// document yields an empty note, not an error.
func GetContext(threadID string) (models.ContextNote, error) {
	var n models.ContextNote
	_, err := getDoc(contextKey(threadID), &n)
	return n, err
}

// SetContext overwrites the running context note for a thread.
func SetContext(threadID string, n models.ContextNote) error {
	return setDoc(contextKey(threadID), n)
}

// GetPins returns the pin set for a thread, empty when never written.
func GetPins(threadID string) (models.PinSet, error) {
	var p models.PinSet
	_, err := getDoc(pinsKey(threadID), &p)
	return p, err
}

// SetPins overwrites the pin set for a thread.
func SetPins(threadID string, p models.PinSet) error {
	return setDoc(pinsKey(threadID), p)
}

// GetLastTurn returns the last-turn record for a thread.
func GetLastTurn(threadID string) (models.LastTurnRecord, error) {
	var r models.LastTurnRecord
	_, err := getDoc(lastTurnKey(threadID), &r)
	return r, err
}

// SetLastTurn overwrites the last-turn record for a thread.
func SetLastTurn(threadID string, r models.LastTurnRecord) error {
	return setDoc(lastTurnKey(threadID), r)
}

// batchFailpoint, when set, is invoked just before a turn batch commits.
// Returning an error aborts the batch with nothing applied. Test hook only.
var batchFailpoint func() error

// ApplyTurnBatch persists the triage outcome for a thread in a single
// atomic write: the new context note, optionally a replaced pin set, and
// the last-turn record carrying the user message under consideration.
// Either every document lands or none does.
func ApplyTurnBatch(threadID string, note models.ContextNote, pins *models.PinSet, last models.LastTurnRecord) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	b := db.NewBatch()
	defer b.Close()

	nb, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal context note: %w", err)
	}
	if err := b.Set(contextKey(threadID), nb, nil); err != nil {
		return err
	}
	if pins != nil {
		pb, err := json.Marshal(pins)
		if err != nil {
			return fmt.Errorf("failed to marshal pin set: %w", err)
		}
		if err := b.Set(pinsKey(threadID), pb, nil); err != nil {
			return err
		}
	}
	lb, err := json.Marshal(last)
	if err != nil {
		return fmt.Errorf("failed to marshal last-turn record: %w", err)
	}
	if err := b.Set(lastTurnKey(threadID), lb, nil); err != nil {
		return err
	}

	if batchFailpoint != nil {
		if err := batchFailpoint(); err != nil {
			logger.Warn("turn_batch_aborted", "thread", threadID, "error", err)
			return err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("turn_batch_commit_failed", "thread", threadID, "error", err)
		return err
	}
	logger.Info("turn_batch_applied", "thread", threadID, "pins_replaced", pins != nil)
	return nil
}
