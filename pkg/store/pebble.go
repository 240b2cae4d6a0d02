package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"recalld/pkg/logger"
	"recalld/pkg/models"

	"github.com/cockroachdb/pebble"
)

var db *pebble.DB
var dbPath string

// seq provides a small counter to reduce key collisions when multiple
// messages share the same nanosecond timestamp.
var seq uint64

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func msgPrefix(threadID string) []byte {
	return []byte("thread:" + threadID + ":msg:")
}

func idxKey(msgID string) []byte {
	return []byte("msg:" + msgID)
}

// SaveMessage appends a message to a thread by inserting a new key with
// a sortable timestamp prefix, so log order equals creation order. It also
// writes an id index entry for by-id lookup. The message id and timestamp
// are assigned here when absent; the stored message is returned.
func SaveMessage(msg models.Message) (models.Message, error) {
	if db == nil {
		return msg, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if msg.Thread == "" {
		return msg, fmt.Errorf("message thread is required")
	}
	if msg.TS == 0 {
		msg.TS = time.Now().UTC().UnixNano()
	}
	s := atomic.AddUint64(&seq, 1)
	// Key format: thread:<threadID>:msg:<unix_nano_padded>-<seq>
	key := fmt.Sprintf("thread:%s:msg:%020d-%06d", msg.Thread, msg.TS, s)

	// derived flag never persists
	msg.Pinned = false

	data, err := json.Marshal(msg)
	if err != nil {
		return msg, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "thread", msg.Thread, "key", key, "error", err)
		return msg, err
	}
	if msg.ID != "" {
		if err := db.Set(idxKey(msg.ID), []byte(key), pebble.Sync); err != nil {
			logger.Error("save_message_index_failed", "msg_id", msg.ID, "error", err)
			return msg, err
		}
	}
	logger.Info("message_saved", "thread", msg.Thread, "key", key, "msg_id", msg.ID)
	return msg, nil
}

// ListMessages returns all messages for a thread in insertion order.
func ListMessages(threadID string, limit ...int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := msgPrefix(threadID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	max := -1
	if len(limit) > 0 {
		max = limit[0]
	}
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("list_messages_invalid_json", "thread", threadID, "key", string(iter.Key()), "error", err)
			return nil, fmt.Errorf("invalid message JSON: %w", err)
		}
		out = append(out, m)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, iter.Error()
}

// GetMessage returns the stored message for the given id or an error if
// none is found.
func GetMessage(msgID string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, fmt.Errorf("pebble not opened; call store.Open first")
	}
	ref, closer, err := db.Get(idxKey(msgID))
	if err != nil {
		return m, err
	}
	logKey := append([]byte(nil), ref...)
	closer.Close()
	v, closer, err := db.Get(logKey)
	if err != nil {
		return m, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid message JSON: %w", err)
	}
	return m, nil
}

// SaveThread stores simple thread metadata under a reserved key.
func SaveThread(threadID string, th models.Thread) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	key := []byte("thread:" + threadID + ":meta")
	data, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}
	if err := db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("save_thread_failed", "thread", threadID, "error", err)
		return err
	}
	logger.Info("thread_saved", "thread", threadID)
	return nil
}

// GetThread returns the stored thread metadata for a given thread ID.
func GetThread(threadID string) (models.Thread, error) {
	var th models.Thread
	if db == nil {
		return th, fmt.Errorf("pebble not opened; call store.Open first")
	}
	key := []byte("thread:" + threadID + ":meta")
	v, closer, err := db.Get(key)
	if err != nil {
		return th, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &th); err != nil {
		return th, fmt.Errorf("invalid thread JSON: %w", err)
	}
	return th, nil
}

// ListThreads returns all saved thread metadata values.
func ListThreads() ([]models.Thread, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("thread:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Thread
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var th models.Thread
		if err := json.Unmarshal(iter.Value(), &th); err != nil {
			continue
		}
		out = append(out, th)
	}
	return out, iter.Error()
}

// ListKeys returns all keys (as strings) that start with the given prefix.
// If prefix is empty it returns all keys in the DB.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	pfx := []byte(prefix)
	if len(pfx) == 0 {
		for iter.First(); iter.Valid(); iter.Next() {
			out = append(out, string(iter.Key()))
		}
		return out, iter.Error()
	}
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(iter.Key()))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key. Used by admin tooling.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}
