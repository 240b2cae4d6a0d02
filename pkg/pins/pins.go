// Package pins manages the per-thread pin set: explicit user toggles plus
// the reconciliation of model-proposed pins back onto real message ids.
package pins

import (
	"fmt"
	"strings"

	"recalld/pkg/logger"
	"recalld/pkg/models"
	"recalld/pkg/store"
)

// MaxPins bounds how many items a pin set may hold. Oldest pins fall off
// the end when the cap is exceeded.
const MaxPins = 50

// Toggle flips the pin state of a message within its thread. Pinning twice
// returns the set to its original state. The message must exist and belong
// to the given thread. Returns the new pinned state.
func Toggle(threadID, msgID string) (bool, error) {
	msg, err := store.GetMessage(msgID)
	if err != nil {
		return false, fmt.Errorf("message not found: %s", msgID)
	}
	if msg.Thread != threadID {
		return false, fmt.Errorf("message %s does not belong to thread %s", msgID, threadID)
	}
	set, err := store.GetPins(threadID)
	if err != nil {
		return false, err
	}
	for i, id := range set.Items {
		if id == msgID {
			set.Items = append(set.Items[:i], set.Items[i+1:]...)
			if err := store.SetPins(threadID, set); err != nil {
				return false, err
			}
			logger.Info("pin_removed", "thread", threadID, "msg_id", msgID)
			return false, nil
		}
	}
	set.Items = append([]string{msgID}, set.Items...)
	if len(set.Items) > MaxPins {
		set.Items = set.Items[:MaxPins]
	}
	if err := store.SetPins(threadID, set); err != nil {
		return false, err
	}
	logger.Info("pin_added", "thread", threadID, "msg_id", msgID)
	return true, nil
}

// Reconcile maps model-proposed pin texts back onto message ids and
// returns the replacement pin set. A proposal must match a message's
// content exactly (after trimming); currently pinned messages are checked
// first so re-proposed pins keep their existing ids. Proposals matching
// nothing are dropped silently. When no proposal survives, nil is returned
// and the caller should leave the stored set untouched.
func Reconcile(threadID string, proposals []string) (*models.PinSet, error) {
	if len(proposals) == 0 {
		return nil, nil
	}
	msgs, err := store.ListMessages(threadID)
	if err != nil {
		return nil, err
	}
	cur, err := store.GetPins(threadID)
	if err != nil {
		return nil, err
	}
	// candidates in pinned-first order
	pinnedIdx := map[string]struct{}{}
	for _, id := range cur.Items {
		pinnedIdx[id] = struct{}{}
	}
	var candidates []models.Message
	for _, id := range cur.Items {
		if m, err := store.GetMessage(id); err == nil {
			candidates = append(candidates, m)
		}
	}
	for _, m := range msgs {
		if _, p := pinnedIdx[m.ID]; !p && m.Role != models.RoleSystem {
			candidates = append(candidates, m)
		}
	}
	seen := map[string]struct{}{}
	var items []string
	for _, p := range proposals {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		for _, m := range candidates {
			if strings.TrimSpace(m.Content) == p {
				if _, dup := seen[m.ID]; !dup {
					seen[m.ID] = struct{}{}
					items = append(items, m.ID)
				}
				break
			}
		}
	}
	if len(items) == 0 {
		logger.Debug("pin_reconcile_empty", "thread", threadID, "proposals", len(proposals))
		return nil, nil
	}
	if len(items) > MaxPins {
		items = items[:MaxPins]
	}
	return &models.PinSet{Items: items}, nil
}

// Flatten resolves the current pin set to message contents, skipping ids
// whose messages have disappeared.
func Flatten(threadID string) ([]string, error) {
	set, err := store.GetPins(threadID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range set.Items {
		m, err := store.GetMessage(id)
		if err != nil {
			logger.Warn("pin_dangling", "thread", threadID, "msg_id", id)
			continue
		}
		out = append(out, m.Content)
	}
	return out, nil
}

// Mark sets the derived Pinned flag on messages that appear in the
// thread's pin set.
func Mark(threadID string, msgs []models.Message) ([]models.Message, error) {
	set, err := store.GetPins(threadID)
	if err != nil {
		return msgs, err
	}
	if len(set.Items) == 0 {
		return msgs, nil
	}
	pinned := map[string]struct{}{}
	for _, id := range set.Items {
		pinned[id] = struct{}{}
	}
	for i := range msgs {
		_, msgs[i].Pinned = pinned[msgs[i].ID]
	}
	return msgs, nil
}
