// Package retrieval implements the keyword scan that feeds grounded
// synthesis. It is deliberately dumb: lowercase substring match over the
// thread log, no ranking model, no embeddings.
package retrieval

import (
	"strings"

	"recalld/pkg/models"
	"recalld/pkg/store"
)

// Search scans the full message log of a thread and returns every message
// whose content contains at least one search keyword as a case-insensitive
// substring. Queries are split on whitespace into keywords first, so a
// phrase like "api contract" matches on either word. Results keep log
// order and are deduplicated by message id; every match is returned, there
// is no pagination. Running the same search twice against an unchanged log
// yields identical results.
func Search(threadID string, queries []string) ([]models.Snippet, error) {
	var needles []string
	for _, q := range queries {
		for _, kw := range strings.Fields(strings.ToLower(q)) {
			needles = append(needles, kw)
		}
	}
	if len(needles) == 0 {
		return nil, nil
	}
	msgs, err := store.ListMessages(threadID)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []models.Snippet
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		hay := strings.ToLower(m.Content)
		for _, n := range needles {
			if strings.Contains(hay, n) {
				seen[m.ID] = struct{}{}
				out = append(out, models.Snippet{ID: m.ID, Text: m.Content, Role: m.Role, TS: m.TS})
				break
			}
		}
	}
	return out, nil
}
