// Package validation holds request-shape checks shared by the HTTP
// handlers. Checks report which field failed so clients get actionable
// 400 responses.
package validation

import (
	"fmt"
	"strings"

	"recalld/pkg/models"
)

// MaxTextBytes bounds any single submitted text field.
const MaxTextBytes = 64 * 1024

// FieldError names the offending request field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidateTurnText checks the text of a turn submission.
func ValidateTurnText(text string) error {
	if strings.TrimSpace(text) == "" {
		return FieldError{Field: "text", Reason: "must not be empty"}
	}
	if len(text) > MaxTextBytes {
		return FieldError{Field: "text", Reason: fmt.Sprintf("exceeds %d bytes", MaxTextBytes)}
	}
	return nil
}

// AskHistoryItem is one prior exchange line in an ask request.
type AskHistoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskPin is one pinned line supplied by the caller.
type AskPin struct {
	Content string `json:"content"`
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string           `json:"question"`
	History  []AskHistoryItem `json:"history,omitempty"`
	Pins     []AskPin         `json:"pins,omitempty"`
}

// ValidateAsk returns every field problem in the request, empty when valid.
func ValidateAsk(req AskRequest) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(req.Question) == "" {
		errs = append(errs, FieldError{Field: "question", Reason: "must not be empty"})
	}
	if len(req.Question) > MaxTextBytes {
		errs = append(errs, FieldError{Field: "question", Reason: fmt.Sprintf("exceeds %d bytes", MaxTextBytes)})
	}
	for i, h := range req.History {
		if h.Role != models.RoleUser && h.Role != models.RoleAssistant && h.Role != models.RoleSystem {
			errs = append(errs, FieldError{
				Field:  fmt.Sprintf("history[%d].role", i),
				Reason: "must be \"user\", \"assistant\" or \"system\"",
			})
		}
		if strings.TrimSpace(h.Content) == "" {
			errs = append(errs, FieldError{
				Field:  fmt.Sprintf("history[%d].content", i),
				Reason: "must not be empty",
			})
		}
	}
	for i, p := range req.Pins {
		if strings.TrimSpace(p.Content) == "" {
			errs = append(errs, FieldError{
				Field:  fmt.Sprintf("pins[%d].content", i),
				Reason: "must not be empty",
			})
		}
	}
	return errs
}
