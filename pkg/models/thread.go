package models

type Thread struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last time thread activity changed
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

// ContextNote is the singleton per-thread running summary. It is replaced
// wholesale by every completed triage pass.
type ContextNote struct {
	Note string `json:"note"`
}

// PinSet is the singleton per-thread pin document. Items is ordered
// most-recently-pinned first; every id must refer to a message in the
// same thread.
type PinSet struct {
	Items []string `json:"items"`
}

// LastTurnRecord is the singleton per-thread record of the previous
// exchange, fed back into triage on the next turn.
type LastTurnRecord struct {
	LastUserMessage    string `json:"last_user_message,omitempty"`
	LastAssistantReply string `json:"last_assistant_reply,omitempty"`
	NextAction         string `json:"next_action,omitempty"`
}
