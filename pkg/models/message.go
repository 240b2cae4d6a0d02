package models

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message types.
const (
	TypeChat     = "chat"
	TypeCommand  = "command"
	TypeDecision = "decision"
)

type Message struct {
	ID      string `json:"id"`
	Thread  string `json:"thread"`
	Role    string `json:"role"`
	Content string `json:"content"`
	// Type is one of chat|command|decision
	Type string `json:"type"`
	TS   int64  `json:"ts"`
	// SourceIDs lists the retrieved message ids an assistant reply was grounded on
	SourceIDs []string `json:"source_ids,omitempty"`
	// Pinned is derived from the thread's pin set at read time; never persisted
	Pinned bool `json:"pinned,omitempty"`
}

// Snippet is the retrieval view of a matched message.
type Snippet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Role string `json:"role"`
	TS   int64  `json:"created_at"`
}
