// Package memory owns per-session conversation state: the append-only
// message log, the structured summary derived from it, and the
// token-threshold compaction policy that keeps the two in balance.
package memory

import (
	"time"
)

// MessageRole is the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single conversation turn. Immutable once appended; ordering
// is append order and is the conversation timeline.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
}

// UserProfile captures preferences and constraints extracted from the
// conversation.
type UserProfile struct {
	Preferences []string `json:"preferences"`
	Constraints []string `json:"constraints"`
}

// MessageRange is an inclusive range of absolute message-log indexes.
type MessageRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SessionSummary is the structured summary a compaction pass folds older
// turns into. At most one live summary exists per session; it is replaced
// whole on each compaction, never merged in place.
type SessionSummary struct {
	UserProfile            UserProfile  `json:"user_profile"`
	KeyFacts               []string     `json:"key_facts"`
	Decisions              []string     `json:"decisions"`
	OpenQuestions          []string     `json:"open_questions"`
	Todos                  []string     `json:"todos"`
	MessageRangeSummarized MessageRange `json:"message_range_summarized"`
}

// SessionState is the complete per-session state persisted between
// requests.
type SessionState struct {
	SessionID   string          `json:"session_id"`
	Summary     *SessionSummary `json:"summary,omitempty"`
	Messages    []Message       `json:"messages"`
	TotalTokens int             `json:"total_tokens"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewSessionState returns an empty state for a fresh session id.
func NewSessionState(sessionID string) *SessionState {
	now := time.Now()
	return &SessionState{
		SessionID: sessionID,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BaseIndex is the absolute log index of Messages[0]. After a compaction
// the retained tail starts right after the summarized range.
func (s *SessionState) BaseIndex() int {
	if s.Summary == nil {
		return 0
	}
	return s.Summary.MessageRangeSummarized.To + 1
}

// Append adds a turn to the message log.
func (s *SessionState) Append(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
}

// RecentMessages returns the last count messages of the retained log.
func (s *SessionState) RecentMessages(count int) []Message {
	if count <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if len(s.Messages) <= count {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-count:]
}
