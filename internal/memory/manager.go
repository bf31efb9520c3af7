package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/logger"
)

// InvariantViolationError reports a summary whose range does not extend
// contiguously from the prior one. Always fatal, never silently repaired:
// accepting it would corrupt the monotonic summarized-range invariant.
type InvariantViolationError struct {
	SessionID string
	Got       MessageRange
	WantFrom  int
	WantTo    int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("session %s: summarizer returned range [%d,%d], want [%d,%d]",
		e.SessionID, e.Got.From, e.Got.To, e.WantFrom, e.WantTo)
}

// Manager owns the compaction policy: it decides when to compact, selects
// the window, drives the summarizer, and applies the result to the state.
type Manager struct {
	tz         Tokenizer
	summarizer Summarizer
	threshold  int // token count above which compaction triggers
	recent     int // number of most recent messages never compacted
}

// NewManager creates a compaction manager. threshold and recent are the
// configured TOKEN_THRESHOLD and RECENT_MESSAGES_COUNT tunables.
func NewManager(tz Tokenizer, summarizer Summarizer, threshold, recent int) *Manager {
	return &Manager{
		tz:         tz,
		summarizer: summarizer,
		threshold:  threshold,
		recent:     recent,
	}
}

// Threshold returns the configured token threshold.
func (m *Manager) Threshold() int { return m.threshold }

// RecentCount returns the configured retained-window size.
func (m *Manager) RecentCount() int { return m.recent }

// TokenCount computes the session's current context size: the retained
// message log plus the serialized summary when one exists.
func (m *Manager) TokenCount(state *SessionState) int {
	total := CountMessageTokens(m.tz, state.Messages)
	if state.Summary != nil {
		if data, err := json.Marshal(state.Summary); err == nil {
			total += m.tz.CountTokens(string(data))
		}
	}
	return total
}

// Evaluate runs one compaction pass over the state. Below the threshold it
// is a no-op and the state is returned untouched. Above it, everything but
// the most recent window is folded into a fresh summary and the log is
// truncated to the retained tail. The returned summary is non-nil exactly
// when a compaction happened.
//
// A pass never recurses: if the retained tail alone still exceeds the
// threshold, that is accepted until a later request grows the log again.
func (m *Manager) Evaluate(ctx context.Context, state *SessionState) (*SessionSummary, error) {
	tokens := m.TokenCount(state)
	state.TotalTokens = tokens
	if tokens <= m.threshold {
		return nil, nil
	}

	if len(state.Messages) <= m.recent {
		// Nothing non-recent to fold; the tail is never compacted.
		return nil, nil
	}

	window := state.Messages[:len(state.Messages)-m.recent]
	baseIndex := state.BaseIndex()

	logger.Logger.Info("token threshold exceeded, compacting",
		"session", state.SessionID, "tokens", tokens, "threshold", m.threshold, "window", len(window))

	summary, err := m.summarizer.Summarize(ctx, window, state.Summary, baseIndex)
	if err != nil {
		return nil, fmt.Errorf("compaction failed: %w", err)
	}

	wantFrom := baseIndex
	wantTo := baseIndex + len(window) - 1
	if summary.MessageRangeSummarized.From != wantFrom || summary.MessageRangeSummarized.To != wantTo {
		return nil, &InvariantViolationError{
			SessionID: state.SessionID,
			Got:       summary.MessageRangeSummarized,
			WantFrom:  wantFrom,
			WantTo:    wantTo,
		}
	}
	if state.Summary != nil && summary.MessageRangeSummarized.To <= state.Summary.MessageRangeSummarized.To {
		return nil, &InvariantViolationError{
			SessionID: state.SessionID,
			Got:       summary.MessageRangeSummarized,
			WantFrom:  wantFrom,
			WantTo:    wantTo,
		}
	}

	retained := make([]Message, m.recent)
	copy(retained, state.Messages[len(state.Messages)-m.recent:])

	state.Summary = summary
	state.Messages = retained
	state.TotalTokens = m.TokenCount(state)

	logger.Logger.Info("compaction complete",
		"session", state.SessionID, "summarized_to", summary.MessageRangeSummarized.To, "tokens", state.TotalTokens)

	return summary, nil
}
