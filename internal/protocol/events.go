// Package protocol defines the newline-delimited JSON wire format between
// the pipeline and its consumers, with an encoder that frames events and
// a decoder that reassembles them from arbitrarily fragmented chunks.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/memory"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/query"
)

// EventType enumerates pipeline -> consumer events.
type EventType string

const (
	EventStep                EventType = "step"
	EventSummary             EventType = "summary"
	EventQueryUnderstanding  EventType = "query_understanding"
	EventClarifyingQuestions EventType = "clarifying_questions"
	EventAnswer              EventType = "answer"
)

// Event is implemented by every outgoing record. One record = one event;
// emission order is significant and "answer" is always last.
type Event interface {
	isEvent()
	GetType() EventType
}

// StepEvent reports pipeline progress as human-readable text.
type StepEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// NewStepEvent constructs a step event.
func NewStepEvent(text string) StepEvent {
	return StepEvent{Type: EventStep, Content: text}
}

func (StepEvent) isEvent() {}

// GetType implements Event.
func (e StepEvent) GetType() EventType { return e.Type }

// SummaryEvent carries a freshly compacted session summary, including the
// message range it folded.
type SummaryEvent struct {
	Type    EventType             `json:"type"`
	Content memory.SessionSummary `json:"content"`
}

// NewSummaryEvent constructs a summary event.
func NewSummaryEvent(summary memory.SessionSummary) SummaryEvent {
	return SummaryEvent{Type: EventSummary, Content: summary}
}

func (SummaryEvent) isEvent() {}

// GetType implements Event.
func (e SummaryEvent) GetType() EventType { return e.Type }

// QueryUnderstandingEvent carries the full query-analysis result.
type QueryUnderstandingEvent struct {
	Type    EventType           `json:"type"`
	Content query.Understanding `json:"content"`
}

// NewQueryUnderstandingEvent constructs a query_understanding event.
func NewQueryUnderstandingEvent(u query.Understanding) QueryUnderstandingEvent {
	return QueryUnderstandingEvent{Type: EventQueryUnderstanding, Content: u}
}

func (QueryUnderstandingEvent) isEvent() {}

// GetType implements Event.
func (e QueryUnderstandingEvent) GetType() EventType { return e.Type }

// ClarifyingQuestionsEvent carries questions the caller may surface to the
// user. Informational: the pipeline still produces a best-effort answer.
type ClarifyingQuestionsEvent struct {
	Type    EventType `json:"type"`
	Content []string  `json:"content"`
}

// NewClarifyingQuestionsEvent constructs a clarifying_questions event.
func NewClarifyingQuestionsEvent(questions []string) ClarifyingQuestionsEvent {
	return ClarifyingQuestionsEvent{Type: EventClarifyingQuestions, Content: questions}
}

func (ClarifyingQuestionsEvent) isEvent() {}

// GetType implements Event.
func (e ClarifyingQuestionsEvent) GetType() EventType { return e.Type }

// AnswerEvent carries the final answer text. At most one per run; its
// absence means no answer was produced, which is not a protocol error.
type AnswerEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// NewAnswerEvent constructs an answer event.
func NewAnswerEvent(text string) AnswerEvent {
	return AnswerEvent{Type: EventAnswer, Content: text}
}

func (AnswerEvent) isEvent() {}

// GetType implements Event.
func (e AnswerEvent) GetType() EventType { return e.Type }

// MarshalEvent serializes an event into JSON for NDJSON transport.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

type rawEvent struct {
	Type EventType `json:"type"`
}

// DecodeEvent converts one raw JSON record into a strongly typed event.
func DecodeEvent(data []byte) (Event, error) {
	var base rawEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch base.Type {
	case EventStep:
		var ev StepEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode step: %w", err)
		}
		return ev, nil
	case EventSummary:
		var ev SummaryEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		return ev, nil
	case EventQueryUnderstanding:
		var ev QueryUnderstandingEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode query_understanding: %w", err)
		}
		return ev, nil
	case EventClarifyingQuestions:
		var ev ClarifyingQuestionsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode clarifying_questions: %w", err)
		}
		return ev, nil
	case EventAnswer:
		var ev AnswerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode answer: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", base.Type)
	}
}
