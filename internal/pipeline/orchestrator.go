// Package pipeline sequences one user query through compaction, query
// understanding, and answer generation, mirroring every stage to the
// caller as a live event stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/llm"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/logger"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/memory"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/protocol"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/query"
)

const answerSystem = `You are a helpful chat assistant. Use the provided context to answer the user's question.
If the query was rewritten for clarity, use the rewritten version.
Be concise and helpful.`

// DefaultCallTimeout bounds each model invocation. A timeout fails only
// the stage it occurred in, never the whole process.
const DefaultCallTimeout = 60 * time.Second

// Orchestrator runs the chat pipeline: load, compact, understand,
// generate, persist. One run per request; runs for the same session are
// serialized, distinct sessions proceed in parallel.
type Orchestrator struct {
	store   memory.Store
	manager *memory.Manager
	engine  *query.Engine
	client  llm.LLMClient
	model   string

	callTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(store memory.Store, manager *memory.Manager, engine *query.Engine, client llm.LLMClient, model string) *Orchestrator {
	return &Orchestrator{
		store:       store,
		manager:     manager,
		engine:      engine,
		client:      client,
		model:       model,
		callTimeout: DefaultCallTimeout,
		locks:       make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing Load-Run-Save cycles for one
// session id. Two concurrent runs interleaving compaction decisions would
// corrupt the monotonic summarized-range invariant.
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[sessionID] = lock
	}
	return lock
}

// Run processes one query for a session. Events arrive on the first
// channel in emission order; a fatal error, if any, arrives on the second.
// Both channels are closed when the run terminates. A run that closes
// without an answer event and without an error completed without an
// answer. Cancelling ctx stops event emission and abandons the remaining
// stages; state already saved stays saved.
func (o *Orchestrator) Run(ctx context.Context, sessionID, userQuery string) (<-chan protocol.Event, <-chan error) {
	events := make(chan protocol.Event, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errCh)

		lock := o.sessionLock(sessionID)
		lock.Lock()
		defer lock.Unlock()

		if err := o.run(ctx, sessionID, userQuery, events); err != nil {
			errCh <- err
		}
	}()

	return events, errCh
}

// Session returns the persisted state for a session id.
func (o *Orchestrator) Session(sessionID string) (*memory.SessionState, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return o.store.Load(sessionID)
}

// DeleteSession removes a session's persisted state. Deleting a session
// that does not exist is not an error.
func (o *Orchestrator) DeleteSession(sessionID string) error {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return o.store.Delete(sessionID)
}

func (o *Orchestrator) run(ctx context.Context, sessionID, userQuery string, events chan<- protocol.Event) error {
	emit := func(ev protocol.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Load. A store failure aborts before any event is emitted so the
	// caller can tell it apart from "ran, produced no answer".
	state, err := o.store.Load(sessionID)
	if err != nil {
		if !errors.Is(err, memory.ErrNotFound) {
			return &FatalError{Stage: StageLoad, Err: err}
		}
		state = memory.NewSessionState(sessionID)
	}

	if !emit(protocol.NewStepEvent("Loading session memory...")) {
		return nil
	}

	tokens := o.manager.TokenCount(state)
	if !emit(protocol.NewStepEvent(fmt.Sprintf("Token count: %d/%d", tokens, o.manager.Threshold()))) {
		return nil
	}

	// Compact. Failure here is fatal: proceeding with an inconsistent or
	// missing summary would corrupt the session's data-model invariants.
	if tokens > o.manager.Threshold() {
		if !emit(protocol.NewStepEvent("Token threshold exceeded, triggering summarization...")) {
			return nil
		}
		summary, err := o.evaluateCompaction(ctx, state)
		if err != nil {
			return &FatalError{Stage: StageCompact, Err: err}
		}
		if summary != nil {
			if !emit(protocol.NewSummaryEvent(*summary)) {
				return nil
			}
		}
	}

	// Understand. The engine degrades internally on model failure, so
	// this stage never aborts the run.
	if !emit(protocol.NewStepEvent("Analyzing query...")) {
		return nil
	}
	understanding := o.understand(ctx, userQuery, state)
	if !emit(protocol.NewQueryUnderstandingEvent(*understanding)) {
		return nil
	}
	if len(understanding.ClarifyingQuestions) > 0 {
		if !emit(protocol.NewClarifyingQuestionsEvent(understanding.ClarifyingQuestions)) {
			return nil
		}
	}

	// Generate. Failure leaves the run answerless but does not abort it.
	if !emit(protocol.NewStepEvent("Generating response...")) {
		return nil
	}
	answer, genErr := o.generate(ctx, understanding)
	if genErr != nil {
		logger.Logger.Error("answer generation failed", "session", sessionID, "error", genErr)
	}

	// Persist. Always attempted, even when generation failed, so the
	// user's turn is never lost.
	state.Append(memory.Message{Role: memory.RoleUser, Content: userQuery})
	if genErr == nil {
		state.Append(memory.Message{Role: memory.RoleAssistant, Content: answer})
	}
	state.TotalTokens = o.manager.TokenCount(state)
	if err := o.store.Save(state); err != nil {
		return &FatalError{Stage: StagePersist, Err: err}
	}

	if genErr == nil {
		emit(protocol.NewAnswerEvent(answer))
	}
	return nil
}

func (o *Orchestrator) evaluateCompaction(ctx context.Context, state *memory.SessionState) (*memory.SessionSummary, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.manager.Evaluate(callCtx, state)
}

func (o *Orchestrator) understand(ctx context.Context, userQuery string, state *memory.SessionState) *query.Understanding {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	recent := state.RecentMessages(o.manager.RecentCount())
	understanding, err := o.engine.Understand(callCtx, userQuery, recent, state.Summary)
	if err != nil {
		// The engine already degrades internally; this is a second fence.
		return &query.Understanding{
			OriginalQuery:         userQuery,
			FinalAugmentedContext: "User query: " + userQuery,
		}
	}
	return understanding
}

func (o *Orchestrator) generate(ctx context.Context, u *query.Understanding) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	msgs := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: answerSystem},
		{Role: llm.RoleUser, Content: u.FinalAugmentedContext},
	}
	opts := llm.ChatOptions{Temperature: 0.7}

	resp, err := llm.RetryWithPolicy(callCtx, llm.DefaultRetryPolicy(),
		func(ctx context.Context) (llm.LLMResponse, error) {
			return o.client.Chat(ctx, o.model, msgs, opts)
		},
		func(attempt int, delay time.Duration, err error) {
			logger.Logger.Warn("retrying answer generation", "attempt", attempt, "delay", delay, "error", err)
		},
	)
	if err != nil {
		return "", err
	}
	return resp.Assistant.Content, nil
}
