package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/logger"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/memory"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/pipeline"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/protocol"
)

// stdioRunner bridges the pipeline onto an NDJSON stdin/stdout pair.
// Commands arrive one per line on stdin; events leave one per line on
// stdout. Diagnostics never touch stdout.
type stdioRunner struct {
	scanner *bufio.Scanner
	encoder *protocol.Encoder
	orch    *pipeline.Orchestrator

	// writeMu serializes event writes; per-line handlers run concurrently.
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func newStdIORunner(in io.Reader, out io.Writer, orch *pipeline.Orchestrator) *stdioRunner {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	return &stdioRunner{
		scanner: scanner,
		encoder: protocol.NewEncoder(out),
		orch:    orch,
	}
}

// Run reads commands until stdin closes, then waits for in-flight
// handlers to finish.
func (r *stdioRunner) Run(ctx context.Context) error {
	logger.Logger.Info("stdio bridge ready")

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		default:
		}

		if !r.scanner.Scan() {
			break
		}
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		// Handle each command off the read loop so a slow run does not
		// block commands for other sessions. Per-session ordering is
		// enforced by the orchestrator's session locks.
		r.wg.Add(1)
		go func(l string) {
			defer r.wg.Done()
			if err := r.handleLine(ctx, l); err != nil {
				logger.Logger.Error("command failed", "error", err)
			}
		}(line)
	}

	r.wg.Wait()

	if err := r.scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdin error: %w", err)
	}
	return nil
}

func (r *stdioRunner) writeEvent(ev protocol.Event) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.encoder.Encode(ev)
}

func (r *stdioRunner) handleLine(ctx context.Context, line string) error {
	cmd, err := protocol.DecodeCommand([]byte(line))
	if err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	switch c := cmd.(type) {
	case protocol.ChatRequest:
		return r.handleChat(ctx, c)
	case protocol.GetSessionCommand:
		return r.handleGetSession(c)
	case protocol.DeleteSessionCommand:
		return r.handleDeleteSession(c)
	default:
		return fmt.Errorf("unsupported command type %T", cmd)
	}
}

func (r *stdioRunner) handleChat(ctx context.Context, c protocol.ChatRequest) error {
	events, errs := r.orch.Run(ctx, c.SessionID, c.Query)
	for ev := range events {
		if werr := r.writeEvent(ev); werr != nil {
			// Drain so the run goroutine can finish.
			for range events {
			}
			<-errs
			return fmt.Errorf("write event: %w", werr)
		}
	}
	return <-errs
}

func (r *stdioRunner) handleGetSession(c protocol.GetSessionCommand) error {
	state, err := r.orch.Session(c.SessionID)
	if errors.Is(err, memory.ErrNotFound) {
		return r.writeEvent(protocol.NewStepEvent(fmt.Sprintf("Session %s not found.", c.SessionID)))
	}
	if err != nil {
		return err
	}

	if werr := r.writeEvent(protocol.NewStepEvent(fmt.Sprintf(
		"Session %s: %d messages, %d tokens.", state.SessionID, len(state.Messages), state.TotalTokens))); werr != nil {
		return werr
	}
	if state.Summary != nil {
		return r.writeEvent(protocol.NewSummaryEvent(*state.Summary))
	}
	return nil
}

func (r *stdioRunner) handleDeleteSession(c protocol.DeleteSessionCommand) error {
	if err := r.orch.DeleteSession(c.SessionID); err != nil {
		return err
	}
	return r.writeEvent(protocol.NewStepEvent(fmt.Sprintf("Session %s deleted.", c.SessionID)))
}
