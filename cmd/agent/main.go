package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/config"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/logger"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/memory"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/pipeline"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/protocol"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/providers"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/query"
)

func main() {
	// Load .env file if it exists.
	_ = godotenv.Load()

	logger.Configure(os.Getenv("AGENT_LOG_LEVEL"))

	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	stdioMode := fs.Bool("stdio", false, "Serve the pipeline over the NDJSON stdio protocol")
	sessionFlag := fs.String("session", "", "Session ID for interactive mode (default: new session)")
	memoryDirFlag := fs.String("memory-dir", "", "Directory for session memory files (default: config or ~/.shorttem-memory-agent/memory)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Logger.Fatal("failed to parse flags", "error", err)
	}

	ctx := context.Background()

	orch, err := buildOrchestrator(ctx, *memoryDirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if *stdioMode {
		runner := newStdIORunner(os.Stdin, os.Stdout, orch)
		if err := runner.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: stdio bridge failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	runInteractive(ctx, orch, *sessionFlag)
}

func buildOrchestrator(ctx context.Context, memoryDirOverride string) (*pipeline.Orchestrator, error) {
	cfg := config.Defaults()
	if mgr, err := config.NewManager(); err == nil {
		if loaded, err := mgr.Load(); err == nil {
			cfg = loaded
		} else {
			logger.Logger.Warn("failed to load config file, using defaults", "error", err)
		}
	}
	cfg.ApplyEnv()
	if memoryDirOverride != "" {
		cfg.MemoryDir = memoryDirOverride
	}

	client, model, err := providers.NewLLMClientFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	logger.Logger.Info("LLM client ready", "model", model)

	memoryDir, err := cfg.ResolveMemoryDir()
	if err != nil {
		return nil, err
	}
	store := memory.NewFileStore(memoryDir)

	tokenizer := memory.NewTokenizer(cfg.TokenEncoding)
	summarizer := memory.NewLLMSummarizer(client, model)
	manager := memory.NewManager(tokenizer, summarizer, cfg.TokenThreshold, cfg.RecentMessagesCount)
	engine := query.NewEngine(client, model)

	return pipeline.NewOrchestrator(store, manager, engine, client, model), nil
}

func runInteractive(ctx context.Context, orch *pipeline.Orchestrator, sessionID string) {
	if sessionID == "" {
		sessionID = protocol.NewSessionID()
	}
	fmt.Fprintf(os.Stderr, "session: %s\n", sessionID)

	s := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !s.Scan() {
			break
		}
		line := s.Text()
		if line == "" {
			continue
		}

		events, errs := orch.Run(ctx, sessionID, line)
		for ev := range events {
			printEvent(ev)
		}
		if err := <-errs; err != nil {
			logger.Logger.Error("pipeline run failed", "error", err)
		}
		fmt.Println()
	}
}

func printEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.StepEvent:
		fmt.Fprintf(os.Stderr, "· %s\n", e.Content)
	case protocol.SummaryEvent:
		fmt.Fprintf(os.Stderr, "· memory compacted (messages %d-%d)\n",
			e.Content.MessageRangeSummarized.From, e.Content.MessageRangeSummarized.To)
	case protocol.QueryUnderstandingEvent:
		if e.Content.IsAmbiguous && e.Content.RewrittenQuery != "" {
			fmt.Fprintf(os.Stderr, "· interpreted as: %s\n", e.Content.RewrittenQuery)
		}
	case protocol.ClarifyingQuestionsEvent:
		for _, q := range e.Content {
			fmt.Fprintf(os.Stderr, "? %s\n", q)
		}
	case protocol.AnswerEvent:
		fmt.Println(e.Content)
	}
}
