package config

import (
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.TokenThreshold != 1000 {
		t.Errorf("TokenThreshold = %d, want 1000", cfg.TokenThreshold)
	}
	if cfg.TokenEncoding != "o200k_base" {
		t.Errorf("TokenEncoding = %q, want o200k_base", cfg.TokenEncoding)
	}
	if cfg.RecentMessagesCount != 5 {
		t.Errorf("RecentMessagesCount = %d, want 5", cfg.RecentMessagesCount)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TOKEN_THRESHOLD", "2500")
	t.Setenv("TOKEN_ENCODING", "cl100k_base")
	t.Setenv("RECENT_MESSAGES_COUNT", "8")
	t.Setenv("MEMORY_DIR", "/tmp/agent-memory")

	cfg := Defaults()
	cfg.ApplyEnv()

	if cfg.TokenThreshold != 2500 {
		t.Errorf("TokenThreshold = %d, want 2500", cfg.TokenThreshold)
	}
	if cfg.TokenEncoding != "cl100k_base" {
		t.Errorf("TokenEncoding = %q, want cl100k_base", cfg.TokenEncoding)
	}
	if cfg.RecentMessagesCount != 8 {
		t.Errorf("RecentMessagesCount = %d, want 8", cfg.RecentMessagesCount)
	}
	if cfg.MemoryDir != "/tmp/agent-memory" {
		t.Errorf("MemoryDir = %q", cfg.MemoryDir)
	}
}

func TestApplyEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("TOKEN_THRESHOLD", "not-a-number")
	t.Setenv("RECENT_MESSAGES_COUNT", "-3")

	cfg := Defaults()
	cfg.ApplyEnv()

	if cfg.TokenThreshold != 1000 {
		t.Errorf("TokenThreshold = %d, want default 1000", cfg.TokenThreshold)
	}
	if cfg.RecentMessagesCount != 5 {
		t.Errorf("RecentMessagesCount = %d, want default 5", cfg.RecentMessagesCount)
	}
}

func TestManagerRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	mgr, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	// Missing file loads defaults.
	cfg, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load of missing config failed: %v", err)
	}
	if cfg.TokenThreshold != 1000 {
		t.Errorf("TokenThreshold = %d, want 1000", cfg.TokenThreshold)
	}

	cfg.Provider = "anthropic"
	cfg.Model = "claude-3-5-haiku-latest"
	cfg.TokenThreshold = 4000
	if err := mgr.Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != "anthropic" || loaded.TokenThreshold != 4000 {
		t.Errorf("loaded %+v", loaded)
	}
}

func TestResolveMemoryDir(t *testing.T) {
	cfg := Defaults()
	cfg.MemoryDir = "/explicit/dir"

	dir, err := cfg.ResolveMemoryDir()
	if err != nil {
		t.Fatalf("ResolveMemoryDir failed: %v", err)
	}
	if dir != "/explicit/dir" {
		t.Errorf("dir = %q, want /explicit/dir", dir)
	}

	cfg.MemoryDir = ""
	dir, err = cfg.ResolveMemoryDir()
	if err != nil {
		t.Fatalf("ResolveMemoryDir failed: %v", err)
	}
	if dir == "" {
		t.Error("expected a default directory")
	}
}
