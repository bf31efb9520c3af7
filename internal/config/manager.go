// Package config loads and saves the agent's persistent configuration.
// Defaults live here, not in the core packages: memory and pipeline
// receive every tunable explicitly.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the user's persistent configuration.
type Config struct {
	Provider string `json:"provider,omitempty"` // openai, anthropic, ollama
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`

	// Session memory tunables.
	TokenThreshold      int    `json:"token_threshold"`       // compaction trigger
	TokenEncoding       string `json:"token_encoding"`        // token counting scheme
	RecentMessagesCount int    `json:"recent_messages_count"` // retained tail size
	MemoryDir           string `json:"memory_dir,omitempty"`  // session file directory
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		TokenThreshold:      1000,
		TokenEncoding:       "o200k_base",
		RecentMessagesCount: 5,
	}
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TOKEN_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TokenThreshold = n
		}
	}
	if v := os.Getenv("TOKEN_ENCODING"); v != "" {
		c.TokenEncoding = v
	}
	if v := os.Getenv("RECENT_MESSAGES_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RecentMessagesCount = n
		}
	}
	if v := os.Getenv("MEMORY_DIR"); v != "" {
		c.MemoryDir = v
	}
}

// ResolveMemoryDir returns the session storage directory, defaulting to
// a per-user data directory.
func (c *Config) ResolveMemoryDir() (string, error) {
	if c.MemoryDir != "" {
		return c.MemoryDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".shorttem-memory-agent", "memory"), nil
}

// Manager handles loading and saving the configuration file.
type Manager struct {
	configDir string
}

// NewManager creates a configuration manager rooted in the user config dir.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return &Manager{configDir: filepath.Join(configDir, "shorttem-memory-agent")}, nil
}

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the configuration from disk. A missing file yields defaults.
func (m *Manager) Load() (*Config, error) {
	path := m.GetConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to disk with restricted permissions; the
// file may carry an API key.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
