package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// AgentMode controls whether mutating vault tools are allowed to act.
type AgentMode string

const (
	// ModeAsk refuses mutating tools outright; the model can only read.
	ModeAsk AgentMode = "ask"
	// ModeAgent lets mutating tools go through the confirmation gateway.
	ModeAgent AgentMode = "agent"
)

type ProviderConfig struct {
	Kind    string `json:"kind" env:"VAULTPILOT_PROVIDER_KIND"` // "openai" | "anthropic" | "qwen"
	Model   string `json:"model" env:"VAULTPILOT_MODEL"`
	APIKey  string `json:"api_key" env:"VAULTPILOT_API_KEY"`
	BaseURL string `json:"base_url" env:"VAULTPILOT_BASE_URL"`
}

type AgentConfig struct {
	Mode          string `json:"mode" env:"VAULTPILOT_AGENT_MODE"`
	MaxIterations int    `json:"max_iterations" env:"VAULTPILOT_MAX_ITERATIONS"`
	ContextWindow int    `json:"context_window" env:"VAULTPILOT_CONTEXT_WINDOW"`
}

type EmbeddingsConfig struct {
	BaseURL string `json:"base_url" env:"VAULTPILOT_EMBEDDINGS_BASE_URL"`
	APIKey  string `json:"api_key" env:"VAULTPILOT_EMBEDDINGS_API_KEY"`
	Model   string `json:"model" env:"VAULTPILOT_EMBEDDINGS_MODEL"`
}

type LoggingConfig struct {
	Level string `json:"level" env:"VAULTPILOT_LOG_LEVEL"`
	File  string `json:"file" env:"VAULTPILOT_LOG_FILE"`
}

type Config struct {
	Provider   ProviderConfig   `json:"provider"`
	Agent      AgentConfig      `json:"agent"`
	Embeddings EmbeddingsConfig `json:"embeddings"`
	Logging    LoggingConfig    `json:"logging"`
	VaultPath  string           `json:"vault_path" env:"VAULTPILOT_VAULT"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind:  "openai",
			Model: "gpt-4o-mini",
		},
		Agent: AgentConfig{
			Mode:          string(ModeAgent),
			MaxIterations: 25,
			ContextWindow: 128000,
		},
		Embeddings: EmbeddingsConfig{
			Model: "text-embedding-3-small",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		VaultPath: "~/vault",
	}
}

// LoadConfig reads the config file at path, falling back to defaults when it
// does not exist, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Mode returns the agent mode, defaulting to ModeAgent on anything
// unrecognized.
func (c *Config) Mode() AgentMode {
	if strings.EqualFold(c.Agent.Mode, string(ModeAsk)) {
		return ModeAsk
	}
	return ModeAgent
}

// ResolvedVaultPath expands a leading ~ in the vault path.
func (c *Config) ResolvedVaultPath() string {
	return expandHome(c.VaultPath)
}

// DefaultConfigPath returns ~/.vaultpilot/config.json.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".vaultpilot", "config.json")
}

// DataDir returns the directory for runtime state (credentials, index).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vaultpilot"
	}
	return filepath.Join(home, ".vaultpilot")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
