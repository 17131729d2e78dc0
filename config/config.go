// Package config loads glmtools settings from a YAML or TOML file, a sibling .env file and
// GLMTOOLS_* environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/skosovsky/glmtools/generate"
)

// DefaultSystemPrompt is the chat-mode system text used when none is configured.
const DefaultSystemPrompt = "You are ChatGLM3, a large language model trained by Zhipu.AI. " +
	"Follow the user's instructions carefully. Respond using markdown."

// Config is the full application configuration.
type Config struct {
	Model        ModelConfig     `yaml:"model" toml:"model"`
	Generation   generate.Params `yaml:"generation" toml:"generation"`
	SystemPrompt string          `yaml:"system_prompt" toml:"system_prompt"`
	Server       ServerConfig    `yaml:"server" toml:"server"`
	Tools        ToolsConfig     `yaml:"tools" toml:"tools"`
	Log          LogConfig       `yaml:"log" toml:"log"`
}

// ModelConfig locates the OpenAI-compatible completion endpoint.
type ModelConfig struct {
	BaseURL       string `yaml:"base_url" toml:"base_url"`
	APIKey        string `yaml:"api_key" toml:"api_key"`
	Name          string `yaml:"name" toml:"name"`
	ContextWindow int    `yaml:"context_window" toml:"context_window"`
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Addr                   string `yaml:"addr" toml:"addr"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
	MaxSessions            int    `yaml:"max_sessions" toml:"max_sessions"`
}

// ToolsConfig configures the tool registry and the built-in tools.
type ToolsConfig struct {
	EnableShell    bool   `yaml:"enable_shell" toml:"enable_shell"`
	WeatherURL     string `yaml:"weather_url" toml:"weather_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
	MaxConcurrency int    `yaml:"max_concurrency" toml:"max_concurrency"`
	MaxRounds      int    `yaml:"max_rounds" toml:"max_rounds"`
	// Timeouts overrides timeout_seconds per tool name, e.g. a longer limit for get_shell.
	Timeouts map[string]int `yaml:"timeouts" toml:"timeouts"`
}

// ToolTimeouts converts Timeouts to durations.
func (t ToolsConfig) ToolTimeouts() map[string]time.Duration {
	out := make(map[string]time.Duration, len(t.Timeouts))
	for name, s := range t.Timeouts {
		out[name] = time.Duration(s) * time.Second
	}
	return out
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level)))
	return level, err
}
