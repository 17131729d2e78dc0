package config

import (
	"fmt"
	"net/url"
)

// Validate checks a configuration with defaults applied.
func Validate(cfg *Config) error {
	validators := []func(*Config) error{
		validateModel,
		validateGeneration,
		validateServer,
		validateTools,
		validateLog,
	}
	for _, validator := range validators {
		if err := validator(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateModel(cfg *Config) error {
	u, err := url.Parse(cfg.Model.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("model.base_url must be an http(s) URL, got %q", cfg.Model.BaseURL)
	}
	if cfg.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if cfg.Model.ContextWindow <= 0 {
		return fmt.Errorf("model.context_window must be positive")
	}
	return nil
}

func validateGeneration(cfg *Config) error {
	g := cfg.Generation
	if g.Temperature < 0 || g.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be within [0, 2], got %g", g.Temperature)
	}
	if g.TopP <= 0 || g.TopP > 1 {
		return fmt.Errorf("generation.top_p must be within (0, 1], got %g", g.TopP)
	}
	if g.RepetitionPenalty < 0 {
		return fmt.Errorf("generation.repetition_penalty must not be negative")
	}
	if g.MaxNewTokens <= 0 {
		return fmt.Errorf("generation.max_new_tokens must be positive")
	}
	if g.MaxNewTokens >= cfg.Model.ContextWindow {
		return fmt.Errorf("generation.max_new_tokens (%d) must be less than model.context_window (%d)",
			g.MaxNewTokens, cfg.Model.ContextWindow)
	}
	return nil
}

func validateServer(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds must not be negative")
	}
	if cfg.Server.MaxSessions <= 0 {
		return fmt.Errorf("server.max_sessions must be positive")
	}
	return nil
}

func validateTools(cfg *Config) error {
	t := cfg.Tools
	if t.TimeoutSeconds < 0 {
		return fmt.Errorf("tools.timeout_seconds must not be negative")
	}
	if t.MaxConcurrency < 0 {
		return fmt.Errorf("tools.max_concurrency must not be negative")
	}
	if t.MaxRounds <= 0 {
		return fmt.Errorf("tools.max_rounds must be positive")
	}
	for name, s := range t.Timeouts {
		if s <= 0 {
			return fmt.Errorf("tools.timeouts.%s must be positive", name)
		}
	}
	if t.WeatherURL != "" {
		if u, err := url.Parse(t.WeatherURL); err != nil || u.Host == "" {
			return fmt.Errorf("tools.weather_url must be a URL, got %q", t.WeatherURL)
		}
	}
	return nil
}

func validateLog(cfg *Config) error {
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
