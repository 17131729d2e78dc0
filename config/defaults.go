package config

import "github.com/skosovsky/glmtools/generate"

const (
	DefaultBaseURL   = "http://127.0.0.1:8000/v1"
	DefaultModel     = "chatglm3-6b"
	DefaultAddr      = "127.0.0.1:8601"
	DefaultMaxRounds = 5

	DefaultMaxSessions = 1024
)

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// applyDefaults fills unset fields. Zero numbers count as unset.
func applyDefaults(cfg *Config) {
	setDefaultString(&cfg.Model.BaseURL, DefaultBaseURL)
	setDefaultString(&cfg.Model.Name, DefaultModel)
	setDefaultInt(&cfg.Model.ContextWindow, generate.DefaultContextWindow)

	def := generate.DefaultParams()
	setDefaultFloat(&cfg.Generation.Temperature, def.Temperature)
	setDefaultFloat(&cfg.Generation.TopP, def.TopP)
	setDefaultFloat(&cfg.Generation.RepetitionPenalty, def.RepetitionPenalty)
	setDefaultInt(&cfg.Generation.MaxNewTokens, def.MaxNewTokens)
	if len(cfg.Generation.Stop) == 0 {
		cfg.Generation.Stop = def.Stop
	}

	setDefaultString(&cfg.SystemPrompt, DefaultSystemPrompt)
	setDefaultString(&cfg.Server.Addr, DefaultAddr)
	setDefaultInt(&cfg.Server.ShutdownTimeoutSeconds, 10)
	setDefaultInt(&cfg.Server.MaxSessions, DefaultMaxSessions)
	setDefaultInt(&cfg.Tools.MaxRounds, DefaultMaxRounds)
	setDefaultString(&cfg.Log.Level, "info")
}

func setDefaultString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setDefaultInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setDefaultFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}
