package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/skosovsky/glmtools"
	"github.com/skosovsky/glmtools/agent"
	"github.com/skosovsky/glmtools/backend/openaicompat"
	"github.com/skosovsky/glmtools/config"
	"github.com/skosovsky/glmtools/generate"
	"github.com/skosovsky/glmtools/toolkits/builtin"
)

// app is the loaded configuration plus the logger every component shares.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadApp(flags *rootFlags, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, ExitError{Code: exitConfig, Err: err}
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, ExitError{Code: exitConfig, Err: err}
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) registry() (*glmtools.Registry, error) {
	tools, err := builtin.Tools(builtin.Options{
		WeatherURL:  a.cfg.Tools.WeatherURL,
		EnableShell: a.cfg.Tools.EnableShell,
	})
	if err != nil {
		return nil, ExitError{Code: exitRegistry, Err: err}
	}
	opts := []glmtools.RegistryOption{glmtools.WithLogger(a.logger)}
	if s := a.cfg.Tools.TimeoutSeconds; s > 0 {
		opts = append(opts, glmtools.WithDefaultTimeout(time.Duration(s)*time.Second))
	}
	if n := a.cfg.Tools.MaxConcurrency; n > 0 {
		opts = append(opts, glmtools.WithMaxConcurrency(n))
	}
	reg, err := glmtools.BuildRegistry(tools, opts...)
	if err != nil {
		return nil, ExitError{Code: exitRegistry, Err: err}
	}
	reg.Use(glmtools.WithLogging(a.logger), glmtools.WithToolTimeouts(a.cfg.Tools.ToolTimeouts()))
	return reg, nil
}

func (a *app) model() (generate.Model, error) {
	m := a.cfg.Model
	backend, err := openaicompat.New(openaicompat.Config{
		BaseURL: m.BaseURL,
		APIKey:  m.APIKey,
		Model:   m.Name,
	}, openaicompat.WithLogger(a.logger))
	if err != nil {
		return nil, ExitError{Code: exitConfig, Err: err}
	}
	return backend, nil
}

func (a *app) agent(model generate.Model, reg *glmtools.Registry) *agent.Agent {
	loop := generate.NewLoop(model,
		generate.WithContextWindow(a.cfg.Model.ContextWindow),
		generate.WithLogger(a.logger),
	)
	return agent.New(loop, reg,
		agent.WithSystemPrompt(a.cfg.SystemPrompt),
		agent.WithMaxRounds(a.cfg.Tools.MaxRounds),
		agent.WithLogger(a.logger),
	)
}
