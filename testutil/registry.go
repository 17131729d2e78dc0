package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/skosovsky/glmtools"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestRegistry returns a Registry with a long timeout and a silent logger, suitable for
// tests. It panics on a registration error.
func NewTestRegistry(tools ...glmtools.Tool) *glmtools.Registry {
	reg := glmtools.NewRegistry(
		glmtools.WithDefaultTimeout(30*time.Second),
		glmtools.WithLogger(DiscardLogger()),
	)
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			panic(err)
		}
	}
	return reg
}
