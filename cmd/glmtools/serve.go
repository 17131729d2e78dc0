package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skosovsky/glmtools/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the /meet/chat streaming endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			reg, err := a.registry()
			if err != nil {
				return err
			}
			model, err := a.model()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			timeout := time.Duration(a.cfg.Server.ShutdownTimeoutSeconds) * time.Second
			srv := server.New(a.agent(model, reg), a.cfg.Generation,
				server.WithLogger(a.logger),
				server.WithMaxSessions(a.cfg.Server.MaxSessions),
			)
			serveErr := srv.ListenAndServe(ctx, a.cfg.Server.Addr, timeout)

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()
			if err := reg.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("tool registry shutdown", "error", err)
			}
			return serveErr
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
