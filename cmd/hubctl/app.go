package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JLcilliers/MileIQ-Migration/internal/adapters/terminal"
	"github.com/JLcilliers/MileIQ-Migration/internal/bootstrap"
	"github.com/JLcilliers/MileIQ-Migration/internal/config"
	"github.com/JLcilliers/MileIQ-Migration/internal/observability/logging"
)

const serviceName = "hubctl"

// session bundles what a command needs for one invocation.
type session struct {
	app      *bootstrap.App
	renderer *terminal.Renderer
	out      io.Writer
}

// withApp builds the hub for a single command and saves state when it returns.
// Logs go to LOG_FILE when set, otherwise warnings and errors go to stderr.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, s session) error) error {
	cfg := config.Load()

	var logger *slog.Logger
	if cfg.LogFile != "" {
		f, err := logging.OpenLogFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer f.Close()
		logger = logging.NewJSONLoggerTo(f, serviceName, cfg.LogLevel)
	} else {
		logger = logging.NewJSONLoggerTo(cmd.ErrOrStderr(), serviceName, "warn")
	}

	renderer := terminal.NewRenderer(cmd.OutOrStdout())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:  serviceName,
		Logger:   logger,
		Renderer: renderer,
		Prompt:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, session{app: app, renderer: renderer, out: cmd.OutOrStdout()})
}
