package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/panelengine"
)

const shutdownTimeout = 10 * time.Second

var staticDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the server together with the post publisher, the maintenance
scheduler and the analytics cleanup. SIGINT or SIGTERM shuts it down
gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&staticDir, "static", "public", "Directory of user static assets")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := panelengine.LoadConfig(configPath)
	if err != nil {
		return err
	}
	app := panelengine.New(cfg, panelengine.ViewFuncs{},
		panelengine.WithLogger(logger),
		panelengine.WithStaticDir(staticDir),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		app.Close()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(sctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return err
	}
	return <-errc
}
