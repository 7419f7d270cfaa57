package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medlocal/assistant/internal/logger"
	"github.com/medlocal/assistant/internal/storage"
	"github.com/medlocal/assistant/internal/supervisor"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the model servers and keep them running",
		Long: `Launch every enabled backend, wait for readiness, and supervise them
until interrupted. Backends that fail to start are skipped; the rest stay up.`,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Open the store up front so a broken database fails fast and the
	// schema exists before any request arrives.
	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	sup := supervisor.New(cfg)
	if err := sup.Initialize(context.Background()); err != nil {
		return err
	}

	live := sup.Live()
	if len(live) == 0 {
		logger.Log.Warn("no backends are live; queries will fail until one is enabled")
	} else {
		logger.Log.WithField("backends", live).Info("supervising backends")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Log.WithField("signal", sig.String()).Info("shutting down")

	sup.Shutdown()
	return nil
}
