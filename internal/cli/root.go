package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/medlocal/assistant/internal/config"
	"github.com/medlocal/assistant/internal/storage"
)

var (
	dbPath     string
	configPath string
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "assistant",
		Short: "Local AI assistant backend",
		Long: `Assistant - Orchestrates local specialized model servers, routes queries
to the right one, and keeps a searchable conversation history.`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (default: ~/.assistant/conversations.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: built-in backend table)")

	rootCmd.AddCommand(
		NewServeCommand(),
		NewChatCommand(),
		NewListCommand(),
		NewSearchCommand(),
		NewStatsCommand(),
		NewDeleteCommand(),
		NewRenameCommand(),
		NewBrowseCommand(),
	)

	return rootCmd
}

// loadConfig resolves the effective configuration: the --config file
// (or the built-in defaults) with the --db flag overriding the
// database path.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

func openStore() (*storage.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
