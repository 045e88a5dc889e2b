package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fixbank/internal/config"
	"github.com/fyrsmithlabs/fixbank/internal/embeddings"
	"github.com/fyrsmithlabs/fixbank/internal/learning"
	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

// app bundles the wired services behind the CLI commands.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    *learning.AttemptStore
	provider embeddings.Provider
}

func (a *app) close() {
	if a.provider != nil {
		_ = a.provider.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// newApp loads config and wires logger, store, and embedding provider.
// withProvider is false for commands that never embed (stats, rebuild), so
// they skip capability detection and a possible model load.
func newApp(configPath, dbPath string, withProvider bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}

	embeddings.RegisterMetrics()
	learning.RegisterMetrics()

	store, err := learning.OpenStore(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	if withProvider {
		a.provider = embeddings.Detect(embeddings.NeuralConfig{
			Model:    cfg.Embeddings.Model,
			CacheDir: cfg.Embeddings.CacheDir,
		}, logger)
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var configPath, dbPath string

	root := &cobra.Command{
		Use:           "fixbank",
		Short:         "Strategy learning for automated code fixing",
		Long:          "fixbank records automated fix-attempt outcomes with embeddings and recommends the strategy most likely to succeed for new issues.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/fixbank/config.yaml)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "path to the attempt store (overrides config)")

	root.AddCommand(
		newRecommendCmd(&configPath, &dbPath),
		newRecordCmd(&configPath, &dbPath),
		newStatsCmd(&configPath, &dbPath),
		newRebuildCmd(&configPath, &dbPath),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fixbank %s (%s)\n", version, gitCommit)
		},
	}
}
