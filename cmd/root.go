package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/coursekit/internal/config"
	"github.com/abhisek/coursekit/internal/logger"
	"github.com/abhisek/coursekit/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "coursekit",
	Short:        "Course execution and performance assessment engine",
	Long:         "coursekit validates adaptive course definitions and runs learners through them, tracking concept mastery and progress.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides COURSEKIT_DB env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides COURSEKIT_LOG_LEVEL)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(conceptsCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads COURSEKIT_* variables and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.FromEnv()
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) (*logger.Logger, error) {
	return logger.New(cfg.Log.Mode, cfg.Log.Level)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then COURSEKIT_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

// openStore opens the database chosen by resolveDBPath.
func openStore(cmd *cobra.Command, cfg config.Config) (*store.Store, error) {
	path, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, err
	}
	return store.OpenWithOptions(path, store.Options{RetryAttempts: cfg.Store.RetryAttempts})
}
