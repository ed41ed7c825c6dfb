package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quoteflow/internal/config"
	"github.com/ShayCichocki/quoteflow/internal/logging"
)

var (
	verbose bool

	// cfg and logger are set by the root command before any subcommand runs.
	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quoteflow",
	Short: "Dependency-aware quote runner for interior materials",
	Long: `quoteflow executes a plan of pricing subtasks.

Subtasks that refer to earlier steps ("step 2", "bước 1", "the result above")
wait for the groups before them; independent subtasks run concurrently.
Each subtask is interpreted into a tool call against the price catalog,
and identical subtasks are answered from the quote cache.

Budget requests ("propose options within 300 triệu for sàn (Sàn - Sàn gỗ, 24m2)")
are answered by the combination optimizer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		l, err := logging.New(logging.Options{Level: level, Path: cfg.Log.Path, JSON: cfg.Log.JSON})
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		logger = l
		logging.SetDefault(l.Logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(quotesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
