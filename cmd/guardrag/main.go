// guardrag is a trust-scored retrieval-augmented answering pipeline. Every
// query is intent-classified, risk-gated, answered from the document index,
// and returned with quantified trust signals.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"guardrag/internal/config"
	"guardrag/internal/logging"
)

var (
	configPath string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "guardrag",
	Short: "Trust-scored RAG query pipeline",
	Long: `guardrag answers questions from a local document index, with every
query passing through intent classification, a security risk gate, and
post-hoc answer quality scoring.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "guardrag.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(askCmd, ingestCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and initializes logging from it. The
// --debug flag overrides the file's logging section.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging.Dir, logging.Options{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	return cfg, nil
}
