// Package cli holds the command layer: it loads the configuration and wires
// the components for each command.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"email-digest/internal/config"
	"email-digest/internal/logger"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "email-digest",
		Short:        "Summarize, classify and measure unread email threads",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		runCmd(),
		summarizeFileCmd(),
		classifyCmd(),
		replyTimesFileCmd(),
	)
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the environment and builds the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat), nil
}

func requireAIKey(cfg *config.Config) error {
	if cfg.AIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}
	return nil
}
