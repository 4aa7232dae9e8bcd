// Package main is the entry point for the docblocks CLI.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docblocks/internal/config"
	"github.com/dgallion1/docblocks/internal/restructure"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the docblocks CLI.
var rootCmd = &cobra.Command{
	Use:   "docblocks",
	Short: "Turn research papers into Notion page blocks",
	Long: `docblocks downloads a paper shared from Google Drive, extracts its text,
optionally has an LLM restructure it into clean sections, and appends the
result to a Notion page as headings, lists, paragraphs and equations.

Run "docblocks serve" for the webhook service, or "docblocks convert" to
work on a local file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (yaml); environment variables override it")
}

// loadConfig reads the settings named by --config.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	return config.Load(file)
}

// newLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func restructureSettings(cfg config.Config) restructure.Settings {
	return restructure.Settings{
		Provider:          cfg.RestructureProvider,
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterModel:   cfg.OpenRouterModel,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		AnthropicAPIKey:   cfg.AnthropicAPIKey,
		AnthropicModel:    cfg.AnthropicModel,
		Timeout:           cfg.RestructureTimeout,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
