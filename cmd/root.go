// Package cmd provides the CLI commands for the research assistant.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - chat: interactive terminal conversation
//   - token: issue and inspect auth credentials
//   - version: build information
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Folken2/ag-ui-research/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	GitCommit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "research-chat",
	Short: "Conversational research assistant",
	Long: `research-chat answers questions by searching the web, reading the
sources, and synthesizing a cited summary, with plain conversation for
everything else.

Run "research-chat serve" to expose the assistant over HTTP with SSE
streaming, or "research-chat chat" for a terminal session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage: true,
}

// Execute is the main entry point for the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG=1 enables debug level,
// LOG_JSON=1 switches to JSON output for log collectors.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}
