// Package main provides the sdlcd binary entry point. Sdlcd orchestrates a
// seven-stage SDLC agent pipeline and exposes it over an HTTP API, an MCP
// server, and a terminal runner.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// version is set by the linker at build time.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	ConfigDir string
	LogLevel  string
}

func rootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "sdlcd",
		Short: "SDLC pipeline orchestrator",
		Long: `Sdlcd drives a fixed seven-stage software delivery pipeline
(uiux, architecture, impact-analysis, coding, testing, security-scan,
code-review), each stage backed by a remote agent.

Runs advance automatically after each success, pause when the repository
handle is missing, and support a security-fix side branch through the
review agent.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigDir, "config-dir", ".", "directory containing sdlcd.yml")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(&flags),
		mcpCmd(&flags),
		runCmd(&flags),
		agentsCmd(&flags),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sdlcd version %s\n", version)
		},
	}
}

// newLogger builds the process logger writing to stderr, so stdout stays
// free for command output and the MCP stdio transport.
func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
