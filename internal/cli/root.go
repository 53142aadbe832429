// Package cli implements the pulse command line: one-shot analysis of a
// local video or a public link without starting the agent.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/comedypulse/pulse-agent/internal/analysis"
	"github.com/comedypulse/pulse-agent/internal/config"
	"github.com/comedypulse/pulse-agent/internal/gemini"
	"github.com/comedypulse/pulse-agent/internal/logging"
)

// Analyzer is the part of the model client the analyze command uses.
type Analyzer interface {
	AnalyzeInlineMedia(ctx context.Context, base64Data, mediaType string) (*analysis.Result, error)
	AnalyzeByURL(ctx context.Context, url string) (*analysis.Result, []analysis.Source, error)
}

// Deps lets tests replace the model client.
type Deps struct {
	NewAnalyzer func(cfg config.Config, logger *slog.Logger) Analyzer
}

type rootOptions struct {
	verbose bool
	envFile string
}

// NewRootCmd builds the pulse command tree.
func NewRootCmd(deps Deps) *cobra.Command {
	if deps.NewAnalyzer == nil {
		deps.NewAnalyzer = defaultAnalyzer
	}
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pulse",
		Short: "Analyze stand-up comedy sets from the command line",
		Long: `Comedy Pulse scores a stand-up set: when the audience laughed, how hard,
and what the delivery could improve.

Quick Start:
  pulse analyze --file set.mp4                 # Analyze a local video (max 50MB)
  pulse analyze --url https://youtu.be/<id>    # Analyze a public YouTube link
  pulse analyze --file set.mp4 --format yaml   # Machine-readable output
  pulse analyze --file set.mp4 --edl-dir out   # Also write a highlight EDL

The API_KEY environment variable (or a .env file) must hold the model key.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", config.Version, config.GitCommit, config.BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging on stderr")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file to load before reading configuration")

	root.AddCommand(newAnalyzeCmd(opts, deps))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	root := NewRootCmd(Deps{})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pulse %s (commit: %s, built: %s)\n", config.Version, config.GitCommit, config.BuildTime)
		},
	}
}

func defaultAnalyzer(cfg config.Config, logger *slog.Logger) Analyzer {
	return gemini.NewClient(gemini.ClientConfig{
		BaseURL: cfg.GeminiBaseURL(),
		Model:   cfg.Model(),
		Timeout: cfg.GeminiTimeout(),
		Logger:  logging.WithComponent(logger, "gemini"),
	})
}

// commandLogger writes to stderr so stdout carries only the report.
func commandLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logging.New(logging.Options{
		Level:  "debug",
		Format: logging.FormatText,
		Output: cmd.ErrOrStderr(),
	})
}
