package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/comedypulse/pulse-agent/internal/analysis"
	"github.com/comedypulse/pulse-agent/internal/config"
	"github.com/comedypulse/pulse-agent/internal/export"
	"github.com/comedypulse/pulse-agent/internal/media"
)

const formatText = "text"

type analyzeOptions struct {
	file   string
	url    string
	format string
	edlDir string
}

func newAnalyzeCmd(root *rootOptions, deps Deps) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one comedy set and print the report",
		Long: `Send a local video (inline, max 50MB) or a public YouTube link to the model
and print the engagement score, laughter timeline, delivery insights and,
for links, the web sources the model consulted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, deps)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Local video file to analyze")
	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "Public YouTube link to analyze")
	cmd.Flags().StringVar(&opts.format, "format", formatText, "Output format: text, json, yaml")
	cmd.Flags().StringVar(&opts.edlDir, "edl-dir", "", "Also write a highlight EDL into this existing directory")
	cmd.MarkFlagsMutuallyExclusive("file", "url")
	cmd.MarkFlagsOneRequired("file", "url")

	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, deps Deps) error {
	format := strings.ToLower(opts.format)
	switch format {
	case formatText, export.FormatJSON, export.FormatYAML:
	default:
		return fmt.Errorf("unsupported format %q (use text, json or yaml)", opts.format)
	}
	if opts.edlDir != "" {
		if err := export.CheckOutputDir(opts.edlDir); err != nil {
			return fmt.Errorf("invalid --edl-dir: %w", err)
		}
	}

	if err := config.LoadDotEnv(root.envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasAPIKey() {
		return fmt.Errorf("%s is not set", config.EnvAPIKey)
	}

	logger := commandLogger(cmd, root.verbose)
	analyzer := deps.NewAnalyzer(cfg, logger)
	ctx := cmd.Context()

	var (
		result  *analysis.Result
		sources []analysis.Source
		title   string
		path    string
	)

	if opts.file != "" {
		f, err := localFile(opts.file)
		if err != nil {
			return err
		}
		enc, err := media.NewEncoder(logger).Encode(f)
		if err != nil {
			return err
		}
		logger.Debug("analyzing local file", "name", f.Name, "size", f.Size, "media_type", enc.MediaType)
		result, err = analyzer.AnalyzeInlineMedia(ctx, enc.Base64, enc.MediaType)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		title, path = f.DisplayName(), f.Name
	} else {
		link := strings.TrimSpace(opts.url)
		if link == "" {
			return errors.New("--url must not be blank")
		}
		logger.Debug("analyzing link", "url", link)
		result, sources, err = analyzer.AnalyzeByURL(ctx, link)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		title, path = media.NewRemoteURL(link).DisplayName(), link
	}
	if result == nil {
		return errors.New("analysis failed: model returned no result")
	}
	if result.Normalize() {
		logger.Warn("model output out of range, clamped")
	}
	if sources == nil {
		sources = []analysis.Source{}
	}

	exportOpts := export.Options{Title: title, MediaPath: path}
	out := cmd.OutOrStdout()
	if format == formatText {
		fmt.Fprint(out, RenderReport(title, result, sources))
	} else if err := export.Write(out, format, result, sources, exportOpts); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if opts.edlDir != "" {
		written, err := writeEDL(opts.edlDir, result, exportOpts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Highlight EDL written to %s\n", written)
	}
	return nil
}

// localFile stats path and applies the upload size limit before any bytes
// are read.
func localFile(path string) (*media.LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read video: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if err := media.CheckSize(info.Size()); err != nil {
		return nil, fmt.Errorf("%s: %w", media.OversizeMessage, err)
	}
	return &media.LocalFile{
		Path: path,
		Name: filepath.Base(path),
		Size: info.Size(),
	}, nil
}

func writeEDL(dir string, result *analysis.Result, opts export.Options) (string, error) {
	highlights, _ := export.Highlights(result, opts)
	name := export.FileStem(strings.TrimSuffix(opts.Title, filepath.Ext(opts.Title)), "comedy_pulse")
	path := filepath.Join(dir, name+".edl")
	if err := os.WriteFile(path, []byte(export.HighlightEDL(highlights, opts)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write EDL: %w", err)
	}
	return path, nil
}
