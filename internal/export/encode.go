package export

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/comedypulse/pulse-agent/internal/analysis"
)

// ContentType returns the response media type and file extension for format.
func ContentType(format string) (contentType, ext string, err error) {
	switch format {
	case FormatEDL:
		return "text/plain; charset=utf-8", ".edl", nil
	case FormatJSON:
		return "application/json", ".json", nil
	case FormatYAML:
		return "application/yaml", ".yaml", nil
	default:
		return "", "", fmt.Errorf("unsupported export format %q", format)
	}
}

// Write renders a completed analysis in the requested format.
func Write(w io.Writer, format string, result *analysis.Result, sources []analysis.Source, opts Options) error {
	if result == nil {
		return fmt.Errorf("no analysis to export")
	}

	switch format {
	case FormatEDL:
		highlights, _ := Highlights(result, opts)
		_, err := io.WriteString(w, HighlightEDL(highlights, opts))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(BuildReport(result, sources, opts))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(BuildReport(result, sources, opts)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
