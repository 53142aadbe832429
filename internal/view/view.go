// Package view renders the single page and its state-dependent main
// fragment from a session snapshot.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/comedypulse/pulse-agent/internal/analysis"
	"github.com/comedypulse/pulse-agent/internal/media"
	"github.com/comedypulse/pulse-agent/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	tmpl       *template.Template
	modelLabel string
}

// NewRenderer parses the embedded templates. modelLabel is shown in the
// header status pill.
func NewRenderer(modelLabel string) (*Renderer, error) {
	tmpl, err := template.New("pulse").Funcs(template.FuncMap{
		"barStyle": barStyle,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if modelLabel == "" {
		modelLabel = "Gemini 3 Pro"
	}
	return &Renderer{tmpl: tmpl, modelLabel: modelLabel}, nil
}

// Page writes the full document for snap.
func (r *Renderer) Page(w io.Writer, snap session.Snapshot) error {
	return r.tmpl.ExecuteTemplate(w, "page", r.model(snap))
}

// Main writes the fragment swapped into #main.
func (r *Renderer) Main(w io.Writer, snap session.Snapshot) error {
	return r.tmpl.ExecuteTemplate(w, "main", r.model(snap))
}

func (r *Renderer) MainHTML(snap session.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := r.Main(&buf, snap); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type pageModel struct {
	Version    uint64
	Generation uint64
	Status     session.Status
	Busy       bool
	// Ready is true only when both the media and the result are present.
	Ready bool

	Local     *media.LocalFile
	Remote    *media.RemoteURL
	MediaName string
	SizeChip  string

	Result     *analysis.Result
	Sources    []analysis.Source
	Chat       []analysis.ChatTurn
	IsChatting bool

	ModelLabel      string
	MaxUploadBytes  int64
	MaxUploadMB     int64
	OversizeMessage string
}

func (r *Renderer) model(snap session.Snapshot) pageModel {
	m := pageModel{
		Version:         snap.Version,
		Generation:      snap.Generation,
		Status:          snap.Status,
		Busy:            snap.Busy(),
		Local:           snap.LocalFile(),
		Remote:          snap.RemoteURL(),
		Result:          snap.Result,
		Sources:         snap.Sources,
		Chat:            snap.Chat,
		IsChatting:      snap.IsChatting,
		ModelLabel:      r.modelLabel,
		MaxUploadBytes:  media.MaxFileSize,
		MaxUploadMB:     media.MaxFileSize >> 20,
		OversizeMessage: media.OversizeMessage,
	}
	if snap.Media != nil {
		m.MediaName = snap.Media.DisplayName()
	}
	switch {
	case m.Local != nil:
		m.SizeChip = media.FormatSizeMB(m.Local.Size)
	case m.Remote != nil:
		m.SizeChip = "REMOTE URL"
	}
	m.Ready = snap.Status == session.StatusCompleted && snap.Media != nil && snap.Result != nil
	return m
}

// BarWidth is the timeline bar width in percent for an intensity on the
// 1 to 10 scale.
func BarWidth(intensity float64) float64 {
	w := intensity * 10
	switch {
	case math.IsNaN(w), w < 0:
		return 0
	case w > 100:
		return 100
	default:
		return w
	}
}

func barStyle(intensity float64) template.CSS {
	return template.CSS(fmt.Sprintf("width: %g%%", BarWidth(intensity)))
}
