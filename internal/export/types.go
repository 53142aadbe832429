package export

import "github.com/comedypulse/pulse-agent/internal/analysis"

const (
	FormatEDL  = "edl"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Highlight windows around a laugh: the setup usually lands a few seconds
// before the reaction peaks.
const (
	DefaultLeadInMs  = 8000
	DefaultTailMs    = 4000
	DefaultFrameRate = 30.0
)

// Options controls which laughter events become highlights.
type Options struct {
	Title        string
	MediaPath    string
	FrameRate    float64
	LeadInMs     int
	TailMs       int
	MinIntensity float64
}

// ResolvedClip is one EDL event in source time.
type ResolvedClip struct {
	ClipName  string
	MediaPath string
	StartMs   int
	EndMs     int
	Comment   string
}

type Highlight struct {
	Timestamp    string  `json:"timestamp" yaml:"timestamp"`
	StartMs      int     `json:"startMs" yaml:"startMs"`
	EndMs        int     `json:"endMs" yaml:"endMs"`
	Setup        string  `json:"setup" yaml:"setup"`
	Intensity    float64 `json:"intensity" yaml:"intensity"`
	ReactionType string  `json:"reactionType" yaml:"reactionType"`
}

// Report is the JSON and YAML export document.
type Report struct {
	Title      string            `json:"title" yaml:"title"`
	Media      string            `json:"media" yaml:"media"`
	Analysis   *analysis.Result  `json:"analysis" yaml:"analysis"`
	Sources    []analysis.Source `json:"sources" yaml:"sources"`
	Highlights []Highlight       `json:"highlights" yaml:"highlights"`
	// Skipped lists timestamps that could not be placed on the timeline.
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}
