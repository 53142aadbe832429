package export

import (
	"fmt"
	"sort"

	"github.com/comedypulse/pulse-agent/internal/analysis"
)

func (o Options) withDefaults() Options {
	if o.FrameRate <= 0 {
		o.FrameRate = DefaultFrameRate
	}
	if o.LeadInMs <= 0 {
		o.LeadInMs = DefaultLeadInMs
	}
	if o.TailMs <= 0 {
		o.TailMs = DefaultTailMs
	}
	if o.Title == "" {
		o.Title = "Comedy Set"
	}
	return o
}

// Highlights turns laughter events into timeline windows ordered by start
// time. Events with unparseable timestamps are returned in skipped.
func Highlights(result *analysis.Result, opts Options) (highlights []Highlight, skipped []string) {
	opts = opts.withDefaults()
	highlights = []Highlight{}
	if result == nil {
		return highlights, nil
	}

	for _, ev := range result.LaughterEvents {
		if ev.Intensity < opts.MinIntensity {
			continue
		}
		at, err := analysis.ParseTimestamp(ev.Timestamp)
		if err != nil {
			skipped = append(skipped, ev.Timestamp)
			continue
		}
		start := at - opts.LeadInMs
		if start < 0 {
			start = 0
		}
		highlights = append(highlights, Highlight{
			Timestamp:    ev.Timestamp,
			StartMs:      start,
			EndMs:        at + opts.TailMs,
			Setup:        ev.Setup,
			Intensity:    ev.Intensity,
			ReactionType: ev.ReactionType,
		})
	}

	sort.SliceStable(highlights, func(i, j int) bool {
		return highlights[i].StartMs < highlights[j].StartMs
	})
	return highlights, skipped
}

// Clips maps highlights onto EDL events against a single source.
func Clips(highlights []Highlight, opts Options) []ResolvedClip {
	opts = opts.withDefaults()
	clips := make([]ResolvedClip, 0, len(highlights))
	for i, h := range highlights {
		name := CleanLabel(h.Setup, 60)
		if name == "" {
			name = fmt.Sprintf("Laugh %d", i+1)
		}
		clips = append(clips, ResolvedClip{
			ClipName:  name,
			MediaPath: opts.MediaPath,
			StartMs:   h.StartMs,
			EndMs:     h.EndMs,
			Comment:   fmt.Sprintf("LAUGH AT %s INTENSITY %g %s", h.Timestamp, h.Intensity, CleanLabel(h.ReactionType, 40)),
		})
	}
	return clips
}

// BuildReport assembles the document written by the JSON and YAML exports.
func BuildReport(result *analysis.Result, sources []analysis.Source, opts Options) Report {
	opts = opts.withDefaults()
	highlights, skipped := Highlights(result, opts)
	if sources == nil {
		sources = []analysis.Source{}
	}
	return Report{
		Title:      opts.Title,
		Media:      opts.MediaPath,
		Analysis:   result,
		Sources:    sources,
		Highlights: highlights,
		Skipped:    skipped,
	}
}
