// Package analysis holds the comedy analysis domain types shared by the
// model client, the session controller and the view.
package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MinEngagementScore = 1
	MaxEngagementScore = 100
	MinIntensity       = 1
	MaxIntensity       = 10

	// DefaultSourceTitle is used for grounding chunks that carry no title.
	DefaultSourceTitle = "Source"
)

// LaughterEvent is one audience reaction. Timestamp is "M:SS" or "H:MM:SS".
type LaughterEvent struct {
	Timestamp    string  `json:"timestamp" yaml:"timestamp"`
	Setup        string  `json:"setup" yaml:"setup"`
	Intensity    float64 `json:"intensity" yaml:"intensity"`
	ReactionType string  `json:"reactionType" yaml:"reactionType"`
}

// Result is the structured analysis returned by the model.
type Result struct {
	Summary                string          `json:"summary" yaml:"summary"`
	LaughterEvents         []LaughterEvent `json:"laughterEvents" yaml:"laughterEvents"`
	DeliveryInsights       []string        `json:"deliveryInsights" yaml:"deliveryInsights"`
	OverallEngagementScore int             `json:"overallEngagementScore" yaml:"overallEngagementScore"`
	TopPerformingJoke      string          `json:"topPerformingJoke" yaml:"topPerformingJoke"`
}

// UnmarshalJSON accepts a fractional engagement score and rounds it.
func (r *Result) UnmarshalJSON(data []byte) error {
	type alias Result
	aux := struct {
		*alias
		OverallEngagementScore float64 `json:"overallEngagementScore"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	// Bounded just outside [1,100] so the int conversion cannot wrap and
	// Normalize still sees the value as out of range.
	score := aux.OverallEngagementScore
	switch {
	case math.IsNaN(score):
		score = MinEngagementScore - 1
	case score > MaxEngagementScore:
		score = MaxEngagementScore + 1
	case score < MinEngagementScore-1:
		score = MinEngagementScore - 1
	}
	r.OverallEngagementScore = int(math.Round(score))
	return nil
}

// Normalize clamps the score into [1,100] and every intensity into [1,10].
// It reports whether anything had to be changed.
func (r *Result) Normalize() bool {
	changed := false
	if r.OverallEngagementScore < MinEngagementScore {
		r.OverallEngagementScore = MinEngagementScore
		changed = true
	} else if r.OverallEngagementScore > MaxEngagementScore {
		r.OverallEngagementScore = MaxEngagementScore
		changed = true
	}
	for i := range r.LaughterEvents {
		ev := &r.LaughterEvents[i]
		switch {
		case math.IsNaN(ev.Intensity) || ev.Intensity < MinIntensity:
			ev.Intensity = MinIntensity
			changed = true
		case ev.Intensity > MaxIntensity:
			ev.Intensity = MaxIntensity
			changed = true
		}
	}
	if r.LaughterEvents == nil {
		r.LaughterEvents = []LaughterEvent{}
	}
	if r.DeliveryInsights == nil {
		r.DeliveryInsights = []string{}
	}
	return changed
}

// Source is a web page consulted by the model's search tool.
type Source struct {
	URI   string `json:"uri" yaml:"uri"`
	Title string `json:"title" yaml:"title"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one entry of the follow-up transcript.
type ChatTurn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// ParseTimestamp converts "M:SS" or "H:MM:SS" into milliseconds.
func ParseTimestamp(ts string) (int, error) {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}

	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("invalid timestamp %q: field out of range", ts)
		}
		total = total*60 + n
	}
	return total * 1000, nil
}
