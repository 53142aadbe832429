package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/comedypulse/pulse-agent/internal/analysis"
)

const barCells = 20

var (
	reportTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginTop(1)

	scoreStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("135"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))
)

// RenderReport formats a result for the terminal.
func RenderReport(title string, result *analysis.Result, sources []analysis.Source) string {
	var b strings.Builder

	b.WriteString(reportTitleStyle.Render("Comedy Pulse: " + title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Engagement  %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", result.OverallEngagementScore)))
	if result.TopPerformingJoke != "" {
		fmt.Fprintf(&b, "Top Joke    %s\n", result.TopPerformingJoke)
	}

	b.WriteString(sectionStyle.Render("Summary"))
	b.WriteString("\n")
	b.WriteString(result.Summary)
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Laughter Timeline (%d)", len(result.LaughterEvents))))
	b.WriteString("\n")
	if len(result.LaughterEvents) == 0 {
		b.WriteString(mutedStyle.Render("No laughter events detected."))
		b.WriteString("\n")
	}
	for _, ev := range result.LaughterEvents {
		fmt.Fprintf(&b, "%s  %s %s  %s\n",
			timestampStyle.Render(fmt.Sprintf("%8s", ev.Timestamp)),
			barStyle.Render(intensityBar(ev.Intensity)),
			mutedStyle.Render(fmt.Sprintf("%4.1f %s", ev.Intensity, ev.ReactionType)),
			ev.Setup,
		)
	}

	b.WriteString(sectionStyle.Render("Delivery Insights"))
	b.WriteString("\n")
	for i, insight := range result.DeliveryInsights {
		fmt.Fprintf(&b, "%d. %s\n", i+1, insight)
	}

	if len(sources) > 0 {
		b.WriteString(sectionStyle.Render("Sources"))
		b.WriteString("\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "- %s %s\n", s.Title, mutedStyle.Render(s.URI))
		}
	}

	return b.String()
}

// intensityBar draws intensity on a 0..10 scale as a fixed-width bar.
func intensityBar(intensity float64) string {
	if math.IsNaN(intensity) {
		intensity = 0
	}
	filled := int(math.Round(min(max(intensity, 0), 10) / 10 * barCells))
	return strings.Repeat("█", filled) + strings.Repeat("░", barCells-filled)
}
