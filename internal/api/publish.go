package api

import (
	"log/slog"

	"github.com/comedypulse/pulse-agent/internal/live"
	"github.com/comedypulse/pulse-agent/internal/session"
	"github.com/comedypulse/pulse-agent/internal/view"
)

// StatePublisher re-renders the main fragment for every snapshot and queues
// it on the hub. The returned func is meant for session.Controller.Subscribe.
func StatePublisher(renderer *view.Renderer, hub *live.Hub, logger *slog.Logger) func(session.Snapshot) {
	return func(snap session.Snapshot) {
		html, err := renderer.MainHTML(snap)
		if err != nil {
			logger.Error("render live update failed", "version", snap.Version, "error", err)
			return
		}
		hub.Publish(live.Message{
			Type:    live.TypeState,
			Version: snap.Version,
			Status:  string(snap.Status),
			HTML:    html,
		})
	}
}
