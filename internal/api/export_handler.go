package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/comedypulse/pulse-agent/internal/export"
	"github.com/comedypulse/pulse-agent/internal/session"
)

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := strings.ToLower(r.URL.Query().Get("format"))
		if format == "" {
			format = export.FormatEDL
		}
		contentType, ext, err := export.ContentType(format)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "format must be edl, json or yaml", "BAD_REQUEST")
			return
		}

		snap := cfg.Session.Snapshot()
		if snap.Status != session.StatusCompleted || snap.Result == nil || snap.Media == nil {
			WriteError(w, http.StatusConflict, "no completed analysis to export", "NOT_READY")
			return
		}

		title := snap.Media.DisplayName()

		opts := export.Options{Title: title, MediaPath: mediaPath(snap)}
		var buf bytes.Buffer
		if err := export.Write(&buf, format, snap.Result, snap.Sources, opts); err != nil {
			cfg.Logger.Error("export failed", "format", format, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to export analysis", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileStem(title, "comedy_pulse")+ext))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

// mediaPath is what the edit list points at: the original file name for
// uploads, the link for remote videos.
func mediaPath(snap session.Snapshot) string {
	if f := snap.LocalFile(); f != nil {
		return f.DisplayName()
	}
	if u := snap.RemoteURL(); u != nil {
		return u.URL
	}
	return ""
}
