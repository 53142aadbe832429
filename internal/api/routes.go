package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comedypulse/pulse-agent/internal/config"
	"github.com/comedypulse/pulse-agent/internal/live"
	"github.com/comedypulse/pulse-agent/internal/session"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())
	r.Use(OriginGuard())

	r.Get("/health", healthHandler(cfg))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", pageHandler(cfg))
	if cfg.Hub != nil {
		r.Get("/ws", live.Handler(cfg.Hub, checkWebSocketOrigin))
	}

	r.Route("/session", func(r chi.Router) {
		r.Get("/", sessionHandler(cfg))
		r.Get("/view", viewHandler(cfg))
		r.Post("/file", uploadHandler(cfg))
		r.Post("/url", submitURLHandler(cfg))
		r.Post("/chat", chatHandler(cfg))
		r.Post("/reset", resetHandler(cfg))
		r.Get("/export", exportHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(LoopbackGuard())
			r.Get("/media", mediaHandler(cfg))
			r.Head("/media", mediaHandler(cfg))
		})
	})

	return r
}

func checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || isAllowedOrigin(origin)
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		resp := HealthResponse{
			Status:        "ok",
			Version:       config.Version,
			UptimeS:       uptime,
			Model:         cfg.Model,
			SessionStatus: string(cfg.Session.Snapshot().Status),
		}
		if cfg.HasAPIKey != nil {
			resp.APIKeyConfigured = cfg.HasAPIKey()
		}
		if cfg.Hub != nil {
			resp.LiveClients, _ = cfg.Hub.Stats()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func pageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := cfg.Renderer.Page(w, cfg.Session.Snapshot()); err != nil {
			cfg.Logger.Error("render page failed", "error", err)
		}
	}
}

func viewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := cfg.Session.Snapshot()
		html, err := cfg.Renderer.MainHTML(snap)
		if err != nil {
			cfg.Logger.Error("render view failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to render view", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Session-Version", strconv.FormatUint(snap.Version, 10))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(html))
	}
}

func sessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, SnapshotToResponse(cfg.Session.Snapshot()))
	}
}

func submitURLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req URLRequest
		if err := decodeInput(r, &req, func(r *http.Request) { req.URL = r.FormValue("url") }); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Session.SubmitURL(req.URL); err != nil {
			if errors.Is(err, session.ErrEmptyURL) {
				WriteError(w, http.StatusBadRequest, "url is required", "BAD_REQUEST")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, SnapshotToResponse(cfg.Session.Snapshot()))
	}
}

func chatHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := decodeInput(r, &req, func(r *http.Request) { req.Message = r.FormValue("message") }); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sent, err := cfg.Session.SendChat(req.Message)
		switch {
		case errors.Is(err, session.ErrNotReady):
			WriteError(w, http.StatusConflict, "no completed analysis to chat about", "NOT_READY")
			return
		case errors.Is(err, session.ErrChatBusy):
			WriteError(w, http.StatusConflict, "a reply is still pending", "CHAT_BUSY")
			return
		case err != nil:
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		status := http.StatusOK
		if sent {
			status = http.StatusAccepted
		}
		WriteJSON(w, status, ChatResponse{Sent: sent})
	}
}

func resetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Session.Reset()
		WriteJSON(w, http.StatusOK, SnapshotToResponse(cfg.Session.Snapshot()))
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := cfg.Session.Snapshot().LocalFile()
		if f == nil || f.Path == "" {
			WriteError(w, http.StatusNotFound, "no local media in this session", "NO_MEDIA")
			return
		}

		if err := cfg.PlaybackServer.ServeFile(w, r, f.Path, f.MediaType); err != nil {
			cfg.Logger.Error("playback error", "error", err, "name", f.Name)
		}
	}
}

// decodeInput reads JSON bodies into dst and falls back to form values.
func decodeInput(r *http.Request, dst any, fromForm func(*http.Request)) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.EqualFold(ct, "application/json") {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	fromForm(r)
	return nil
}
