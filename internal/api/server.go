// Package api serves the analysis page, its live updates and the session
// endpoints on the loopback interface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/comedypulse/pulse-agent/internal/live"
	"github.com/comedypulse/pulse-agent/internal/media"
	"github.com/comedypulse/pulse-agent/internal/playback"
	"github.com/comedypulse/pulse-agent/internal/session"
	"github.com/comedypulse/pulse-agent/internal/view"
)

// SessionService is the part of the session controller the handlers drive.
type SessionService interface {
	Snapshot() session.Snapshot
	SelectFile(f *media.LocalFile)
	SubmitURL(raw string) error
	SendChat(message string) (bool, error)
	Reset()
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	UploadsDir     string
	Session        SessionService
	Renderer       *view.Renderer
	Hub            *live.Hub
	PlaybackServer playback.PlaybackService
	Logger         *slog.Logger
	StartTime      time.Time
	Model          string
	// HasAPIKey reports whether the model credential is configured.
	HasAPIKey func() bool
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       2 * time.Minute,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// URL is the page address a browser should open.
func (s *Server) URL() string {
	return "http://" + s.httpServer.Addr + "/"
}
