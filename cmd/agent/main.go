package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/comedypulse/pulse-agent/internal/api"
	"github.com/comedypulse/pulse-agent/internal/config"
	"github.com/comedypulse/pulse-agent/internal/gemini"
	"github.com/comedypulse/pulse-agent/internal/live"
	"github.com/comedypulse/pulse-agent/internal/logging"
	"github.com/comedypulse/pulse-agent/internal/media"
	"github.com/comedypulse/pulse-agent/internal/metrics"
	"github.com/comedypulse/pulse-agent/internal/playback"
	"github.com/comedypulse/pulse-agent/internal/session"
	"github.com/comedypulse/pulse-agent/internal/ui"
	"github.com/comedypulse/pulse-agent/internal/view"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.UploadsDir(), 0o700); err != nil {
		return fmt.Errorf("failed to create uploads dir: %w", err)
	}

	logger := logging.New(logging.Options{
		Level:  cfg.LogLevel(),
		Format: cfg.LogFormat(),
		File:   cfg.LogFile(),
	})
	logger.Info("starting comedy pulse agent",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"model", cfg.Model(),
	)
	if !cfg.HasAPIKey() {
		logger.Warn("model credential not set, analyses will fail until it is", "env", config.EnvAPIKey)
	}

	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := gemini.NewClient(gemini.ClientConfig{
		BaseURL: cfg.GeminiBaseURL(),
		Model:   cfg.Model(),
		Timeout: cfg.GeminiTimeout(),
		Logger:  logging.WithComponent(logger, "gemini"),
	})

	ctrl := session.NewController(session.Config{
		Analyzer:    client,
		Encoder:     media.NewEncoder(logging.WithComponent(logger, "media")),
		Logger:      logger,
		BaseContext: ctx,
	})

	renderer, err := view.NewRenderer("")
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	hub := live.NewHub(logger)
	go hub.Run(ctx)
	ctrl.Subscribe(api.StatePublisher(renderer, hub, logging.WithComponent(logger, "live")))

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		UploadsDir:     cfg.UploadsDir(),
		Session:        ctrl,
		Renderer:       renderer,
		Hub:            hub,
		PlaybackServer: playback.NewServer(logger),
		Logger:         logging.WithComponent(logger, "api"),
		StartTime:      startTime,
		Model:          client.Model(),
		HasAPIKey:      cfg.HasAPIKey,
	})

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  COMEDY PULSE v%-27s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Open:   %-49s║\n", apiServer.URL())
	fmt.Printf("║  Model:  %-49s║\n", client.Model())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	quit := sync.OnceFunc(func() { close(quitCh) })

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Session: ctrl,
			URL:     apiServer.URL(),
			Logger:  logging.WithComponent(logger, "tray"),
			OnQuit:  quit,
		})
		ctrl.Subscribe(tray.Observe)
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdown(logger, apiServer, cancel, ctrl)
	return nil
}

type httpServer interface {
	Shutdown(ctx context.Context) error
}

type sessionCloser interface {
	Wait()
	Close()
}

// shutdown stops accepting requests, cancels in-flight model calls and
// waits for them before removing the spooled upload.
func shutdown(logger *slog.Logger, srv httpServer, cancel context.CancelFunc, ctrl sessionCloser) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	cancel()
	ctrl.Wait()
	ctrl.Close()

	logger.Info("shutdown complete")
}
