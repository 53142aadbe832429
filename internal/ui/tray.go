package ui

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/comedypulse/pulse-agent/internal/session"
)

//go:embed icon.png
var iconBytes []byte

// Resetter is the part of the session controller the tray drives.
type Resetter interface {
	Reset()
}

type Tray struct {
	session Resetter
	url     string
	logger  *slog.Logger

	statusItem *systray.MenuItem
	mediaItem  *systray.MenuItem
	resetItem  *systray.MenuItem

	mu     sync.Mutex
	latest session.Snapshot
	ready  bool

	openURL func(string) error
	onQuit  func()
}

type TrayConfig struct {
	Session Resetter
	// URL is the page opened by "Open Comedy Pulse".
	URL     string
	Logger  *slog.Logger
	OpenURL func(string) error
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	if cfg.OpenURL == nil {
		cfg.OpenURL = OpenBrowser
	}
	return &Tray{
		session: cfg.Session,
		url:     cfg.URL,
		logger:  cfg.Logger,
		openURL: cfg.OpenURL,
		onQuit:  cfg.OnQuit,
		latest:  session.Snapshot{Status: session.StatusIdle},
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Comedy Pulse")
	systray.SetTooltip("Comedy Pulse")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem(statusLabel(t.latest), "Current analysis status")
	t.statusItem.Disable()
	t.mediaItem = systray.AddMenuItem(mediaLabel(t.latest), "Media under analysis")
	t.mediaItem.Disable()
	t.ready = true
	t.mu.Unlock()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Comedy Pulse", "Open the analysis page in a browser")
	t.resetItem = systray.AddMenuItem("New Analysis", "Discard the current session")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Comedy Pulse")

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				t.handleOpen()
			case <-t.resetItem.ClickedCh:
				t.logger.Info("new analysis requested from tray")
				t.session.Reset()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleOpen() {
	if err := t.openURL(t.url); err != nil {
		t.logger.Error("failed to open browser", "url", t.url, "error", err)
	}
}

// Observe mirrors a session snapshot into the menu. It is registered as a
// controller subscriber and never blocks.
func (t *Tray) Observe(snap session.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = snap
	if !t.ready {
		return
	}
	t.statusItem.SetTitle(statusLabel(snap))
	t.mediaItem.SetTitle(mediaLabel(snap))
}

func (t *Tray) Quit() {
	systray.Quit()
}

func statusLabel(snap session.Snapshot) string {
	switch snap.Status {
	case session.StatusUploading:
		return "Status: Preparing video"
	case session.StatusProcessing:
		return "Status: Analyzing"
	case session.StatusCompleted:
		if snap.IsChatting {
			return "Status: Coach is typing"
		}
		if snap.Result != nil {
			return fmt.Sprintf("Status: Done (%d/100)", snap.Result.OverallEngagementScore)
		}
		return "Status: Done"
	case session.StatusError:
		return "Status: Analysis failed"
	default:
		return "Status: Idle"
	}
}

func mediaLabel(snap session.Snapshot) string {
	if snap.Media == nil {
		return "No video selected"
	}
	return "Video: " + snap.Media.DisplayName()
}
