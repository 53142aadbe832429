// Package session owns the single active analysis session and drives its
// state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/comedypulse/pulse-agent/internal/analysis"
	"github.com/comedypulse/pulse-agent/internal/gemini"
	"github.com/comedypulse/pulse-agent/internal/logging"
	"github.com/comedypulse/pulse-agent/internal/media"
	"github.com/comedypulse/pulse-agent/internal/metrics"
)

var (
	ErrEmptyURL = errors.New("url is required")
	ErrNotReady = errors.New("no completed analysis to chat about")
	ErrChatBusy = errors.New("a chat reply is still pending")
)

// Analyzer is the part of the model client the controller drives.
type Analyzer interface {
	AnalyzeInlineMedia(ctx context.Context, base64Data, mediaType string) (*analysis.Result, error)
	AnalyzeByURL(ctx context.Context, url string) (*analysis.Result, []analysis.Source, error)
	Converse(ctx context.Context, ref media.Ref, history []analysis.ChatTurn, message string) (string, error)
}

type Encoder interface {
	Encode(f *media.LocalFile) (media.Encoded, error)
}

type Config struct {
	Analyzer Analyzer
	Encoder  Encoder
	Logger   *slog.Logger
	// BaseContext is used for every remote call. It is not cancelled by
	// Reset or by a replacing session.
	BaseContext context.Context
}

// Controller holds exactly one session. Every action that starts a new
// session bumps the generation; asynchronous completions carrying an older
// generation are dropped.
type Controller struct {
	analyzer Analyzer
	encoder  Encoder
	logger   *slog.Logger
	ctx      context.Context

	mu         sync.Mutex
	generation uint64
	version    uint64
	status     Status
	media      media.Ref
	result     *analysis.Result
	sources    []analysis.Source
	chat       []analysis.ChatTurn
	chatting   bool
	subs       []func(Snapshot)

	wg sync.WaitGroup
}

func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	return &Controller{
		analyzer: cfg.Analyzer,
		encoder:  cfg.Encoder,
		logger:   logging.WithComponent(cfg.Logger, "session"),
		ctx:      cfg.BaseContext,
		status:   StatusIdle,
	}
}

// Subscribe registers fn to receive every published snapshot, in order.
// fn runs with the controller locked: it must not block and must not call
// back into the controller.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until every in-flight encode, analysis and chat call has
// returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// SelectFile replaces the current session with a local upload and starts
// encoding it. The controller owns f.Path from here on and removes it when
// the session is replaced, fails or is reset.
func (c *Controller) SelectFile(f *media.LocalFile) {
	c.mu.Lock()
	gen := c.beginLocked()
	c.media = f
	c.setStatusLocked(StatusUploading)
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Info("file selected",
		"generation", gen,
		"name", f.Name,
		"media_type", f.MediaType,
		"size", f.Size,
	)

	c.wg.Add(1)
	go c.runFile(gen, f)
}

// SubmitURL replaces the current session with a remote link and starts the
// grounded analysis of the original URL.
func (c *Controller) SubmitURL(raw string) error {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ErrEmptyURL
	}

	ref := media.NewRemoteURL(url)

	c.mu.Lock()
	gen := c.beginLocked()
	c.media = ref
	c.setStatusLocked(StatusProcessing)
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Info("url submitted", "generation", gen, "url", url, "embed_url", ref.EmbedURL)

	c.wg.Add(1)
	go c.runURL(gen, ref)
	return nil
}

// SendChat appends the user turn and issues one follow-up call. Blank input
// is ignored and reports false. At most one call is outstanding at a time.
func (c *Controller) SendChat(message string) (bool, error) {
	if strings.TrimSpace(message) == "" {
		return false, nil
	}

	c.mu.Lock()
	if c.status != StatusCompleted {
		c.mu.Unlock()
		return false, ErrNotReady
	}
	if c.chatting {
		c.mu.Unlock()
		return false, ErrChatBusy
	}

	history := append([]analysis.ChatTurn(nil), c.chat...)
	c.chat = append(c.chat, analysis.ChatTurn{Role: analysis.RoleUser, Content: message})
	c.chatting = true
	gen := c.generation
	ref := c.media
	metrics.ChatTurnsTotal.WithLabelValues(string(analysis.RoleUser)).Inc()
	c.publishLocked()
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runChat(gen, ref, history, message)
	return true, nil
}

// Reset returns to Idle. In-flight calls keep running; their results are
// discarded on arrival.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.beginLocked()
	c.setStatusLocked(StatusIdle)
	c.publishLocked()
	c.logger.Info("session reset", "generation", gen)
}

// Close drops the current session and removes any spooled upload.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.discardMediaLocked()
}

func (c *Controller) runFile(gen uint64, f *media.LocalFile) {
	defer c.wg.Done()
	log := logging.WithSessionGeneration(c.logger, gen)

	enc, err := c.encoder.Encode(f)

	c.mu.Lock()
	if c.staleLocked(gen, "encode") {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.failLocked(log, "encode", err)
		c.mu.Unlock()
		return
	}
	encoded := *f
	encoded.Base64 = enc.Base64
	encoded.MediaType = enc.MediaType
	c.media = &encoded
	c.setStatusLocked(StatusProcessing)
	c.publishLocked()
	c.mu.Unlock()

	log.Info("file encoded", "media_type", encoded.MediaType, "base64_bytes", len(encoded.Base64))

	result, err := c.analyzer.AnalyzeInlineMedia(c.ctx, encoded.Base64, encoded.MediaType)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen, "analysis") {
		return
	}
	if err != nil {
		c.failLocked(log, "analysis", err)
		return
	}
	c.completeLocked(log, result, []analysis.Source{})
}

func (c *Controller) runURL(gen uint64, ref *media.RemoteURL) {
	defer c.wg.Done()
	log := logging.WithSessionGeneration(c.logger, gen)

	result, sources, err := c.analyzer.AnalyzeByURL(c.ctx, ref.URL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen, "analysis") {
		return
	}
	if err != nil {
		c.failLocked(log, "analysis", err)
		return
	}
	if sources == nil {
		sources = []analysis.Source{}
	}
	c.completeLocked(log, result, sources)
}

func (c *Controller) runChat(gen uint64, ref media.Ref, history []analysis.ChatTurn, message string) {
	defer c.wg.Done()
	log := logging.WithSessionGeneration(c.logger, gen)

	reply, err := c.analyzer.Converse(c.ctx, ref, history, message)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen, "chat") {
		return
	}

	switch {
	case err != nil:
		log.Warn("chat call failed", "error", err, "kind", errorKind(err))
		c.appendAssistantLocked(ChatApology)
	case reply != "":
		c.appendAssistantLocked(reply)
	default:
		log.Warn("chat call returned no text")
	}
	c.chatting = false
	c.publishLocked()
}

// beginLocked starts a new generation and clears every derived field.
func (c *Controller) beginLocked() uint64 {
	c.generation++
	c.discardMediaLocked()
	c.result = nil
	c.sources = nil
	c.chat = nil
	c.chatting = false
	return c.generation
}

func (c *Controller) staleLocked(gen uint64, stage string) bool {
	if gen == c.generation {
		return false
	}
	metrics.StaleResultsTotal.WithLabelValues(stage).Inc()
	c.logger.Info("discarding stale result", "stage", stage, "generation", gen, "current", c.generation)
	return true
}

func (c *Controller) failLocked(log *slog.Logger, stage string, err error) {
	log.Error("session failed", "stage", stage, "kind", errorKind(err), "error", err)
	c.discardMediaLocked()
	c.result = nil
	c.sources = nil
	c.setStatusLocked(StatusError)
	c.publishLocked()
}

func (c *Controller) completeLocked(log *slog.Logger, result *analysis.Result, sources []analysis.Source) {
	if result == nil {
		c.failLocked(log, "analysis", gemini.ErrEmptyResponse)
		return
	}
	if result.Normalize() {
		log.Warn("analysis values clamped into range")
	}
	c.result = result
	c.sources = sources
	c.setStatusLocked(StatusCompleted)
	c.publishLocked()
	log.Info("analysis completed",
		"laughter_events", len(result.LaughterEvents),
		"score", result.OverallEngagementScore,
		"sources", len(sources),
	)
}

func (c *Controller) appendAssistantLocked(content string) {
	c.chat = append(c.chat, analysis.ChatTurn{Role: analysis.RoleAssistant, Content: content})
	metrics.ChatTurnsTotal.WithLabelValues(string(analysis.RoleAssistant)).Inc()
}

func (c *Controller) setStatusLocked(s Status) {
	c.status = s
	metrics.SessionTransitionsTotal.WithLabelValues(string(s)).Inc()
}

func (c *Controller) discardMediaLocked() {
	if f, ok := c.media.(*media.LocalFile); ok && f.Path != "" {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove upload", "path", logging.SanitizePath(f.Path), "error", err)
		}
	}
	c.media = nil
}

func (c *Controller) publishLocked() {
	c.version++
	snap := c.snapshotLocked()
	for _, fn := range c.subs {
		fn(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:    c.version,
		Generation: c.generation,
		Status:     c.status,
		Media:      c.media,
		Result:     c.result,
		IsChatting: c.chatting,
	}
	if c.sources != nil {
		snap.Sources = append([]analysis.Source{}, c.sources...)
	}
	if c.chat != nil {
		snap.Chat = append([]analysis.ChatTurn{}, c.chat...)
	}
	return snap
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, media.ErrEncodeFailure):
		return "encode_failure"
	case errors.Is(err, gemini.ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, gemini.ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, gemini.ErrRemoteFailure):
		return "remote_failure"
	default:
		return fmt.Sprintf("%T", err)
	}
}
