// Package gemini talks to the hosted multimodal model over its REST
// generateContent endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/comedypulse/pulse-agent/internal/analysis"
	"github.com/comedypulse/pulse-agent/internal/media"
	"github.com/comedypulse/pulse-agent/internal/metrics"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-3-pro-preview"
	DefaultTimeout = 5 * time.Minute

	// EnvAPIKey names the variable the key is read from on every call.
	EnvAPIKey = "API_KEY"

	opAnalyzeInline = "analyze_inline"
	opAnalyzeURL    = "analyze_url"
	opConverse      = "converse"

	maxErrorBody = 4096
)

type ClientConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// APIKey overrides the per-call environment lookup. Tests only.
	APIKey func() string
	Logger *slog.Logger
}

// Client issues the three model operations. It holds no session state.
type Client struct {
	baseURL    string
	model      string
	apiKey     func() string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIKey == nil {
		cfg.APIKey = func() string { return os.Getenv(EnvAPIKey) }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: cfg.Logger,
	}
}

func (c *Client) Model() string {
	return c.model
}

// AnalyzeInlineMedia sends the video bytes with the analysis prompt and a
// response schema, and decodes the JSON answer directly.
func (c *Client) AnalyzeInlineMedia(ctx context.Context, base64Data, mediaType string) (*analysis.Result, error) {
	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: mediaType, Data: base64Data}},
				{Text: ComedyAnalysisPrompt},
			},
		}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   AnalysisSchema(),
		},
	}

	resp, err := c.generate(ctx, opAnalyzeInline, req)
	if err != nil {
		return nil, err
	}

	text := resp.text()
	if text == "" {
		c.observe(opAnalyzeInline, "empty")
		return nil, ErrEmptyResponse
	}

	result, err := decodeResult(text)
	if err != nil {
		c.observe(opAnalyzeInline, "parse_error")
		return nil, err
	}
	c.observe(opAnalyzeInline, "ok")
	return result, nil
}

// AnalyzeByURL asks the model to research a public video with web search.
// Structured output cannot be combined with the search tool, so the answer
// is parsed loosely.
func (c *Client) AnalyzeByURL(ctx context.Context, url string) (*analysis.Result, []analysis.Source, error) {
	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: urlAnalysisPrompt(url)}},
		}},
		Tools: []tool{{GoogleSearch: &googleSearch{}}},
	}

	resp, err := c.generate(ctx, opAnalyzeURL, req)
	if err != nil {
		return nil, nil, err
	}

	text := resp.text()
	if text == "" {
		c.observe(opAnalyzeURL, "empty")
		return nil, nil, ErrEmptyResponse
	}

	result, err := ParseLooseResult(text)
	if err != nil {
		c.observe(opAnalyzeURL, "parse_error")
		return nil, nil, err
	}
	c.observe(opAnalyzeURL, "ok")
	return result, groundingSources(resp), nil
}

// Converse asks a follow-up question about ref. History turns are sent as
// bare text parts in order, without roles.
func (c *Client) Converse(ctx context.Context, ref media.Ref, history []analysis.ChatTurn, message string) (string, error) {
	parts := make([]part, 0, len(history)+2)
	var tools []tool

	switch r := ref.(type) {
	case *media.LocalFile:
		parts = append(parts, part{InlineData: &inlineData{MimeType: r.MediaType, Data: r.Base64}})
	case *media.RemoteURL:
		parts = append(parts, part{Text: urlContextText(r.URL)})
		tools = []tool{{GoogleSearch: &googleSearch{}}}
	}

	for _, turn := range history {
		parts = append(parts, part{Text: turn.Content})
	}
	parts = append(parts, part{Text: message})

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		Tools:    tools,
	}

	resp, err := c.generate(ctx, opConverse, req)
	if err != nil {
		return "", err
	}
	c.observe(opConverse, "ok")
	return resp.text(), nil
}

// ParseLooseResult decodes the longest balanced JSON object in text, or the
// whole text when there is none.
func ParseLooseResult(text string) (*analysis.Result, error) {
	if obj, ok := ExtractJSON(text); ok {
		return decodeResult(obj)
	}
	return decodeResult(text)
}

func decodeResult(text string) (*analysis.Result, error) {
	var result analysis.Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return &result, nil
}

func groundingSources(resp *generateResponse) []analysis.Source {
	sources := []analysis.Source{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return sources
	}
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web == nil {
			continue
		}
		title := chunk.Web.Title
		if title == "" {
			title = analysis.DefaultSourceTitle
		}
		sources = append(sources, analysis.Source{URI: chunk.Web.URI, Title: title})
	}
	return sources
}

func (c *Client) generate(ctx context.Context, op string, body generateRequest) (*generateResponse, error) {
	start := time.Now()
	defer func() {
		metrics.ModelRequestDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey())

	c.logger.Info("model request",
		"operation", op,
		"model", c.model,
		"body_bytes", len(data),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, "transport_error")
		return nil, &RemoteError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.observe(op, "http_error")
		c.logger.Warn("model request rejected",
			"operation", op,
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.observe(op, "decode_error")
		return nil, &RemoteError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Info("model response",
		"operation", op,
		"candidates", len(out.Candidates),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &out, nil
}

func (c *Client) observe(op, result string) {
	metrics.ModelRequestsTotal.WithLabelValues(op, result).Inc()
}
