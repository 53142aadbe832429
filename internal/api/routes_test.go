package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/comedypulse/pulse-agent/internal/analysis"
	"github.com/comedypulse/pulse-agent/internal/media"
	"github.com/comedypulse/pulse-agent/internal/playback"
	"github.com/comedypulse/pulse-agent/internal/session"
	"github.com/comedypulse/pulse-agent/internal/view"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubAnalyzer answers every call immediately.
type stubAnalyzer struct {
	result  *analysis.Result
	sources []analysis.Source
	reply   string
	err     error
}

func (s *stubAnalyzer) AnalyzeInlineMedia(context.Context, string, string) (*analysis.Result, error) {
	return s.copyResult(), s.err
}

func (s *stubAnalyzer) AnalyzeByURL(context.Context, string) (*analysis.Result, []analysis.Source, error) {
	return s.copyResult(), s.sources, s.err
}

func (s *stubAnalyzer) Converse(context.Context, media.Ref, []analysis.ChatTurn, string) (string, error) {
	return s.reply, s.err
}

func (s *stubAnalyzer) copyResult() *analysis.Result {
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

type testEnv struct {
	ctrl    *session.Controller
	router  http.Handler
	uploads string
}

func newTestEnv(t *testing.T, a *stubAnalyzer) *testEnv {
	t.Helper()
	logger := testLogger()
	ctrl := session.NewController(session.Config{
		Analyzer: a,
		Encoder:  media.NewEncoder(logger),
		Logger:   logger,
	})
	t.Cleanup(func() {
		ctrl.Wait()
		ctrl.Close()
	})

	renderer, err := view.NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	uploads := t.TempDir()
	router := NewRouter(ServerConfig{
		UploadsDir:     uploads,
		Session:        ctrl,
		Renderer:       renderer,
		PlaybackServer: playback.NewServer(logger),
		Logger:         logger,
		StartTime:      time.Now(),
		Model:          "gemini-3-pro-preview",
		HasAPIKey:      func() bool { return true },
	})
	return &testEnv{ctrl: ctrl, router: router, uploads: uploads}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	if req.RemoteAddr == "" || req.RemoteAddr == "192.0.2.1:1234" {
		req.RemoteAddr = "127.0.0.1:50000"
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func sampleResult() *analysis.Result {
	return &analysis.Result{
		Summary: "S",
		LaughterEvents: []analysis.LaughterEvent{
			{Timestamp: "0:42", Setup: "X", Intensity: 7, ReactionType: "Guffaw"},
		},
		DeliveryInsights:       []string{"A", "B", "C"},
		OverallEngagementScore: 88,
		TopPerformingJoke:      "X",
	}
}

func uploadRequest(t *testing.T, field, name string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + name + `"`}
	h["Content-Type"] = []string{"video/mp4"}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	part.Write(body)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/session/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode session: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.SessionStatus != "idle" || !body.APIKeyConfigured {
		t.Errorf("unexpected health: %+v", body)
	}
	if body.Model != "gemini-3-pro-preview" {
		t.Errorf("model = %q", body.Model)
	}
}

func TestPageHandler(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "Upload Comedy Set") {
		t.Errorf("idle page missing uploader")
	}
}

func TestUploadFlow(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{result: sampleResult()})

	rr := env.do(uploadRequest(t, "video", "set.mp4", []byte("fake video bytes")))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	env.ctrl.Wait()

	rr = env.do(httptest.NewRequest(http.MethodGet, "/session", nil))
	resp := decodeSession(t, rr)
	if resp.Status != "completed" {
		t.Fatalf("status = %q, want completed", resp.Status)
	}
	if resp.Media == nil || resp.Media.Kind != "file" || resp.Media.Name != "set.mp4" {
		t.Fatalf("media = %+v", resp.Media)
	}
	if resp.Result.OverallEngagementScore != 88 {
		t.Errorf("score = %d", resp.Result.OverallEngagementScore)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/session/view", nil))
	if !strings.Contains(rr.Body.String(), `style="width: 70%"`) {
		t.Errorf("view missing 70%% bar: %s", rr.Body.String())
	}
	if rr.Header().Get("X-Session-Version") == "" {
		t.Error("missing X-Session-Version")
	}

	req := httptest.NewRequest(http.MethodGet, "/session/media", nil)
	req.Header.Set("Range", "bytes=0-3")
	rr = env.do(req)
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "fake" {
		t.Errorf("media range: status = %d body = %q", rr.Code, rr.Body.String())
	}
}

func TestUploadRejectsOversize(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{})

	big := make([]byte, media.MaxFileSize+1)
	rr := env.do(uploadRequest(t, "video", "huge.mp4", big))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
	if body := decodeError(t, rr); body.Error != media.OversizeMessage {
		t.Errorf("error = %q", body.Error)
	}
	if env.ctrl.Snapshot().Status != session.StatusIdle {
		t.Errorf("oversize upload changed session state")
	}
	entries, _ := os.ReadDir(env.uploads)
	if len(entries) != 0 {
		t.Errorf("spool file left behind: %v", entries)
	}
}

func TestUploadAcceptsExactLimit(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{result: sampleResult()})

	rr := env.do(uploadRequest(t, "video", "limit.mp4", make([]byte, media.MaxFileSize)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	env.ctrl.Wait()
}

func TestUploadSpoolsWithLowercaseExtension(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{result: sampleResult()})

	rr := env.do(uploadRequest(t, "video", "Closer.MOV", []byte("moov")))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	env.ctrl.Wait()

	entries, err := os.ReadDir(env.uploads)
	if err != nil || len(entries) != 1 {
		t.Fatalf("uploads = %v, err = %v", entries, err)
	}
	if name := entries[0].Name(); !strings.HasSuffix(name, ".mov") || strings.Contains(name, "Closer") {
		t.Errorf("spool name = %q", name)
	}
	if got := env.ctrl.Snapshot().LocalFile().Name; got != "Closer.MOV" {
		t.Errorf("display name = %q", got)
	}
}

func TestUploadRequiresVideoField(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{})
	rr := env.do(uploadRequest(t, "other", "set.mp4", []byte("x")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestSubmitURL(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{
		result:  sampleResult(),
		sources: []analysis.Source{{URI: "u1", Title: "T1"}, {URI: "u2", Title: "T2"}},
	})

	form := url.Values{"url": {"  https://www.youtube.com/watch?v=abc123&t=5s "}}
	req := httptest.NewRequest(http.MethodPost, "/session/url", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	env.ctrl.Wait()

	resp := decodeSession(t, env.do(httptest.NewRequest(http.MethodGet, "/session", nil)))
	if resp.Status != "completed" || len(resp.Sources) != 2 {
		t.Fatalf("session = %+v", resp)
	}
	if resp.Media.EmbedURL != "https://www.youtube.com/embed/abc123" {
		t.Errorf("embed = %q", resp.Media.EmbedURL)
	}
	if resp.Media.URL != "https://www.youtube.com/watch?v=abc123&t=5s" {
		t.Errorf("url = %q", resp.Media.URL)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/session/media", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("media for remote session: status = %d, want 404", rr.Code)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/session/export", nil))
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="YouTube_Performance.edl"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if body := rr.Body.String(); !strings.HasPrefix(body, "TITLE: YouTube Performance\n") {
		t.Errorf("edl body = %q", body)
	}
}

func TestSubmitURL_JSONAndEmpty(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{result: sampleResult()})

	req := httptest.NewRequest(http.MethodPost, "/session/url", strings.NewReader(`{"url":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/session/url", strings.NewReader(`{"url":`))
	req.Header.Set("Content-Type", "application/json")
	if rr := env.do(req); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed json status = %d, want 400", rr.Code)
	}
}

func postChat(env *testEnv, msg string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(ChatRequest{Message: msg})
	req := httptest.NewRequest(http.MethodPost, "/session/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return env.do(req)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{result: sampleResult(), reply: "Slow down."})

	if rr := postChat(env, "Pacing?"); rr.Code != http.StatusConflict {
		t.Fatalf("chat before analysis: status = %d, want 409", rr.Code)
	}

	env.do(uploadRequest(t, "video", "set.mp4", []byte("bytes")))
	env.ctrl.Wait()

	rr := postChat(env, "   ")
	if rr.Code != http.StatusOK {
		t.Fatalf("blank chat status = %d, want 200", rr.Code)
	}
	var cr ChatResponse
	json.NewDecoder(rr.Body).Decode(&cr)
	if cr.Sent {
		t.Error("blank chat reported as sent")
	}

	if rr := postChat(env, "Pacing?"); rr.Code != http.StatusAccepted {
		t.Fatalf("chat status = %d, want 202", rr.Code)
	}
	env.ctrl.Wait()

	resp := decodeSession(t, env.do(httptest.NewRequest(http.MethodGet, "/session", nil)))
	want := []analysis.ChatTurn{
		{Role: analysis.RoleUser, Content: "Pacing?"},
		{Role: analysis.RoleAssistant, Content: "Slow down."},
	}
	if len(resp.Chat) != 2 || resp.Chat[0] != want[0] || resp.Chat[1] != want[1] {
		t.Errorf("chat = %+v", resp.Chat)
	}
}

func TestReset(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{result: sampleResult()})
	env.do(uploadRequest(t, "video", "set.mp4", []byte("bytes")))
	env.ctrl.Wait()

	rr := env.do(httptest.NewRequest(http.MethodPost, "/session/reset", nil))
	resp := decodeSession(t, rr)
	if resp.Status != "idle" || resp.Media != nil || resp.Result != nil || len(resp.Chat) != 0 {
		t.Fatalf("after reset: %+v", resp)
	}

	entries, _ := os.ReadDir(env.uploads)
	if len(entries) != 0 {
		t.Errorf("upload not removed on reset: %v", entries)
	}
}

func TestResetRejectsCrossSiteForm(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{})
	req := httptest.NewRequest(http.MethodPost, "/session/reset", nil)
	req.Header.Set("Origin", "https://evil.com")
	if rr := env.do(req); rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{result: sampleResult()})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/session/export?format=edl", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("export before analysis: status = %d, want 409", rr.Code)
	}

	env.do(uploadRequest(t, "video", "set.mp4", []byte("bytes")))
	env.ctrl.Wait()

	rr = env.do(httptest.NewRequest(http.MethodGet, "/session/export?format=edl", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("edl status = %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, `set.mp4.edl`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "TITLE: set.mp4") || !strings.Contains(body, "* COMMENT:  LAUGH AT 0:42") {
		t.Errorf("edl body = %q", body)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/session/export?format=json", nil))
	var report map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode json export: %v", err)
	}
	if report["title"] != "set.mp4" {
		t.Errorf("title = %v", report["title"])
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/session/export?format=yaml", nil))
	if !strings.Contains(rr.Body.String(), "topPerformingJoke: X") {
		t.Errorf("yaml body = %q", rr.Body.String())
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/session/export?format=pdf", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("pdf status = %d, want 400", rr.Code)
	}
}

func TestMediaRequiresLoopback(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{})
	req := httptest.NewRequest(http.MethodGet, "/session/media", nil)
	req.RemoteAddr = "10.0.0.5:4444"
	if rr := env.do(req); rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubAnalyzer{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
