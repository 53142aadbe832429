package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comedypulse/pulse-agent/internal/analysis"
	"github.com/comedypulse/pulse-agent/internal/gemini"
	"github.com/comedypulse/pulse-agent/internal/media"
)

// fakeEncoder returns the file name as the base64 payload.
type fakeEncoder struct {
	err error
}

func (e *fakeEncoder) Encode(f *media.LocalFile) (media.Encoded, error) {
	if e.err != nil {
		return media.Encoded{}, e.err
	}
	return media.Encoded{Base64: f.Name, MediaType: "video/mp4"}, nil
}

type converseCall struct {
	ref     media.Ref
	history []analysis.ChatTurn
	message string
}

// fakeAnalyzer blocks each call on a gate keyed by payload, URL or message
// until the test releases it.
type fakeAnalyzer struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string

	results map[string]*analysis.Result
	sources map[string][]analysis.Source
	replies map[string]string
	errs    map[string]error
	calls   []converseCall
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
		results: map[string]*analysis.Result{},
		sources: map[string][]analysis.Source{},
		replies: map[string]string{},
		errs:    map[string]error{},
	}
}

func (a *fakeAnalyzer) gate(key string) chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.gates[key]
	if !ok {
		g = make(chan struct{})
		a.gates[key] = g
	}
	return g
}

func (a *fakeAnalyzer) release(key string) {
	close(a.gate(key))
}

func (a *fakeAnalyzer) wait(key string) {
	a.started <- key
	<-a.gate(key)
}

func (a *fakeAnalyzer) AnalyzeInlineMedia(_ context.Context, b64, _ string) (*analysis.Result, error) {
	a.wait(b64)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.results[b64], a.errs[b64]
}

func (a *fakeAnalyzer) AnalyzeByURL(_ context.Context, url string) (*analysis.Result, []analysis.Source, error) {
	a.wait(url)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.results[url], a.sources[url], a.errs[url]
}

func (a *fakeAnalyzer) Converse(_ context.Context, ref media.Ref, history []analysis.ChatTurn, message string) (string, error) {
	a.mu.Lock()
	a.calls = append(a.calls, converseCall{ref: ref, history: history, message: message})
	a.mu.Unlock()
	a.wait(message)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.replies[message], a.errs[message]
}

func (a *fakeAnalyzer) expectStarted(t *testing.T, key string) {
	t.Helper()
	select {
	case got := <-a.started:
		require.Equal(t, key, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("call for %q never started", key)
	}
}

func sampleResult(score int) *analysis.Result {
	return &analysis.Result{
		Summary: "Tight ten minutes.",
		LaughterEvents: []analysis.LaughterEvent{
			{Timestamp: "0:42", Setup: "airport bit", Intensity: 8, ReactionType: "roar"},
		},
		DeliveryInsights:       []string{"Great pauses"},
		OverallEngagementScore: score,
		TopPerformingJoke:      "airport bit",
	}
}

func newTestController(a *fakeAnalyzer, e *fakeEncoder) *Controller {
	return NewController(Config{Analyzer: a, Encoder: e})
}

func spooled(t *testing.T, name string) *media.LocalFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o600))
	return &media.LocalFile{Path: path, Name: name, MediaType: "video/mp4", Size: 5}
}

func completeFile(t *testing.T, c *Controller, a *fakeAnalyzer, name string) *media.LocalFile {
	t.Helper()
	f := spooled(t, name)
	a.results[name] = sampleResult(80)
	c.SelectFile(f)
	a.expectStarted(t, name)
	a.release(name)
	c.Wait()
	require.Equal(t, StatusCompleted, c.Snapshot().Status)
	return f
}

func TestController_StartsIdle(t *testing.T) {
	c := newTestController(newFakeAnalyzer(), &fakeEncoder{})
	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Media)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Chat)
}

func TestController_FileHappyPath(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})

	var mu sync.Mutex
	var statuses []Status
	c.Subscribe(func(s Snapshot) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	})

	f := spooled(t, "set.mp4")
	a.results["set.mp4"] = sampleResult(82)
	c.SelectFile(f)
	a.expectStarted(t, "set.mp4")

	snap := c.Snapshot()
	assert.Equal(t, StatusProcessing, snap.Status)
	require.NotNil(t, snap.LocalFile())
	assert.Equal(t, "set.mp4", snap.LocalFile().Base64)

	a.release("set.mp4")
	c.Wait()

	snap = c.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 82, snap.Result.OverallEngagementScore)
	assert.Equal(t, []analysis.Source{}, snap.Sources)
	assert.Empty(t, snap.Chat)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusUploading, StatusProcessing, StatusCompleted}, statuses)
}

func TestController_URLHappyPath(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})

	url := "https://youtu.be/abc123?t=10"
	a.results[url] = sampleResult(90)
	a.sources[url] = []analysis.Source{{URI: "https://example.com/review", Title: "Review"}}

	require.NoError(t, c.SubmitURL("  "+url+"  "))
	snap := c.Snapshot()
	assert.Equal(t, StatusProcessing, snap.Status)
	require.NotNil(t, snap.RemoteURL())
	assert.Equal(t, url, snap.RemoteURL().URL)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", snap.RemoteURL().EmbedURL)

	a.expectStarted(t, url)
	a.release(url)
	c.Wait()

	snap = c.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Len(t, snap.Sources, 1)
	assert.Equal(t, "Review", snap.Sources[0].Title)
}

func TestController_SubmitURLRejectsBlank(t *testing.T) {
	c := newTestController(newFakeAnalyzer(), &fakeEncoder{})
	assert.ErrorIs(t, c.SubmitURL("   "), ErrEmptyURL)
	assert.Equal(t, StatusIdle, c.Snapshot().Status)
}

func TestController_ResultIsNormalized(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})

	url := "https://example.com/set"
	res := sampleResult(250)
	res.LaughterEvents[0].Intensity = 40
	a.results[url] = res

	require.NoError(t, c.SubmitURL(url))
	a.expectStarted(t, url)
	a.release(url)
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, analysis.MaxEngagementScore, snap.Result.OverallEngagementScore)
	assert.Equal(t, float64(analysis.MaxIntensity), snap.Result.LaughterEvents[0].Intensity)
}

func TestController_EncodeFailure(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{err: media.ErrEncodeFailure})

	f := spooled(t, "broken.mp4")
	c.SelectFile(f)
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Nil(t, snap.Media)
	assert.Nil(t, snap.Result)
	_, err := os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err), "spooled upload should be removed")
}

func TestController_AnalysisFailure(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})

	url := "https://example.com/set"
	a.errs[url] = gemini.ErrParseFailure
	require.NoError(t, c.SubmitURL(url))
	a.expectStarted(t, url)
	a.release(url)
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Sources)
}

func TestController_ChatRoundTrip(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})
	completeFile(t, c, a, "set.mp4")

	a.replies["Why did the opener work?"] = "Fast premise."
	sent, err := c.SendChat("Why did the opener work?")
	require.NoError(t, err)
	require.True(t, sent)

	snap := c.Snapshot()
	assert.True(t, snap.IsChatting)
	require.Len(t, snap.Chat, 1)
	assert.Equal(t, analysis.RoleUser, snap.Chat[0].Role)

	a.expectStarted(t, "Why did the opener work?")
	a.release("Why did the opener work?")
	c.Wait()

	snap = c.Snapshot()
	assert.False(t, snap.IsChatting)
	assert.Equal(t, []analysis.ChatTurn{
		{Role: analysis.RoleUser, Content: "Why did the opener work?"},
		{Role: analysis.RoleAssistant, Content: "Fast premise."},
	}, snap.Chat)

	a.replies["And the closer?"] = "Callback."
	_, err = c.SendChat("And the closer?")
	require.NoError(t, err)
	a.expectStarted(t, "And the closer?")
	a.release("And the closer?")
	c.Wait()

	require.Len(t, a.calls, 2)
	assert.Empty(t, a.calls[0].history)
	assert.Len(t, a.calls[1].history, 2, "history excludes the current message")
	assert.Equal(t, "set.mp4", a.calls[1].ref.(*media.LocalFile).Base64)
	assert.Len(t, c.Snapshot().Chat, 4)
}

func TestController_ChatIgnoresBlank(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})
	completeFile(t, c, a, "set.mp4")

	sent, err := c.SendChat("   \n")
	assert.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, c.Snapshot().Chat)
	assert.Empty(t, a.calls)
}

func TestController_ChatRequiresCompleted(t *testing.T) {
	c := newTestController(newFakeAnalyzer(), &fakeEncoder{})
	_, err := c.SendChat("hello")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestController_ChatOneAtATime(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})
	completeFile(t, c, a, "set.mp4")

	_, err := c.SendChat("first")
	require.NoError(t, err)
	a.expectStarted(t, "first")

	_, err = c.SendChat("second")
	assert.ErrorIs(t, err, ErrChatBusy)

	a.release("first")
	c.Wait()
	assert.Len(t, c.Snapshot().Chat, 1, "empty reply adds no assistant turn")
}

func TestController_ChatFailureAppendsApology(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})
	completeFile(t, c, a, "set.mp4")

	a.errs["why?"] = errors.New("boom")
	_, err := c.SendChat("why?")
	require.NoError(t, err)
	a.expectStarted(t, "why?")
	a.release("why?")
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Chat, 2)
	assert.Equal(t, analysis.ChatTurn{Role: analysis.RoleAssistant, Content: ChatApology}, snap.Chat[1])
	assert.False(t, snap.IsChatting)
	assert.Equal(t, StatusCompleted, snap.Status)
}

func TestController_ResetClearsEverything(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})
	f := completeFile(t, c, a, "set.mp4")

	a.replies["q"] = "a"
	_, err := c.SendChat("q")
	require.NoError(t, err)
	a.expectStarted(t, "q")
	a.release("q")
	c.Wait()

	c.Reset()
	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Media)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Sources)
	assert.Empty(t, snap.Chat)
	assert.False(t, snap.IsChatting)

	_, err = os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestController_ResetDuringProcessingDropsLateResult(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})

	url := "https://example.com/set"
	a.results[url] = sampleResult(70)
	require.NoError(t, c.SubmitURL(url))
	a.expectStarted(t, url)

	c.Reset()
	a.release(url)
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Result)
}

func TestController_ReplacedSessionWins(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})

	first := spooled(t, "first.mp4")
	second := spooled(t, "second.mp4")
	a.results["first.mp4"] = sampleResult(11)
	a.results["second.mp4"] = sampleResult(99)

	c.SelectFile(first)
	a.expectStarted(t, "first.mp4")

	c.Reset()
	c.SelectFile(second)
	a.expectStarted(t, "second.mp4")

	a.release("first.mp4")
	a.release("second.mp4")
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 99, snap.Result.OverallEngagementScore)
	assert.Equal(t, "second.mp4", snap.LocalFile().Name)
}

func TestController_ResetDuringChatDropsReply(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})
	completeFile(t, c, a, "set.mp4")

	a.replies["slow"] = "late answer"
	_, err := c.SendChat("slow")
	require.NoError(t, err)
	a.expectStarted(t, "slow")

	c.Reset()
	a.release("slow")
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Chat)
	assert.False(t, snap.IsChatting)
}

func TestController_SubscribersSeeIncreasingVersions(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})

	var versions []uint64
	c.Subscribe(func(s Snapshot) { versions = append(versions, s.Version) })

	completeFile(t, c, a, "set.mp4")
	c.Reset()

	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, versions)
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestController_CloseRemovesUpload(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})
	f := completeFile(t, c, a, "set.mp4")

	c.Close()
	_, err := os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestController_WaitBlocksUntilInflightCallsReturn(t *testing.T) {
	a := newFakeAnalyzer()
	c := newTestController(a, &fakeEncoder{})
	url := "https://youtu.be/abc"
	a.results[url] = sampleResult(70)

	require.NoError(t, c.SubmitURL(url))
	a.expectStarted(t, url)

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned while the analysis call was still running")
	case <-time.After(50 * time.Millisecond):
	}

	a.release(url)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after the call finished")
	}

	c.Close()
	assert.Equal(t, StatusCompleted, c.Snapshot().Status)
}
