package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synrais/ROLL-GO/pkg/config"
	"github.com/synrais/ROLL-GO/pkg/history"
	"github.com/synrais/ROLL-GO/pkg/logging"
	"github.com/synrais/ROLL-GO/pkg/player"
	"github.com/synrais/ROLL-GO/pkg/rng"
	"github.com/synrais/ROLL-GO/pkg/run"
	"github.com/synrais/ROLL-GO/pkg/table"
)

type fakePlayer struct {
	mu     sync.Mutex
	played []string
}

func (f *fakePlayer) Play(ctx context.Context, media string) (player.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, media)
	return player.Result{Path: media, Success: true}, nil
}

func (f *fakePlayer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

// heldPlayer blocks until its context is done, like a player left running
// until shutdown.
type heldPlayer struct {
	started  chan struct{}
	mu       sync.Mutex
	calls    int
	finished bool
}

func (h *heldPlayer) Play(ctx context.Context, media string) (player.Result, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	h.started <- struct{}{}

	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)

	h.mu.Lock()
	h.finished = true
	h.mu.Unlock()
	return player.Result{Path: media, ExitCode: -1}, nil
}

func TestMain(m *testing.M) {
	logging.SetOutput(&bytes.Buffer{})
	os.Exit(m.Run())
}

type fixture struct {
	srv    *Server
	ts     *httptest.Server
	store  *history.Store
	player *fakePlayer
}

func newFixture(t *testing.T, gen rng.Generator, mutate func(*config.UserConfig)) *fixture {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Server.AssetsDir = t.TempDir()
	cfg.Server.StaticDir = filepath.Join(t.TempDir(), "missing")
	cfg.Server.CorsOrigins = []string{"*"}
	if mutate != nil {
		mutate(cfg)
	}

	var store *history.Store
	if cfg.History.Enabled {
		var err error
		store, err = history.Open(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
	}

	fp := &fakePlayer{}
	runner := &run.Runner{Player: fp}
	if store != nil {
		runner.History = store
	}
	srv := New(cfg, table.Default(), gen, runner, store)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &fixture{srv: srv, ts: ts, store: store, player: fp}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, rng.Fixed(9), nil)

	resp, body := get(t, f.ts.URL+"/generate")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"number":9,"video_path":"assets/video3.mp4","message":"Number Of Inches: 9"}`, string(body))

	// drawn but not played
	assert.Equal(t, 0, f.player.count())
	recs, err := f.store.Recent(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, history.SourceHTTP, recs[0].Source)
	assert.False(t, recs[0].Played)
}

func TestGenerateInvalidNumber(t *testing.T) {
	f := newFixture(t, rng.Fixed(0), nil)
	_, body := get(t, f.ts.URL+"/generate")
	assert.JSONEq(t, `{"number":0,"video_path":null,"message":"Invalid number"}`, string(body))
}

func TestGenerateRandomStaysInTable(t *testing.T) {
	f := newFixture(t, rng.NewSeeded(3), nil)
	for i := 0; i < 20; i++ {
		_, body := get(t, f.ts.URL+"/generate")
		var sel table.Selection
		require.NoError(t, json.Unmarshal(body, &sel))
		assert.GreaterOrEqual(t, sel.Number, 1)
		assert.LessOrEqual(t, sel.Number, 11)
		assert.True(t, sel.HasVideo())
	}
}

func TestGenerateRejectsPost(t *testing.T) {
	f := newFixture(t, rng.Fixed(1), nil)
	resp, err := http.Post(f.ts.URL+"/generate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGeneratePlaysWhenConfigured(t *testing.T) {
	f := newFixture(t, rng.Fixed(11), func(c *config.UserConfig) { c.Server.Play = true })
	get(t, f.ts.URL+"/generate")

	require.Eventually(t, func() bool { return f.player.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		recs, err := f.store.Recent(1)
		return err == nil && len(recs) == 1 && recs[0].Played
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCard(t *testing.T) {
	f := newFixture(t, rng.Fixed(11), nil)
	resp, body := get(t, f.ts.URL+"/generate/card.png")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, cardWidth, img.Bounds().Dx())
	assert.Equal(t, cardHeight, img.Bounds().Dy())
}

func TestRenderCardLongMessage(t *testing.T) {
	msg := strings.Repeat("very long message ", 20)
	var buf bytes.Buffer
	require.NoError(t, RenderCard(&buf, table.Selection{Number: 7, Message: msg}))
	_, err := png.Decode(&buf)
	require.NoError(t, err)
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t, rng.Fixed(2), nil)
	for i := 0; i < 3; i++ {
		get(t, f.ts.URL+"/generate")
	}

	resp, body := get(t, f.ts.URL+"/history?limit=2")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []history.Record
	require.NoError(t, json.Unmarshal(body, &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(3), recs[0].ID)

	resp, body = get(t, f.ts.URL+"/history.csv")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "id,"))

	resp, _ = get(t, f.ts.URL+"/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryEmpty(t *testing.T) {
	f := newFixture(t, rng.Fixed(2), nil)
	_, body := get(t, f.ts.URL+"/history")
	assert.JSONEq(t, `[]`, string(body))
}

func TestHistoryDisabled(t *testing.T) {
	f := newFixture(t, rng.Fixed(2), func(c *config.UserConfig) { c.History.Enabled = false })
	resp, body := get(t, f.ts.URL+"/history")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "history disabled")

	resp, _ = get(t, f.ts.URL+"/history.csv")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAssetsListing(t *testing.T) {
	f := newFixture(t, rng.Fixed(2), nil)
	require.NoError(t, os.WriteFile(filepath.Join(f.srv.cfg.Server.AssetsDir, "video1.mp4"), []byte("fake"), 0644))

	resp, body := get(t, f.ts.URL+"/assets/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "video1.mp4")

	_, body = get(t, f.ts.URL+"/assets/video1.mp4")
	assert.Equal(t, "fake", string(body))
}

func TestStaticFallbackAndDir(t *testing.T) {
	f := newFixture(t, rng.Fixed(2), nil)
	resp, body := get(t, f.ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<title>ROLL</title>")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("custom page"), 0644))
	f2 := newFixture(t, rng.Fixed(2), func(c *config.UserConfig) { c.Server.StaticDir = dir })
	_, body = get(t, f2.ts.URL+"/")
	assert.Equal(t, "custom page", string(body))
}

func TestStaticDirNeverLists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("custom page"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "private"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "private", "notes.txt"), []byte("notes"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "index.html"), []byte("docs page"), 0644))
	f := newFixture(t, rng.Fixed(2), func(c *config.UserConfig) { c.Server.StaticDir = dir })

	resp, body := get(t, f.ts.URL+"/private/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, string(body), "notes.txt")

	resp, _ = get(t, f.ts.URL+"/private")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, body = get(t, f.ts.URL+"/private/notes.txt")
	assert.Equal(t, "notes", string(body))

	_, body = get(t, f.ts.URL+"/docs/")
	assert.Equal(t, "docs page", string(body))
}

func TestCors(t *testing.T) {
	f := newFixture(t, rng.Fixed(2), nil)
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/generate", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebsocketReceivesDraws(t *testing.T) {
	f := newFixture(t, rng.Fixed(5), nil)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.srv.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	get(t, f.ts.URL+"/generate")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"number":5,"video_path":"assets/video1.mp4","message":"Number Of Inches: 5"}`, string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return f.srv.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	assert.Nil(t, originChecker(nil))

	check := originChecker([]string{"http://allowed.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://allowed.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://other.example")
	assert.False(t, check(req))
}

func TestSetTable(t *testing.T) {
	f := newFixture(t, rng.Fixed(3), nil)

	err := f.srv.SetTable(table.Table{Min: 1, Max: 9, Entries: []table.Entry{{Lo: 1, Hi: 4}}})
	assert.ErrorIs(t, err, table.ErrInvalid)
	assert.Equal(t, table.Default(), f.srv.Table())

	nine := table.Table{Min: 1, Max: 9, Entries: []table.Entry{
		{Lo: 1, Hi: 9, Video: "assets/video1.mkv", Message: "n={n}"},
	}}
	require.NoError(t, f.srv.SetTable(nine))
	_, body := get(t, f.ts.URL+"/generate")
	assert.JSONEq(t, `{"number":3,"video_path":"assets/video1.mkv","message":"n=3"}`, string(body))
}

func TestReloadKeepsTableOnBadConfig(t *testing.T) {
	f := newFixture(t, rng.Fixed(3), nil)

	bad := config.NewDefaultConfig()
	bad.Roll.Min, bad.Roll.Max = 20, 1
	f.srv.reload(bad, nil)
	assert.Equal(t, table.Default(), f.srv.Table())

	good := config.NewDefaultConfig()
	good.Roll.Min, good.Roll.Max = 1, 9
	good.Ranges["all"] = config.RangeConfig{Lo: 1, Hi: 9, Video: "v.mp4"}
	f.srv.reload(good, nil)
	assert.Equal(t, 9, f.srv.Table().Max)
}

func TestServeShutsDown(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Server.StaticDir = ""
	srv := New(cfg, table.Default(), rng.Fixed(4), &run.Runner{Player: &fakePlayer{}}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	_, body := get(t, "http://"+ln.Addr().String()+"/generate")
	assert.Contains(t, string(body), `"number":4`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServePlaysOneAtATimeAndWaits(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Server.StaticDir = ""
	cfg.Server.Play = true

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hp := &heldPlayer{started: make(chan struct{}, 4)}
	srv := New(cfg, table.Default(), rng.Fixed(11), &run.Runner{Player: hp, History: store}, store)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/generate"
	get(t, url)
	select {
	case <-hp.started:
	case <-time.After(2 * time.Second):
		t.Fatal("player not started")
	}
	get(t, url)

	recs, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 1, "busy draw is recorded right away")
	assert.False(t, recs[0].Played)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	hp.mu.Lock()
	assert.Equal(t, 1, hp.calls)
	assert.True(t, hp.finished)
	hp.mu.Unlock()

	recs, err = store.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
