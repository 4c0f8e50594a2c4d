package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/internal/config"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLiveReloadWrapper_InjectsScript(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog", "index.html"), []byte("<html><body>hi</body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.rss"), []byte("<rss></rss>"), 0o644))

	srv := httptest.NewServer(newMux(newHub(quiet), Options{Dir: dir}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/blog/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `new WebSocket("ws://"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(body)), "</body></html>"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))

	resp, err = http.Get(srv.URL + "/blog.rss")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "<rss></rss>", string(body))

	resp, err = http.Get(srv.URL + "/missing/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMux_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "ok") })
	srv := httptest.NewServer(newMux(newHub(quiet), Options{Dir: t.TempDir(), Metrics: metrics}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))
}

func TestHub_BroadcastsReload(t *testing.T) {
	hub := newHub(quiet)
	srv := httptest.NewServer(newMux(hub, Options{Dir: t.TempDir()}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.size() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.broadcastMessage([]byte("reload"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return hub.size() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchPaths(t *testing.T) {
	site := &config.Site{
		TemplatesDir: "templates",
		Root:         "/site",
		Pages: []config.Page{
			{Name: "blog", Entries: []config.EntrySource{{SourceDir: "content/blog"}, {FilePath: "/notes/one.md"}}},
			{Name: "about"},
		},
	}
	assert.Equal(t,
		[]string{"/site/site.yaml", "/site/templates", "/site/content/blog", "/notes/one.md"},
		WatchPaths(site, "/site/site.yaml"))
}

func TestWatch_DebouncesRebuilds(t *testing.T) {
	dir := t.TempDir()
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	w := newWatch(watcher, quiet, nil)
	require.NoError(t, w.addTree(dir))
	require.NoError(t, w.addTree(filepath.Join(dir, "does-not-exist")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var builds atomic.Int32
	go w.loop(ctx, 200*time.Millisecond, func() { builds.Add(1) })

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "post.md"), []byte{byte('a' + i)}, 0o644))
	}
	require.Eventually(t, func() bool { return builds.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), builds.Load())
}

func TestWatch_IgnoresOutputDirectory(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "dist")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "blog"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "content", "blog"), 0o755))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	w := newWatch(watcher, quiet, []string{dest})
	require.NoError(t, w.addTree(root))
	assert.NotContains(t, w.dirs, dest)
	assert.NotContains(t, w.dirs, filepath.Join(dest, "blog"))
	assert.Contains(t, w.dirs, filepath.Join(root, "content", "blog"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var builds atomic.Int32
	go w.loop(ctx, 50*time.Millisecond, func() { builds.Add(1) })

	// Output written by a rebuild must not schedule another one.
	require.NoError(t, os.WriteFile(filepath.Join(dest, "blog", "index.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "blog.rss"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(0), builds.Load())

	require.NoError(t, os.WriteFile(filepath.Join(root, "content", "blog", "post.md"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return builds.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestWatch_ConfigFileWatchesOnlyItsDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist", "blog"), 0o755))
	cfg := filepath.Join(root, "site.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("x"), 0o644))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	w := newWatch(watcher, quiet, nil)
	require.NoError(t, w.addTree(cfg))
	assert.Equal(t, map[string]bool{filepath.Clean(root): true}, w.dirs)
}
