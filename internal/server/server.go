// internal/server/server.go
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"pagesmith/internal/config"
	"pagesmith/internal/logfields"
)

// DefaultDebounce is how long the watcher waits for changes to settle before
// rebuilding.
const DefaultDebounce = 500 * time.Millisecond

// Options configures the preview server.
type Options struct {
	Addr  string   // listen address, e.g. ":1313"
	Dir   string   // directory to serve: the site's dest_dir
	Watch []string // files and directories whose changes trigger a rebuild
	// Ignore lists directories never watched, even when they sit below a
	// watched one. The output directory belongs here, or every rebuild would
	// trigger the next.
	Ignore []string

	// Build regenerates the site. It runs once before serving and again
	// after every settled batch of changes.
	Build func(context.Context) error

	Metrics  http.Handler // served at /metrics when set
	Logger   *slog.Logger
	Debounce time.Duration
}

// WatchPaths lists what to watch for a site: the config file, the templates
// directory and every entry source. A file is watched through its parent
// directory alone, so the project root is never watched recursively.
func WatchPaths(site *config.Site, configPath string) []string {
	paths := []string{configPath, site.TemplatesPath()}
	for _, p := range site.Pages {
		for _, src := range p.Entries {
			paths = append(paths, site.Resolve(src.Path()))
		}
	}
	return paths
}

// Run builds the site, then serves it with live reload until ctx is done.
func Run(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger

	if err := opts.Build(ctx); err != nil {
		return fmt.Errorf("initial build failed: %w", err)
	}

	hub := newHub(log)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create file watcher: %w", err)
	}
	defer watcher.Close()

	w := newWatch(watcher, log, opts.Ignore)
	for _, p := range opts.Watch {
		if err := w.addTree(p); err != nil {
			return err
		}
	}
	go w.loop(ctx, opts.Debounce, func() {
		if err := opts.Build(ctx); err != nil {
			// The previous output stays in place; keep serving it.
			log.Error("rebuild failed", logfields.Error(err))
			return
		}
		log.Info("site rebuilt, triggering reload")
		hub.broadcastMessage([]byte("reload"))
	})

	srv := &http.Server{Addr: opts.Addr, Handler: newMux(hub, opts)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving site", slog.String("addr", "http://localhost"+opts.Addr), logfields.Path(opts.Dir))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newMux(hub *Hub, opts Options) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	mux.Handle("/", liveReloadWrapper(http.FileServer(http.Dir(opts.Dir))))
	return mux
}

type watch struct {
	watcher *fsnotify.Watcher
	log     *slog.Logger
	dirs    map[string]bool
	ignore  []string
}

func newWatch(watcher *fsnotify.Watcher, log *slog.Logger, ignore []string) *watch {
	w := &watch{watcher: watcher, log: log, dirs: make(map[string]bool)}
	for _, dir := range ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		w.ignore = append(w.ignore, filepath.Clean(dir))
	}
	return w
}

// ignored reports whether path is one of the ignored directories or below one.
func (w *watch) ignored(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addTree watches path and, for a directory, every directory below it except
// ignored ones. For a file only its parent directory is watched, which also
// catches editors that save by swapping files.
func (w *watch) addTree(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not stat path %s: %w", path, err)
	}
	if !info.IsDir() {
		w.add(filepath.Dir(path))
		return nil
	}
	if err := filepath.Walk(path, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if w.ignored(walkPath) {
			return filepath.SkipDir
		}
		w.add(walkPath)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", path, err)
	}
	return nil
}

func (w *watch) add(dir string) {
	dir = filepath.Clean(dir)
	if w.dirs[dir] || w.ignored(dir) {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.log.Warn("could not watch directory", logfields.Path(dir), logfields.Error(err))
		return
	}
	w.log.Debug("watching directory", logfields.Path(dir))
	w.dirs[dir] = true
}

// loop calls rebuild once changes have been quiet for debounce.
func (w *watch) loop(ctx context.Context, debounce time.Duration, rebuild func()) {
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(event.Name)
				}
			}
			w.log.Debug("change detected", logfields.Path(event.Name))
			pending = time.After(debounce)
		case <-pending:
			pending = nil
			rebuild()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", logfields.Error(err))
		}
	}
}

// liveReloadWrapper disables caching and injects the reload script before
// </body> of successful HTML responses.
func liveReloadWrapper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		if !strings.HasSuffix(r.URL.Path, ".html") && !strings.HasSuffix(r.URL.Path, "/") {
			next.ServeHTTP(w, r)
			return
		}

		buf := &bufferedResponse{header: w.Header(), status: http.StatusOK}
		next.ServeHTTP(buf, r)

		body := buf.body.Bytes()
		if buf.status == http.StatusOK {
			body = bytes.Replace(body, []byte("</body>"), []byte(liveReloadScript+"</body>"), 1)
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		}
		w.WriteHeader(buf.status)
		_, _ = w.Write(body)
	})
}

// bufferedResponse holds a response body until the handler returns. Headers
// go straight to the real writer's map.
type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (b *bufferedResponse) Header() http.Header         { return b.header }
func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }
func (b *bufferedResponse) WriteHeader(status int)      { b.status = status }

const liveReloadScript = `<script>
new WebSocket("ws://" + location.host + "/ws").onmessage = (e) => {
  if (e.data === "reload") location.reload();
};
</script>
`
