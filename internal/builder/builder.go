// internal/builder/builder.go
package builder

import (
	"context"
	"html/template"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"pagesmith/internal/config"
	"pagesmith/internal/content"
	"pagesmith/internal/errs"
	"pagesmith/internal/logfields"
	"pagesmith/internal/markdown"
	"pagesmith/internal/metrics"
	"pagesmith/internal/templates"
)

// Stage is a step of the build. Stages run strictly in order; every task of
// one stage finishes before the next stage starts.
type Stage int

const (
	StageInit Stage = iota
	StageEntriesLoaded
	StageEntriesRendered
	StageContextBuilt
	StagePagesRendered
	StageWritten
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageEntriesLoaded:
		return "entries_loaded"
	case StageEntriesRendered:
		return "entries_rendered"
	case StageContextBuilt:
		return "context_built"
	case StagePagesRendered:
		return "pages_rendered"
	case StageWritten:
		return "written"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// Result summarises a build. Stage is the last stage that completed.
type Result struct {
	Pages    int
	Entries  int
	Files    int
	Duration time.Duration
	Stage    Stage
}

type Option func(*Builder)

// WithFS sets the filesystem for templates, sources and output.
func WithFS(fs afero.Fs) Option { return func(b *Builder) { b.fs = fs } }

func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.log = l } }

func WithRecorder(r metrics.Recorder) Option { return func(b *Builder) { b.rec = r } }

// WithWorkers bounds how many page or entry tasks run at once.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithUnsafe turns off HTML sanitisation regardless of the config file.
func WithUnsafe(unsafe bool) Option { return func(b *Builder) { b.unsafe = unsafe } }

// Builder generates the site described by one configuration.
type Builder struct {
	cfg     *config.Site
	fs      afero.Fs
	log     *slog.Logger
	rec     metrics.Recorder
	workers int
	unsafe  bool
}

func New(cfg *config.Site, opts ...Option) *Builder {
	b := &Builder{
		cfg:     cfg,
		fs:      afero.NewOsFs(),
		log:     slog.Default(),
		rec:     metrics.NoopRecorder{},
		workers: runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// run is the state of a single build.
type run struct {
	*Builder
	render  *renderer
	entries [][]*content.Entry // indexed like cfg.Pages
	site    SiteContext
	pages   []string
	plan    *Plan
	stage   Stage
}

// Build renders every page and entry and writes them under dest_dir. Output
// is written only after everything rendered, so a failed build writes
// nothing.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	start := time.Now()
	r := &run{Builder: b, stage: StageInit}

	err := r.execute(ctx)
	res := Result{
		Pages:    len(b.cfg.Pages),
		Duration: time.Since(start),
		Stage:    r.stage,
	}
	for _, list := range r.entries {
		res.Entries += len(list)
	}

	b.rec.ObserveBuildDuration(res.Duration)
	if err != nil {
		b.rec.IncBuildOutcome(metrics.OutcomeFailed)
		b.log.Debug("build failed", logfields.Stage(r.stage.String()), logfields.Error(err))
		return res, err
	}
	res.Files = r.plan.Len()
	b.rec.IncBuildOutcome(metrics.OutcomeSuccess)
	b.rec.SetEntriesRendered(res.Entries)
	b.log.Info("build complete",
		logfields.Count(res.Files),
		logfields.DurationMS(float64(res.Duration.Microseconds())/1000))
	return res, nil
}

func (r *run) execute(ctx context.Context) error {
	r.plan = NewPlan()
	if err := r.setup(); err != nil {
		return err
	}
	steps := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageEntriesLoaded, r.loadEntries},
		{StageEntriesRendered, r.renderEntries},
		{StageContextBuilt, r.buildContext},
		{StagePagesRendered, r.renderPages},
		{StageWritten, r.write},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := time.Now()
		if err := s.fn(ctx); err != nil {
			return err
		}
		elapsed := time.Since(started)
		r.rec.ObserveStageDuration(s.stage.String(), elapsed)
		r.log.Info("stage complete",
			logfields.Stage(s.stage.String()),
			logfields.DurationMS(float64(elapsed.Microseconds())/1000))
		r.stage = s.stage
	}
	r.stage = StageDone
	return nil
}

func (r *run) setup() error {
	tpl, err := templates.Load(r.fs, r.cfg.TemplatesPath())
	if err != nil {
		return err
	}
	md := markdown.New(markdown.Options{
		Unsafe:         r.unsafe || r.cfg.Markdown.Unsafe,
		HighlightStyle: r.cfg.Markdown.HighlightStyle,
	})
	css, err := md.CSS()
	if err != nil {
		return errs.New(errs.ErrConfig, err)
	}
	names := make([]string, len(r.cfg.Pages))
	for i, p := range r.cfg.Pages {
		names[i] = p.Name
	}
	r.render = &renderer{
		md:  md,
		tpl: tpl,
		site: SiteInfo{
			BaseURL:      r.cfg.BaseURL,
			Pages:        names,
			HighlightCSS: template.CSS(css),
		},
	}
	r.entries = make([][]*content.Entry, len(r.cfg.Pages))
	r.pages = make([]string, len(r.cfg.Pages))
	return nil
}

// group returns an errgroup bounded to the configured worker count.
func (r *run) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	return g, gctx
}

func (r *run) loadEntries(ctx context.Context) error {
	repo := content.NewRepository(r.fs, r.cfg.Root)
	g, gctx := r.group(ctx)
	for i, p := range r.cfg.Pages {
		if !p.HasEntries() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			list, err := repo.Load(p)
			if err != nil {
				return err
			}
			r.entries[i] = list
			r.log.Debug("entries loaded", logfields.Page(p.Name), logfields.Count(len(list)))
			return nil
		})
	}
	return g.Wait()
}

func (r *run) renderEntries(ctx context.Context) error {
	g, gctx := r.group(ctx)
	for i, p := range r.cfg.Pages {
		for _, e := range r.entries[i] {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := r.render.renderEntry(p, e); err != nil {
					return err
				}
				r.log.Debug("entry rendered", logfields.Page(p.Name), logfields.Entry(e.Slug), logfields.Template(e.Template))
				return nil
			})
		}
	}
	return g.Wait()
}

func (r *run) buildContext(context.Context) error {
	byPage := make(map[string][]*content.Entry, len(r.cfg.Pages))
	for i, p := range r.cfg.Pages {
		byPage[p.Name] = r.entries[i]
	}
	r.site = NewSiteContext(r.cfg.Pages, byPage)
	return nil
}

func (r *run) renderPages(ctx context.Context) error {
	g, gctx := r.group(ctx)
	for i, p := range r.cfg.Pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := r.render.renderPage(p, r.site)
			if err != nil {
				return err
			}
			r.pages[i] = out
			return nil
		})
	}
	return g.Wait()
}

// write plans every output file, rejecting collisions, then writes them.
func (r *run) write(ctx context.Context) error {
	dest := r.cfg.DestPath()
	for i, p := range r.cfg.Pages {
		if err := r.plan.Add(File{Path: Target(dest, p.Name, ""), Data: []byte(r.pages[i]), Page: p.Name}); err != nil {
			return err
		}
		for _, e := range r.entries[i] {
			if err := r.plan.Add(File{Path: Target(dest, p.Name, e.Slug), Data: []byte(e.HTML), Page: p.Name, Entry: e.Slug}); err != nil {
				return err
			}
		}
		for _, e := range r.entries[i] {
			aliases, err := aliasFiles(dest, e)
			if err != nil {
				return err
			}
			for _, f := range aliases {
				if err := r.plan.Add(f); err != nil {
					return err
				}
			}
		}
		if p.RSS {
			f, err := feedFile(r.cfg, p, r.entries[i])
			if err != nil {
				return err
			}
			if err := r.plan.Add(f); err != nil {
				return err
			}
		}
	}

	w := Writer{FS: r.fs}
	g, gctx := r.group(ctx)
	for _, f := range r.plan.Files() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.log.Debug("writing", logfields.Path(f.Path))
			return w.Write(f)
		})
	}
	return g.Wait()
}

