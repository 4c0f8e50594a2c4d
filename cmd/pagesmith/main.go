// cmd/pagesmith/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"pagesmith/internal/builder"
	"pagesmith/internal/config"
	"pagesmith/internal/logfields"
	"pagesmith/internal/metrics"
	"pagesmith/internal/scaffold"
	"pagesmith/internal/server"
)

var CLI struct {
	Config  string `short:"c" help:"Site configuration file." default:"site.yaml" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging."`

	Build struct {
		Unsafe bool `help:"Disable HTML sanitization of rendered markdown."`
	} `cmd:"" help:"Build the site into dest_dir."`

	Serve struct {
		Port   int  `short:"p" help:"Port for the preview server." default:"1313"`
		Unsafe bool `help:"Disable HTML sanitization of rendered markdown."`
	} `cmd:"" help:"Build, serve and rebuild the site on changes."`

	New struct {
		Site struct {
			Dir string `arg:"" help:"Directory to create the site in." type:"path"`
		} `cmd:"" help:"Scaffold a new site."`

		Entry struct {
			Page  string `arg:"" help:"Page to add the entry to."`
			Title string `arg:"" help:"Entry title."`
		} `cmd:"" help:"Create a new markdown entry."`
	} `cmd:"" help:"Create a site or an entry."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("pagesmith"),
		kong.Description("A static site generator for markdown entries and html/template pages."),
		kong.UsageOnError(),
	)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch kctx.Command() {
	case "build":
		err = runBuild(ctx, logger)
	case "serve":
		err = runServe(ctx, logger)
	case "new site <dir>":
		err = runNewSite(logger)
	case "new entry <page> <title>":
		err = runNewEntry(logger)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		logger.Error("command failed", slog.String("command", kctx.Command()), logfields.Error(err))
		stop()
		os.Exit(1)
	}
}

func runBuild(ctx context.Context, logger *slog.Logger) error {
	site, err := config.LoadFile(CLI.Config)
	if err != nil {
		return err
	}
	res, err := builder.New(site,
		builder.WithLogger(logger),
		builder.WithUnsafe(CLI.Build.Unsafe),
	).Build(ctx)
	if err != nil {
		return err
	}
	logger.Info("site generated",
		slog.Int("pages", res.Pages),
		slog.Int("entries", res.Entries),
		logfields.Count(res.Files),
		logfields.Path(site.DestPath()))
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger) error {
	site, err := config.LoadFile(CLI.Config)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	// The configuration is re-read on every rebuild so edits to it apply
	// without a restart. Paths to watch and serve stay those of the first load.
	build := func(ctx context.Context) error {
		current, err := config.LoadFile(CLI.Config)
		if err != nil {
			return err
		}
		_, err = builder.New(current,
			builder.WithLogger(logger),
			builder.WithRecorder(rec),
			builder.WithUnsafe(CLI.Serve.Unsafe),
		).Build(ctx)
		return err
	}

	return server.Run(ctx, server.Options{
		Addr:     fmt.Sprintf(":%d", CLI.Serve.Port),
		Dir:      site.DestPath(),
		Watch:    server.WatchPaths(site, CLI.Config),
		Ignore:   []string{site.DestPath()},
		Build:    build,
		Metrics:  metrics.HTTPHandler(reg),
		Logger:   logger,
		Debounce: server.DefaultDebounce,
	})
}

func runNewSite(logger *slog.Logger) error {
	dir := CLI.New.Site.Dir
	if err := scaffold.CreateNewSite(afero.NewOsFs(), dir); err != nil {
		return err
	}
	logger.Info("site scaffolded", logfields.Path(dir))
	fmt.Printf("Site scaffolded. You can now:\n  cd %s\n  pagesmith serve\n", dir)
	return nil
}

func runNewEntry(logger *slog.Logger) error {
	site, err := config.LoadFile(CLI.Config)
	if err != nil {
		return err
	}
	path, err := scaffold.CreateNewEntry(afero.NewOsFs(), site, CLI.New.Entry.Page, CLI.New.Entry.Title, time.Now())
	if err != nil {
		return err
	}
	logger.Info("entry created", logfields.Page(CLI.New.Entry.Page), logfields.Path(path))
	return nil
}
