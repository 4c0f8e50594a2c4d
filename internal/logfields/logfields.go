package logfields

import "log/slog"

// Canonical log field names shared by the build, server and CLI.
const (
	KeyPage       = "page"
	KeyEntry      = "entry"
	KeyPath       = "path"
	KeyStage      = "stage"
	KeyTemplate   = "template"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyError      = "error"
)

func Page(name string) slog.Attr       { return slog.String(KeyPage, name) }
func Entry(slug string) slog.Attr      { return slog.String(KeyEntry, slug) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Template(name string) slog.Attr   { return slog.String(KeyTemplate, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
