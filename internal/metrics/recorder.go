// Package metrics records build timings and outcomes. The build takes a
// Recorder; the CLI build uses NoopRecorder and the preview server a
// PrometheusRecorder exposed at /metrics.
package metrics

import "time"

// Build outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Recorder receives observations from the build. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string)
	SetEntriesRendered(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) SetEntriesRendered(int)                     {}
