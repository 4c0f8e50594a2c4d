package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_Records(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("entries_loaded", 20*time.Millisecond)
	pr.ObserveBuildDuration(50 * time.Millisecond)
	pr.IncBuildOutcome(OutcomeSuccess)
	pr.IncBuildOutcome(OutcomeSuccess)
	pr.IncBuildOutcome(OutcomeFailed)
	pr.SetEntriesRendered(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.buildOutcome.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.buildOutcome.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 7.0, testutil.ToFloat64(pr.entriesRendered))

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pagesmith_stage_duration_seconds")
	assert.Contains(t, string(body), `pagesmith_build_outcomes_total{outcome="success"} 2`)
}

func TestNoopRecorder_SatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("x", time.Second)
	r.ObserveBuildDuration(time.Second)
	r.IncBuildOutcome(OutcomeFailed)
	r.SetEntriesRendered(1)
}
