package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRunLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeRuns))

	c.RunFinished("completed", 3*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("failed")))
}

func TestCollectorStepsAndIssues(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.StepObserved("remap", "completed", 500*time.Millisecond)
	c.StepObserved("remap", "completed", 250*time.Millisecond)
	c.StepObserved("dedupe", "failed", time.Second)
	c.IssueRecorded("warning")
	c.IssueRecorded("warning")
	c.IssueRecorded("error")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.stepsTotal.WithLabelValues("remap", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stepsTotal.WithLabelValues("dedupe", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.issuesTotal.WithLabelValues("warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.issuesTotal.WithLabelValues("error")))
}

func TestCollectorRegistersExpectedFamilies(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.RunStarted()
	c.RunFinished("completed", time.Second)
	c.StepObserved("template", "completed", time.Second)
	c.IssueRecorded("warning")
	c.UploadReceived(2048)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, " ")
	for _, want := range []string{
		"tss_runs_total",
		"tss_run_duration_seconds",
		"tss_active_runs",
		"tss_steps_total",
		"tss_step_duration_seconds",
		"tss_quality_issues_total",
		"tss_upload_bytes",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestNewWithNilRegistererDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		c := New(nil)
		c.RunStarted()
		c.RunFinished("failed", time.Second)
	})
}
