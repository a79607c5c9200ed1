package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/metrics"
)

func TestRecorderCounters(testInstance *testing.T) {
	recorder := metrics.NewRecorder()
	recorder.RecordPage("project_items", 100)
	recorder.RecordPage("project_items", 20)
	recorder.RecordFatal("update_status")
	recorder.RecordRateLimitRetry("update_status", 2*time.Second)

	expectedMetrics := `
# HELP ghkeeper_items_fetched_total Items retrieved from paginated sources before filtering.
# TYPE ghkeeper_items_fetched_total counter
ghkeeper_items_fetched_total{source="project_items"} 120
# HELP ghkeeper_pages_fetched_total Pages retrieved from paginated sources.
# TYPE ghkeeper_pages_fetched_total counter
ghkeeper_pages_fetched_total{source="project_items"} 2
# HELP ghkeeper_fatal_errors_total Operations that failed with a non rate-limit error.
# TYPE ghkeeper_fatal_errors_total counter
ghkeeper_fatal_errors_total{operation="update_status"} 1
`
	require.NoError(testInstance, testutil.GatherAndCompare(
		recorder.Registry(),
		strings.NewReader(expectedMetrics),
		"ghkeeper_items_fetched_total",
		"ghkeeper_pages_fetched_total",
		"ghkeeper_fatal_errors_total",
	))

	histogramSeries, countError := testutil.GatherAndCount(recorder.Registry(), "ghkeeper_rate_limit_wait_seconds")
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 1, histogramSeries)
}

func TestNilRecorderIsInert(testInstance *testing.T) {
	var recorder *metrics.Recorder
	require.NotPanics(testInstance, func() {
		recorder.RecordPage("source", 1)
		recorder.RecordAbandoned("operation")
		recorder.RecordFatal("operation")
		recorder.RecordRateLimitRetry("operation", time.Second)
		recorder.RecordSnapshotHit("source")
	})
	require.Nil(testInstance, recorder.Registry())
	require.ErrorIs(testInstance, recorder.WriteTextfile("metrics.prom"), metrics.ErrRecorderNotConfigured)
}

func TestWriteTextfile(testInstance *testing.T) {
	recorder := metrics.NewRecorder()
	recorder.RecordAbandoned("create_draft")

	textfilePath := filepath.Join(testInstance.TempDir(), "ghkeeper.prom")
	require.NoError(testInstance, recorder.WriteTextfile(textfilePath))

	contents, readError := os.ReadFile(textfilePath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(contents), `ghkeeper_abandoned_operations_total{operation="create_draft"} 1`)

	require.Error(testInstance, recorder.WriteTextfile("  "))
}
