package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespaceConstant             = "ghkeeper"
	operationLabelConstant               = "operation"
	sourceLabelConstant                  = "source"
	rateLimitRetriesNameConstant         = "rate_limit_retries_total"
	rateLimitRetriesHelpConstant         = "Rate-limited attempts that were retried after a backoff wait."
	rateLimitWaitNameConstant            = "rate_limit_wait_seconds"
	rateLimitWaitHelpConstant            = "Backoff wait durations applied after rate-limit rejections."
	abandonedOperationsNameConstant      = "abandoned_operations_total"
	abandonedOperationsHelpConstant      = "Operations abandoned after reaching the retry ceiling."
	fatalErrorsNameConstant              = "fatal_errors_total"
	fatalErrorsHelpConstant              = "Operations that failed with a non rate-limit error."
	pagesFetchedNameConstant             = "pages_fetched_total"
	pagesFetchedHelpConstant             = "Pages retrieved from paginated sources."
	itemsFetchedNameConstant             = "items_fetched_total"
	itemsFetchedHelpConstant             = "Items retrieved from paginated sources before filtering."
	snapshotHitsNameConstant             = "snapshot_hits_total"
	snapshotHitsHelpConstant             = "Fetches served from a cache snapshot without network calls."
	textfilePathRequiredMessageConstant  = "metrics textfile path must be provided"
	recorderNotConfiguredMessageConstant = "metrics recorder not configured"
)

// ErrRecorderNotConfigured indicates a nil recorder was asked to persist metrics.
var ErrRecorderNotConfigured = errors.New(recorderNotConfiguredMessageConstant)

var rateLimitWaitBuckets = []float64{1, 5, 30, 60, 300, 900, 3600, 10800, 21600, 86400}

// Recorder owns the Prometheus collectors used across commands. A nil Recorder is valid and records nothing.
type Recorder struct {
	registry            *prometheus.Registry
	rateLimitRetries    *prometheus.CounterVec
	rateLimitWait       *prometheus.HistogramVec
	abandonedOperations *prometheus.CounterVec
	fatalErrors         *prometheus.CounterVec
	pagesFetched        *prometheus.CounterVec
	itemsFetched        *prometheus.CounterVec
	snapshotHits        *prometheus.CounterVec
}

// NewRecorder registers all collectors in a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	recorder := &Recorder{
		registry: registry,
		rateLimitRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      rateLimitRetriesNameConstant,
			Help:      rateLimitRetriesHelpConstant,
		}, []string{operationLabelConstant}),
		rateLimitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespaceConstant,
			Name:      rateLimitWaitNameConstant,
			Help:      rateLimitWaitHelpConstant,
			Buckets:   rateLimitWaitBuckets,
		}, []string{operationLabelConstant}),
		abandonedOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      abandonedOperationsNameConstant,
			Help:      abandonedOperationsHelpConstant,
		}, []string{operationLabelConstant}),
		fatalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      fatalErrorsNameConstant,
			Help:      fatalErrorsHelpConstant,
		}, []string{operationLabelConstant}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      pagesFetchedNameConstant,
			Help:      pagesFetchedHelpConstant,
		}, []string{sourceLabelConstant}),
		itemsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      itemsFetchedNameConstant,
			Help:      itemsFetchedHelpConstant,
		}, []string{sourceLabelConstant}),
		snapshotHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      snapshotHitsNameConstant,
			Help:      snapshotHitsHelpConstant,
		}, []string{sourceLabelConstant}),
	}

	registry.MustRegister(
		recorder.rateLimitRetries,
		recorder.rateLimitWait,
		recorder.abandonedOperations,
		recorder.fatalErrors,
		recorder.pagesFetched,
		recorder.itemsFetched,
		recorder.snapshotHits,
	)

	return recorder
}

// Registry exposes the underlying registry for gathering.
func (recorder *Recorder) Registry() *prometheus.Registry {
	if recorder == nil {
		return nil
	}
	return recorder.registry
}

// RecordRateLimitRetry counts a retried rate-limit rejection and the wait applied before retrying.
// Operation and source labels are kinds from a fixed set, never item identifiers.
func (recorder *Recorder) RecordRateLimitRetry(operation string, wait time.Duration) {
	if recorder == nil {
		return
	}
	recorder.rateLimitRetries.WithLabelValues(operation).Inc()
	recorder.rateLimitWait.WithLabelValues(operation).Observe(wait.Seconds())
}

// RecordAbandoned counts an operation that reached the retry ceiling.
func (recorder *Recorder) RecordAbandoned(operation string) {
	if recorder == nil {
		return
	}
	recorder.abandonedOperations.WithLabelValues(operation).Inc()
}

// RecordFatal counts an operation that failed with a non rate-limit error.
func (recorder *Recorder) RecordFatal(operation string) {
	if recorder == nil {
		return
	}
	recorder.fatalErrors.WithLabelValues(operation).Inc()
}

// RecordPage counts a fetched page and the number of items it carried.
func (recorder *Recorder) RecordPage(source string, itemCount int) {
	if recorder == nil {
		return
	}
	recorder.pagesFetched.WithLabelValues(source).Inc()
	recorder.itemsFetched.WithLabelValues(source).Add(float64(itemCount))
}

// RecordSnapshotHit counts a fetch served entirely from a cache snapshot.
func (recorder *Recorder) RecordSnapshotHit(source string) {
	if recorder == nil {
		return
	}
	recorder.snapshotHits.WithLabelValues(source).Inc()
}

// WriteTextfile persists the registry in the Prometheus text exposition format.
func (recorder *Recorder) WriteTextfile(path string) error {
	if recorder == nil {
		return ErrRecorderNotConfigured
	}
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return errors.New(textfilePathRequiredMessageConstant)
	}
	return prometheus.WriteToTextfile(trimmedPath, recorder.registry)
}
