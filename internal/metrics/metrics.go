package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scoreit"

// Metrics holds the Prometheus collectors of the service.
//
// Every method is safe to call on a nil *Metrics, so components can be built
// without instrumentation in tests and CLI commands.
//
// Metrics:
//   - scoreit_http_requests_total{method,route,status}
//   - scoreit_http_request_duration_seconds{method,route}
//   - scoreit_rank_duration_seconds
//   - scoreit_rank_batch_size
//   - scoreit_model_trainings_total{kind}
//   - scoreit_model_state
//   - scoreit_model_accuracy / scoreit_model_auc
//   - scoreit_extraction_fallbacks_total{reason}
//   - scoreit_embedding_errors_total{provider}
//   - scoreit_search_results
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RankDuration  prometheus.Histogram
	RankBatchSize prometheus.Histogram

	ModelTrainings *prometheus.CounterVec
	ModelState     prometheus.Gauge
	ModelAccuracy  prometheus.Gauge
	ModelAUC       prometheus.Gauge

	ExtractionFallbacks *prometheus.CounterVec
	EmbeddingErrors     *prometheus.CounterVec
	SearchResults       prometheus.Histogram
}

// New creates the collectors on a fresh registry together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		RankDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_duration_seconds",
			Help:      "Duration of a ranking call in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
		}),
		RankBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_batch_size",
			Help:      "Number of candidates per ranking call",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),

		ModelTrainings: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_trainings_total",
				Help:      "Total number of model fits",
			},
			[]string{"kind"}, // "bootstrap" or "feedback"
		),
		ModelState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_state",
			Help:      "Model state: 0 uninitialized, 1 bootstrapped, 2 trained",
		}),
		ModelAccuracy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_accuracy",
			Help:      "Training-set accuracy of the current model",
		}),
		ModelAUC: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_auc",
			Help:      "Training-set ROC AUC of the current model",
		}),

		ExtractionFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_fallbacks_total",
				Help:      "Total number of job extractions served by the fallback extractor",
			},
			[]string{"reason"},
		),
		EmbeddingErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_errors_total",
				Help:      "Total number of failed embedding calls",
			},
			[]string{"provider"},
		),
		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of candidates returned per semantic search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		}),
	}
}

// RecordRequest records a finished HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordRank records a ranking call over n candidates.
func (m *Metrics) RecordRank(n int, d time.Duration) {
	if m == nil {
		return
	}
	m.RankBatchSize.Observe(float64(n))
	m.RankDuration.Observe(d.Seconds())
}

// RecordTraining records a model fit and the resulting training-set metrics.
func (m *Metrics) RecordTraining(kind string, accuracy, auc float64) {
	if m == nil {
		return
	}
	m.ModelTrainings.WithLabelValues(kind).Inc()
	m.ModelAccuracy.Set(accuracy)
	m.ModelAUC.Set(auc)
}

// SetModelState updates the model state gauge.
func (m *Metrics) SetModelState(state int) {
	if m == nil {
		return
	}
	m.ModelState.Set(float64(state))
}

// RecordExtractionFallback records a job extraction that used the fallback extractor.
func (m *Metrics) RecordExtractionFallback(reason string) {
	if m == nil {
		return
	}
	m.ExtractionFallbacks.WithLabelValues(reason).Inc()
}

// RecordEmbeddingError records a failed embedding call.
func (m *Metrics) RecordEmbeddingError(provider string) {
	if m == nil {
		return
	}
	m.EmbeddingErrors.WithLabelValues(provider).Inc()
}

// RecordSearch records the size of a search result set.
func (m *Metrics) RecordSearch(n int) {
	if m == nil {
		return
	}
	m.SearchResults.Observe(float64(n))
}
