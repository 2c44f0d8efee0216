// Package metrics exposes prometheus collectors for OCR, LLM and pipeline
// activity. A Metrics value implements ocr.Observer, llm.Observer and
// pipeline.Observer.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
)

const namespace = "reconciler"

type Metrics struct {
	reg *prometheus.Registry

	ocrImages   *prometheus.CounterVec
	ocrDuration *prometheus.HistogramVec
	ocrBatches  prometheus.Counter
	ocrBatchDur prometheus.Histogram
	ocrFrags    prometheus.Counter

	llmQueries  *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec

	files       *prometheus.CounterVec
	fileDur     *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide instance.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New builds a Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ocrImages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ocr", Name: "images_total",
			Help: "Images recognized by pool workers.",
		}, []string{"worker", "result"}),
		ocrDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ocr", Name: "image_seconds",
			Help:    "Per-image recognition time.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"result"}),
		ocrBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ocr", Name: "batches_total",
			Help: "Image batches processed by the pool.",
		}),
		ocrBatchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ocr", Name: "batch_seconds",
			Help:    "Wall time of a pool batch.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ocrFrags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ocr", Name: "fragments_total",
			Help: "Text fragments returned by the pool.",
		}),
		llmQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "queries_total",
			Help: "Chat completion calls.",
		}, []string{"model", "result"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "llm", Name: "query_seconds",
			Help:    "Chat completion latency including retries.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
		}, []string{"model"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "files_total",
			Help: "Files passed through text extraction.",
		}, []string{"format", "method", "result"}),
		fileDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "file_seconds",
			Help:    "Text extraction time per file.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"format"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "runs_total",
			Help: "Finished processing runs.",
		}, []string{"scenario", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "run_seconds",
			Help:    "Processing run wall time.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"scenario"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ocrImages, m.ocrDuration, m.ocrBatches, m.ocrBatchDur, m.ocrFrags,
		m.llmQueries, m.llmDuration,
		m.files, m.fileDur, m.runs, m.runDuration,
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ImageProcessed(worker int, d time.Duration, err error) {
	m.ocrImages.WithLabelValues(strconv.Itoa(worker), result(err)).Inc()
	m.ocrDuration.WithLabelValues(result(err)).Observe(d.Seconds())
}

func (m *Metrics) BatchProcessed(images, fragments int, d time.Duration) {
	m.ocrBatches.Inc()
	m.ocrFrags.Add(float64(fragments))
	m.ocrBatchDur.Observe(d.Seconds())
}

func (m *Metrics) QueryDone(model string, d time.Duration, err error) {
	m.llmQueries.WithLabelValues(model, result(err)).Inc()
	m.llmDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) FileExtracted(format constants.Format, method constants.Method, d time.Duration, err error) {
	m.files.WithLabelValues(string(format), string(method), result(err)).Inc()
	m.fileDur.WithLabelValues(string(format)).Observe(d.Seconds())
}

func (m *Metrics) RunFinished(scenario constants.Scenario, status constants.RunStatus, d time.Duration) {
	m.runs.WithLabelValues(string(scenario), string(status)).Inc()
	m.runDuration.WithLabelValues(string(scenario)).Observe(d.Seconds())
}

// WatchPool exports the pool's worker count and processed total as gauges
// read on every scrape.
func (m *Metrics) WatchPool(stats func() ocr.Stats) {
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ocr", Name: "pool_workers",
			Help: "Running OCR pool workers.",
		}, func() float64 { return float64(stats().WorkersCount) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ocr", Name: "pool_processed",
			Help: "Images processed by the current pool instance.",
		}, func() float64 { return float64(stats().TotalProcessed) }),
	)
}

// Registry is the underlying registry; tests gather from it.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
