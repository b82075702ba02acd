package monitoring

import (
	"net/http"
	"time"

	"github.com/mezonai/hashchain/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type chainPromMetrics struct {
	nodeUpUnixSeconds  prometheus.Gauge
	blockHeight        prometheus.Gauge
	appendedBlocks     prometheus.Counter
	appendFailures     prometheus.Counter
	appendDuration     prometheus.Histogram
	validationRuns     prometheus.Counter
	validationDuration prometheus.Histogram
	violations         *prometheus.CounterVec
	panicCount         prometheus.Counter
}

func newChainPromMetrics() *chainPromMetrics {
	return &chainPromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hashchain_up_timestamp_unix_seconds",
				Help: "Unix timestamp at which the process started serving",
			},
		),
		blockHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hashchain_block_height",
				Help: "The current block height, -1 when the store is empty",
			},
		),
		appendedBlocks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hashchain_appended_blocks_total",
				Help: "The total number of blocks committed through append",
			},
		),
		appendFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hashchain_append_failures_total",
				Help: "The total number of failed append attempts",
			},
		),
		appendDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hashchain_append_duration_seconds",
				Help:    "Latency of a successful append, including the previous-block read",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		validationRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hashchain_validation_runs_total",
				Help: "The total number of full-chain validations",
			},
		),
		validationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "hashchain_validation_duration_seconds",
				Help: "Duration of a full-chain validation scan",
			},
		),
		violations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashchain_validation_violations_total",
				Help: "Violations reported by chain validation",
			},
			[]string{"code"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hashchain_panic_count",
				Help: "The total number of recovered panics",
			},
		),
	}
}

// metrics are registered once per process on the default registry
var chainMetrics = newChainPromMetrics()

// MarkUp records the process start time
func MarkUp() {
	chainMetrics.nodeUpUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func SetBlockHeight(height int64) {
	chainMetrics.blockHeight.Set(float64(height))
}

func RecordAppend(duration time.Duration) {
	chainMetrics.appendedBlocks.Inc()
	chainMetrics.appendDuration.Observe(duration.Seconds())
}

func RecordAppendFailure() {
	chainMetrics.appendFailures.Inc()
}

func RecordValidation(duration time.Duration) {
	chainMetrics.validationRuns.Inc()
	chainMetrics.validationDuration.Observe(duration.Seconds())
}

func RecordViolation(code string) {
	chainMetrics.violations.With(prometheus.Labels{
		"code": code,
	}).Inc()
}

func IncreasePanicCount() {
	chainMetrics.panicCount.Inc()
}
