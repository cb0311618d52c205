package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	sweepPaidCounter      prometheus.Counter
	sweepFailureCounter   prometheus.Counter
	balanceDriftGauge     prometheus.Gauge
	idempotencyCounter    *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		sweepPaidCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "investment_sweep_paid_total",
			Help: "Matured investments paid out by the sweep",
		})

		sweepFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "investment_sweep_failures_total",
			Help: "Matured investments whose payout failed and will be retried",
		})

		balanceDriftGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_balance_drift_accounts",
			Help: "Accounts whose balance disagrees with their ledger net",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			sweepPaidCounter,
			sweepFailureCounter,
			balanceDriftGauge,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func AddSweepPaid(count int) {
	if sweepPaidCounter == nil {
		return
	}
	sweepPaidCounter.Add(float64(count))
}

func IncrementSweepFailure() {
	if sweepFailureCounter == nil {
		return
	}
	sweepFailureCounter.Inc()
}

func SetBalanceDrift(accounts int) {
	if balanceDriftGauge == nil {
		return
	}
	balanceDriftGauge.Set(float64(accounts))
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
