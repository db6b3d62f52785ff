// Package metrics exposes sync engine observations as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatsync"

// Sync собирает метрики циклов синхронизации
type Sync struct {
	polls    *prometheus.CounterVec
	resets   prometheus.Counter
	duration prometheus.Histogram
	failures prometheus.Gauge
}

// NewSync creates the collectors and registers them on reg.
func NewSync(reg prometheus.Registerer) (*Sync, error) {
	s := &Sync{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "polls_total",
			Help:      "Sync cycles by result.",
		}, []string{"result"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "session_resets_total",
			Help:      "Detected server session rotations.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "poll_duration_seconds",
			Help:      "Duration of sync cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "consecutive_failures",
			Help:      "Failed sync cycles in a row.",
		}),
	}

	for _, c := range []prometheus.Collector{s.polls, s.resets, s.duration, s.failures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// PollCompleted учитывает завершённый цикл
func (s *Sync) PollCompleted(result string, duration time.Duration) {
	s.polls.WithLabelValues(result).Inc()
	s.duration.Observe(duration.Seconds())
}

// SessionReset учитывает смену сессии
func (s *Sync) SessionReset() {
	s.resets.Inc()
}

// ConsecutiveFailures обновляет число ошибок подряд
func (s *Sync) ConsecutiveFailures(n int) {
	s.failures.Set(float64(n))
}

// Handler returns the HTTP handler serving metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
