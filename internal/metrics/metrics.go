// metrics — счётчики операций сессии для Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций в метке result.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics — счётчик и гистограмма операций register/login/refresh/logout.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New создаёт метрики и регистрирует их в reg.
// reg == nil — метрики не регистрируются (удобно для тестов хендлеров).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "todo",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Session operations by result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "todo",
			Subsystem: "auth",
			Name:      "operation_duration_seconds",
			Help:      "Session operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(m.ops, m.duration)
	}

	return m
}

// Observe фиксирует одну операцию. result — ResultOK или код ошибки.
// Nil-приёмник допустим.
func (m *Metrics) Observe(operation, result string, took time.Duration) {
	if m == nil {
		return
	}

	m.ops.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(took.Seconds())
}
