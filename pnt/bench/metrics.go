package bench

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pnt"
const subsystem = "bench"

type metrics struct {
	read      *prometheus.HistogramVec
	write     *prometheus.HistogramVec
	targetMet *prometheus.GaugeVec
	score     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	buckets := prometheus.ExponentialBuckets(0.0001, 2, 16)

	return &metrics{
		read: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "read_seconds",
			Help:      "Time taken to read and decode one .pnt file.",
			Buckets:   buckets,
		}, []string{"dimension"})),
		write: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "write_seconds",
			Help:      "Time taken to encode and publish one .pnt file.",
			Buckets:   buckets,
		}, []string{"dimension"})),
		targetMet: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "target_met",
			Help:      "1 when the check met its target, 0 otherwise.",
		}, []string{"dimension", "check"})),
		score: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "overall_score",
			Help:      "Percentage of checks that met their target in the last run.",
		})),
	}
}

// register adds c to reg, or hands back the collector already registered
// under the same name so two harnesses can share a registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
