package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/segcache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	evicts     *prometheus.CounterVec
	sizeEnt    prometheus.Gauge
	sizeWeight prometheus.Gauge
	loads      *prometheus.HistogramVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Automatic removals by cause",
				ConstLabels: constLabels,
			},
			[]string{"cause"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
		sizeWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_weight",
			Help:        "Total resident weight",
			ConstLabels: constLabels,
		}),
		loads: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "load_duration_seconds",
				Help:        "GetOrLoad loader latency by result",
				ConstLabels: constLabels,
				Buckets:     prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeWeight, a.loads)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a cause label
// ("expired" or "size").
func (a *Adapter) Evict(cause cache.RemovalCause) {
	a.evicts.WithLabelValues(cause.String()).Inc()
}

// Resize applies a segment's entry and weight deltas to the gauges.
// Segments report independently, so the gauges hold running sums.
func (a *Adapter) Resize(entries int, weight int64) {
	a.sizeEnt.Add(float64(entries))
	a.sizeWeight.Add(float64(weight))
}

// Load observes one loader call.
func (a *Adapter) Load(elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	a.loads.WithLabelValues(result).Observe(elapsed.Seconds())
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
