package resource

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache and fetch activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	fetches     *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	fetchBytes  prometheus.Counter
}

// NewMetrics creates the resolution metrics and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "htmlinline",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Resolutions answered from the resource cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "htmlinline",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Resolutions that required a fetch",
		}),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "htmlinline",
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Fetches by reference kind",
			},
			[]string{"kind"}, // local, remote, data
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "htmlinline",
				Subsystem: "fetch",
				Name:      "errors_total",
				Help:      "Failed fetches by reference kind",
			},
			[]string{"kind"},
		),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "htmlinline",
			Subsystem: "fetch",
			Name:      "bytes_total",
			Help:      "Bytes fetched before transforms",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.cacheHits, m.cacheMisses, m.fetches, m.fetchErrors, m.fetchBytes)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) fetched(k Kind, size int, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(k.String()).Inc()
	if err != nil {
		m.fetchErrors.WithLabelValues(k.String()).Inc()
		return
	}
	m.fetchBytes.Add(float64(size))
}
