package htmlinline

import "github.com/prometheus/client_golang/prometheus"

// Document outcome labels.
const (
	outcomeChanged   = "changed"
	outcomeUnchanged = "unchanged"
	outcomeFailed    = "failed"
)

// documentMetrics counts TransformFile calls. A nil *documentMetrics is valid.
type documentMetrics struct {
	documents *prometheus.CounterVec
	bytes     *prometheus.CounterVec
}

func newDocumentMetrics(reg prometheus.Registerer) *documentMetrics {
	if reg == nil {
		return nil
	}
	m := &documentMetrics{
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "htmlinline",
				Subsystem: "documents",
				Name:      "total",
				Help:      "Documents processed by outcome",
			},
			[]string{"outcome"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "htmlinline",
				Subsystem: "documents",
				Name:      "bytes_total",
				Help:      "Document bytes read and produced",
			},
			[]string{"direction"}, // in, out
		),
	}
	reg.MustRegister(m.documents, m.bytes)
	return m
}

func (m *documentMetrics) observe(r FileResult, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.documents.WithLabelValues(outcomeFailed).Inc()
		return
	case r.Changed:
		m.documents.WithLabelValues(outcomeChanged).Inc()
	default:
		m.documents.WithLabelValues(outcomeUnchanged).Inc()
	}
	m.bytes.WithLabelValues("in").Add(float64(r.InputSize))
	m.bytes.WithLabelValues("out").Add(float64(r.OutputSize))
}
