package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrMetricsFile is returned when the metrics textfile cannot be written.
var ErrMetricsFile = errors.New("cannot write metrics file")

// fetchErrorsMetric is registered by the inliner's resource cache.
const fetchErrorsMetric = "htmlinline_fetch_errors_total"

// writeMetricsFile writes every metric in g to path in the Prometheus text
// format, for node_exporter's textfile collector.
func writeMetricsFile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("%w: %v", ErrMetricsFile, err)
	}
	return nil
}

// remoteFetchErrors returns how many http(s) fetches failed during the run.
func remoteFetchErrors(g prometheus.Gatherer) int {
	families, err := g.Gather()
	if err != nil {
		return 0
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != fetchErrorsMetric {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "kind" && lp.GetValue() == "remote" {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return int(total)
}
