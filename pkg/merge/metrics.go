package merge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/profdiff/pkg/util"
)

const (
	operationMergeThreads = "merge_threads"
	operationDiff         = "diff"
)

type metrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	mergedRows   *prometheus.CounterVec
	deduplicated *prometheus.CounterVec
}

func newMetrics(r prometheus.Registerer) *metrics {
	m := &metrics{}

	m.operations = util.RegisterOrGet(r, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profdiff_merge_operations_total",
		Help: "Total number of merge operations.",
	}, []string{"operation", "outcome"}))
	m.duration = util.RegisterOrGet(r, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "profdiff_merge_duration_seconds",
		Help:    "Duration of merge operations.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	}, []string{"operation"}))
	m.mergedRows = util.RegisterOrGet(r, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profdiff_merged_rows_total",
		Help: "Number of rows written to merged tables.",
	}, []string{"table"}))
	m.deduplicated = util.RegisterOrGet(r, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profdiff_deduplicated_rows_total",
		Help: "Number of source rows mapped to an existing merged row.",
	}, []string{"table"}))

	return m
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
