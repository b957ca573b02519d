package cmd

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marfl/fbas-analyzer/analysis"
)

const metricsNamespace = "fbas"

/*
writeMetrics exports the shrinking statistics and the statistics of the computed
queries in Prometheus text format, suitable for the node exporter textfile collector.
*/
func writeMetrics(path string, a *analysis.Analysis) error {
	reg := prometheus.NewRegistry()

	nodes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "fbas",
		Name:      "nodes",
		Help:      "Number of nodes in the FBAS before and after shrinking.",
	}, []string{"stage"})
	queryDuration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "Time it took to compute the query result.",
	}, []string{"query"})
	queryCached := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "query",
		Name:      "cached",
		Help:      "1 when the query result was loaded from the result cache.",
	}, []string{"query"})
	searchNodes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "search",
		Name:      "tree_nodes",
		Help:      "Search tree nodes by outcome.",
	}, []string{"query", "outcome"})
	searchHits := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "search",
		Name:      "hits",
		Help:      "Number of minimal sets found by the search.",
	}, []string{"query"})
	reg.MustRegister(nodes, queryDuration, queryCached, searchNodes, searchHits)

	st := a.ShrinkStats()
	nodes.WithLabelValues("original").Set(float64(st.OriginalNodes))
	nodes.WithLabelValues("shrunk").Set(float64(st.ShrunkNodes))
	nodes.WithLabelValues("unsatisfiable").Set(float64(st.UnsatisfiableNodes))

	for q, qs := range a.QueryStats() {
		name := string(q)
		queryDuration.WithLabelValues(name).Set(qs.Duration.Seconds())
		cached := 0.0
		if qs.Cached {
			cached = 1
		}
		queryCached.WithLabelValues(name).Set(cached)
		if qs.Search == nil {
			continue
		}
		searchNodes.WithLabelValues(name, "visited").Set(float64(qs.Search.Visited))
		searchNodes.WithLabelValues(name, "evaluated").Set(float64(qs.Search.Evaluations))
		searchNodes.WithLabelValues(name, "pruned_superset").Set(float64(qs.Search.PrunedBySuperset))
		searchNodes.WithLabelValues(name, "pruned_bound").Set(float64(qs.Search.PrunedByBound))
		searchHits.WithLabelValues(name).Set(float64(qs.Search.Hits))
	}

	return prometheus.WriteToTextfile(path, reg)
}
