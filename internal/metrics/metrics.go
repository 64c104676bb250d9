// Package metrics holds the server's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MacroOps counts applied macro operations by kind.
	MacroOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "macros_ops_applied_total",
		Help: "Macro operations applied, by kind",
	}, []string{"kind"})

	// SaveRejections counts saves blocked by the uniqueness gate.
	SaveRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "macros_save_rejections_total",
		Help: "Macro saves rejected by uniqueness validation, by violation",
	}, []string{"violation"})

	// HistoryEntries is the sum of entries over every loaded user history.
	HistoryEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "history_entries",
		Help: "Query history entries held across all loaded user histories",
	})

	// HistoryChanges counts history notifications by operation.
	HistoryChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "history_changes_total",
		Help: "Query history changes, by operation",
	}, []string{"operation"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
