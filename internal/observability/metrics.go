// Domain-level Prometheus collectors. HTTP traffic metrics live in the
// middleware package; the collectors here count business events so that
// dashboards can track the sales funnel independently of request volume.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// CheckoutsTotal counts checkout submissions by outcome. Outcomes:
	// "created", "idempotent_replay", "stock_conflict", "incomplete",
	// "rejected" (anything else the service refused).
	CheckoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout submissions by outcome.",
		},
		[]string{"outcome"},
	)

	// ToolCallsTotal counts tool dispatches by tool name. Names come from
	// the bounded registry, so cardinality is fixed at startup.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Tool dispatches executed on behalf of the model.",
		},
		[]string{"tool"},
	)

	// AgentHops records how many model round trips each agent run took
	// before producing an answer (or giving up at the hop limit).
	AgentHops = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_hops",
			Help:    "Model round trips per agent run.",
			Buckets: []float64{1, 2, 3, 4, 5, 6},
		},
	)
)

func init() {
	prometheus.MustRegister(CheckoutsTotal, ToolCallsTotal, AgentHops)
}
