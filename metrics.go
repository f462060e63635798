package graphground

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Metrics holds operational counters for the database and the matcher.
// All fields are atomic and safe for concurrent use. Prometheus exposition
// format is generated by hand so the core library stays free of
// prometheus/client_golang.
type Metrics struct {
	// Ground calls
	GroundQueries atomic.Uint64
	QueryErrors   atomic.Uint64
	SlowQueries   atomic.Uint64

	QueryDurationSum atomic.Int64 // cumulative microseconds
	QueryDurationMax atomic.Int64 // max observed microseconds

	// Matcher
	SatisfyCalls            atomic.Uint64 // top-level calls only
	ComponentSearches       atomic.Uint64 // direct searches started
	GroundingsCollected     atomic.Uint64 // per-component groundings kept for the join
	CombinationsExplored    atomic.Uint64
	CombinationsAccepted    atomic.Uint64
	EmptyComponentAborts    atomic.Uint64
	OptionalPresentFailures atomic.Uint64

	// Writes
	NodesCreated atomic.Uint64
	EdgesCreated atomic.Uint64

	db *DB
}

// newMetrics creates a Metrics bound to db. db may be nil.
func newMetrics(db *DB) *Metrics {
	return &Metrics{db: db}
}

func (m *Metrics) recordQueryDuration(d time.Duration) {
	us := d.Microseconds()
	m.QueryDurationSum.Add(us)
	for {
		cur := m.QueryDurationMax.Load()
		if us <= cur || m.QueryDurationMax.CompareAndSwap(cur, us) {
			break
		}
	}
}

// CombinationsRejected is the number of explored combinations not accepted.
func (m *Metrics) CombinationsRejected() uint64 {
	return m.CombinationsExplored.Load() - m.CombinationsAccepted.Load()
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() map[string]any {
	snap := map[string]any{
		"ground_queries_total":            m.GroundQueries.Load(),
		"query_errors_total":              m.QueryErrors.Load(),
		"slow_queries_total":              m.SlowQueries.Load(),
		"query_duration_sum_us":           m.QueryDurationSum.Load(),
		"query_duration_max_us":           m.QueryDurationMax.Load(),
		"satisfy_calls_total":             m.SatisfyCalls.Load(),
		"component_searches_total":        m.ComponentSearches.Load(),
		"groundings_collected_total":      m.GroundingsCollected.Load(),
		"combinations_explored_total":     m.CombinationsExplored.Load(),
		"combinations_accepted_total":     m.CombinationsAccepted.Load(),
		"combinations_rejected_total":     m.CombinationsRejected(),
		"empty_component_aborts_total":    m.EmptyComponentAborts.Load(),
		"optional_present_failures_total": m.OptionalPresentFailures.Load(),
		"nodes_created_total":             m.NodesCreated.Load(),
		"edges_created_total":             m.EdgesCreated.Load(),
	}
	if m.db != nil {
		snap["node_count"] = m.db.NodeCount()
		snap["edge_count"] = m.db.EdgeCount()
		snap["node_cache_entries"] = m.db.ncache.Len()
	}
	return snap
}

// WritePrometheus writes all metrics in Prometheus text exposition format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	pCounter(w, "graphground_ground_queries_total", "Total number of Ground calls", m.GroundQueries.Load())
	pCounter(w, "graphground_query_errors_total", "Ground calls that returned an error", m.QueryErrors.Load())
	pCounter(w, "graphground_slow_queries_total", "Ground calls exceeding the slow query threshold", m.SlowQueries.Load())
	pCounter(w, "graphground_query_duration_microseconds_sum", "Cumulative Ground duration in microseconds", uint64(m.QueryDurationSum.Load()))
	pCounter(w, "graphground_satisfy_calls_total", "Top-level Satisfy invocations", m.SatisfyCalls.Load())
	pCounter(w, "graphground_component_searches_total", "Direct component searches", m.ComponentSearches.Load())
	pCounter(w, "graphground_groundings_collected_total", "Per-component groundings collected for joining", m.GroundingsCollected.Load())
	pCounter(w, "graphground_combinations_explored_total", "Joined combinations offered to the callback", m.CombinationsExplored.Load())
	pCounter(w, "graphground_combinations_accepted_total", "Joined combinations accepted", m.CombinationsAccepted.Load())
	pCounter(w, "graphground_combinations_rejected_total", "Joined combinations rejected", m.CombinationsRejected())
	pCounter(w, "graphground_empty_component_aborts_total", "Searches stopped by a component with no grounding", m.EmptyComponentAborts.Load())
	pCounter(w, "graphground_optional_present_failures_total", "Searches failed by a present disconnected optional", m.OptionalPresentFailures.Load())
	pCounter(w, "graphground_nodes_created_total", "Total nodes created", m.NodesCreated.Load())
	pCounter(w, "graphground_edges_created_total", "Total edges created", m.EdgesCreated.Load())

	if m.db != nil {
		pGauge(w, "graphground_nodes_current", "Current number of nodes", float64(m.db.NodeCount()))
		pGauge(w, "graphground_edges_current", "Current number of edges", float64(m.db.EdgeCount()))
		pGauge(w, "graphground_node_cache_entries", "Nodes held by the node cache", float64(m.db.ncache.Len()))
	}
	pGauge(w, "graphground_query_duration_microseconds_max", "Maximum observed Ground duration in microseconds", float64(m.QueryDurationMax.Load()))
}

func pCounter(w io.Writer, name, help string, val uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, val)
}

func pGauge(w io.Writer, name, help string, val float64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", name, help, name, name, val)
}
