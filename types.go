package graphground

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// NodeID uniquely identifies a node in the graph.
type NodeID uint64

// EdgeID uniquely identifies an edge in the graph.
type EdgeID uint64

// Props holds arbitrary key-value properties for nodes and edges.
type Props map[string]interface{}

// Direction represents the direction of an edge lookup.
type Direction byte

const (
	// Outgoing represents edges going from a node.
	Outgoing Direction = 0x01
	// Incoming represents edges coming to a node.
	Incoming Direction = 0x02
	// Both represents edges in both directions.
	Both Direction = 0x03
)

// Node represents a vertex in the graph with arbitrary properties.
type Node struct {
	ID    NodeID `json:"id"`
	Props Props  `json:"props,omitempty"`
}

// Get returns a property value by key, with an existence flag.
func (n *Node) Get(key string) (interface{}, bool) {
	v, ok := n.Props[key]
	return v, ok
}

// GetString returns a string property or empty string.
func (n *Node) GetString(key string) string {
	if v, ok := n.Props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetFloat returns a float64 property or 0.
func (n *Node) GetFloat(key string) float64 {
	if v, ok := n.Props[key]; ok {
		switch f := v.(type) {
		case float64:
			return f
		case int:
			return float64(f)
		case int64:
			return float64(f)
		case uint64:
			return float64(f)
		case json.Number:
			val, _ := f.Float64()
			return val
		}
	}
	return 0
}

// Edge represents a directed, labeled relationship between two nodes.
// Example: a ---follows---> b
type Edge struct {
	ID    EdgeID `json:"id"`
	From  NodeID `json:"from"`
	To    NodeID `json:"to"`
	Label string `json:"label"`
	Props Props  `json:"props,omitempty"`
}

// String returns a human-readable representation of the edge.
func (e *Edge) String() string {
	return fmt.Sprintf("(%d)--%s-->(%d)", e.From, e.Label, e.To)
}

// Options configures a DB instance.
type Options struct {
	// NoSync disables fsync after each commit for faster writes (risk of data loss on crash).
	NoSync bool `yaml:"no_sync"`
	// ReadOnly opens the database in read-only mode.
	ReadOnly bool `yaml:"read_only"`
	// MmapSize is the initial mmap size for the database file in bytes.
	MmapSize int `yaml:"mmap_size"`
	// CacheSize is the LRU capacity for hot nodes (number of nodes). 0 disables the cache.
	CacheSize int `yaml:"cache_size"`

	// DefaultQueryTimeout bounds Ground calls whose context has no deadline. 0 = none.
	DefaultQueryTimeout time.Duration `yaml:"default_query_timeout"`
	// MaxGroundings caps how many groundings one Ground call may collect. 0 = unlimited.
	MaxGroundings int `yaml:"max_groundings"`
	// SlowQueryThreshold logs Ground calls slower than this. 0 disables the slow log.
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`

	// DistinctBindings forbids two variables from being grounded to the same node.
	DistinctBindings bool `yaml:"distinct_bindings"`

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
	// Tracer receives grounding trace events. Defaults to a SlogTracer on Logger.
	Tracer Tracer `yaml:"-"`
}

// DefaultOptions returns sensible defaults for a local graph.
func DefaultOptions() Options {
	return Options{
		NoSync:             false,
		ReadOnly:           false,
		MmapSize:           64 * 1024 * 1024, // 64MB initial mmap
		CacheSize:          10_000,
		SlowQueryThreshold: 500 * time.Millisecond,
	}
}

// GraphStats holds database statistics.
type GraphStats struct {
	NodeCount     uint64 `json:"node_count"`
	EdgeCount     uint64 `json:"edge_count"`
	DiskSizeBytes int64  `json:"disk_size_bytes"`
}
