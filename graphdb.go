package graphground

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	bolt "go.etcd.io/bbolt"
)

// DB is a property-graph store that patterns are grounded against.
//
// Concurrency model:
//   - Reads (GetNode, OutEdges, Ground, ...) run fully in parallel on bbolt read transactions.
//   - Writes (AddNode, AddEdge) are serialized by bbolt's single writer.
//   - Each Ground call runs its own single-threaded search; nothing is shared between calls
//     except the read-only store and the node cache.
type DB struct {
	opts    Options
	path    string
	bolt    *bolt.DB
	ncache  *nodeCache         // LRU hot-node cache
	log     *slog.Logger       // structured logger for all operations
	tracer  Tracer             // grounding trace events
	metrics *Metrics           // operational counters (Prometheus-compatible)
	slowLog *slowGroundingRing // ring buffer of recent slow Ground calls
	gov     *queryGovernor     // default timeout and grounding cap
	mu      sync.Mutex         // only used in Close() to prevent double-close
	closed  atomic.Bool

	nextNodeID atomic.Uint64
	nextEdgeID atomic.Uint64
	nodeCount  atomic.Uint64
	edgeCount  atomic.Uint64
}

// Open creates or opens a graph database in the given directory.
// The directory will be created if it doesn't exist.
func Open(dir string, opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = SlogTracer{Log: logger}
	}

	path := filepath.Join(dir, "graph.db")
	bdb, err := openBolt(path, opts)
	if err != nil {
		return nil, err
	}

	ncache, err := newNodeCache(opts.CacheSize)
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("graphground: node cache: %w", err)
	}

	db := &DB{
		opts:    opts,
		path:    path,
		bolt:    bdb,
		ncache:  ncache,
		log:     logger,
		tracer:  tracer,
		slowLog: newSlowGroundingRing(slowLogCapacity),
		gov: &queryGovernor{
			maxGroundings:  opts.MaxGroundings,
			defaultTimeout: opts.DefaultQueryTimeout,
		},
	}
	db.metrics = newMetrics(db)

	if err := db.loadCounters(); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("graphground: failed to load counters: %w", err)
	}

	db.log.Info("database opened",
		"path", path,
		"nodes", db.nodeCount.Load(),
		"edges", db.edgeCount.Load(),
		"cache_size", opts.CacheSize,
	)
	return db, nil
}

// Close flushes the ID allocators and closes the underlying file.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed.Load() {
		return nil
	}
	db.closed.Store(true)

	if !db.bolt.IsReadOnly() {
		_ = db.bolt.Update(db.persistCounters)
	}
	if err := db.bolt.Close(); err != nil {
		db.log.Error("database closed with error", "error", err)
		return err
	}
	db.log.Info("database closed")
	return nil
}

// Metrics returns the operational metrics collector.
func (db *DB) Metrics() *Metrics {
	return db.metrics
}

// Logger returns the structured logger the database was opened with.
func (db *DB) Logger() *slog.Logger {
	return db.log
}

func (db *DB) isClosed() bool {
	return db.closed.Load()
}

// Stats returns node/edge counts and the on-disk size.
func (db *DB) Stats() (*GraphStats, error) {
	if db.isClosed() {
		return nil, ErrClosed
	}
	size, err := db.fileSize()
	if err != nil {
		return nil, err
	}
	return &GraphStats{
		NodeCount:     db.nodeCount.Load(),
		EdgeCount:     db.edgeCount.Load(),
		DiskSizeBytes: size,
	}, nil
}
