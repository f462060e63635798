package graphground

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// ErrClosed is returned by every operation on a closed database.
var ErrClosed = errors.New("graphground: database is closed")

// ErrNotFound is wrapped by lookups of missing nodes and edges.
var ErrNotFound = errors.New("graphground: not found")

// Bucket names used in bbolt.
var (
	bucketMeta       = []byte("meta")
	bucketNodes      = []byte("nodes")
	bucketEdges      = []byte("edges")
	bucketAdjOut     = []byte("adj_out")
	bucketAdjIn      = []byte("adj_in")
	bucketIdxEdgeTyp = []byte("idx_edge_type") // label + 0x00 + edgeID → nil

	// Meta keys
	metaNextNodeID = []byte("next_node_id")
	metaNextEdgeID = []byte("next_edge_id")
)

var allBuckets = [][]byte{
	bucketMeta,
	bucketNodes,
	bucketEdges,
	bucketAdjOut,
	bucketAdjIn,
	bucketIdxEdgeTyp,
}

// openBolt opens or creates the bbolt file backing a DB and makes sure
// every bucket exists.
func openBolt(path string, opts Options) (*bolt.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("graphground: failed to create directory %s: %w", dir, err)
	}

	boltOpts := *bolt.DefaultOptions
	boltOpts.NoSync = opts.NoSync
	boltOpts.ReadOnly = opts.ReadOnly
	if opts.MmapSize > 0 {
		boltOpts.InitialMmapSize = opts.MmapSize
	}

	bdb, err := bolt.Open(path, 0600, &boltOpts)
	if err != nil {
		return nil, fmt.Errorf("graphground: failed to open bolt db at %s: %w", path, err)
	}
	if opts.ReadOnly {
		return bdb, nil
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("graphground: failed to create bucket %s: %w", name, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		for _, key := range [][]byte{metaNextNodeID, metaNextEdgeID} {
			if meta.Get(key) == nil {
				if err := meta.Put(key, encodeUint64(0)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return bdb, nil
}

// loadCounters reads the ID allocators and recomputes node/edge counts.
// Counts come from the bucket stats, so a process that exited without
// Close never leaves them stale.
func (db *DB) loadCounters() error {
	return db.bolt.View(func(tx *bolt.Tx) error {
		var nextNode, nextEdge uint64
		if meta := tx.Bucket(bucketMeta); meta != nil {
			if v := meta.Get(metaNextNodeID); v != nil {
				nextNode = decodeUint64(v)
			}
			if v := meta.Get(metaNextEdgeID); v != nil {
				nextEdge = decodeUint64(v)
			}
		}
		if nb := tx.Bucket(bucketNodes); nb != nil {
			db.nodeCount.Store(uint64(nb.Stats().KeyN))
			if k, _ := nb.Cursor().Last(); k != nil && decodeUint64(k) > nextNode {
				nextNode = decodeUint64(k)
			}
		}
		if eb := tx.Bucket(bucketEdges); eb != nil {
			db.edgeCount.Store(uint64(eb.Stats().KeyN))
			if k, _ := eb.Cursor().Last(); k != nil && decodeUint64(k) > nextEdge {
				nextEdge = decodeUint64(k)
			}
		}
		db.nextNodeID.Store(nextNode)
		db.nextEdgeID.Store(nextEdge)
		return nil
	})
}

// persistCounters writes the ID allocators to the meta bucket.
// Must be called within a write transaction.
func (db *DB) persistCounters(tx *bolt.Tx) error {
	meta := tx.Bucket(bucketMeta)
	if err := meta.Put(metaNextNodeID, encodeUint64(db.nextNodeID.Load())); err != nil {
		return err
	}
	return meta.Put(metaNextEdgeID, encodeUint64(db.nextEdgeID.Load()))
}

// fileSize returns the size of the database file in bytes.
func (db *DB) fileSize() (int64, error) {
	info, err := os.Stat(db.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
