package graphground

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// AddNode creates a new node with the given arbitrary properties.
// Returns the auto-generated NodeID. Safe for concurrent use.
func (db *DB) AddNode(props Props) (NodeID, error) {
	ids, err := db.AddNodeBatch([]Props{props})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AddNodeBatch creates multiple nodes in a single transaction.
// Returns the generated NodeIDs in input order.
func (db *DB) AddNodeBatch(propsList []Props) ([]NodeID, error) {
	if db.isClosed() {
		return nil, ErrClosed
	}

	ids := make([]NodeID, len(propsList))
	encoded := make([][]byte, len(propsList))
	for i, props := range propsList {
		data, err := encodeProps(props)
		if err != nil {
			return nil, fmt.Errorf("graphground: failed to encode props at index %d: %w", i, err)
		}
		encoded[i] = data
		ids[i] = NodeID(db.nextNodeID.Add(1))
	}

	err := db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		for i, id := range ids {
			if err := b.Put(encodeNodeID(id), encoded[i]); err != nil {
				return err
			}
		}
		return db.persistCounters(tx)
	})
	if err != nil {
		db.log.Error("failed to add nodes", "count", len(propsList), "error", err)
		return nil, fmt.Errorf("graphground: failed to add nodes: %w", err)
	}
	db.nodeCount.Add(uint64(len(ids)))
	db.metrics.NodesCreated.Add(uint64(len(ids)))
	db.log.Debug("nodes added", "count", len(ids))
	return ids, nil
}

// GetNode retrieves a node by its ID. Safe for concurrent use.
func (db *DB) GetNode(id NodeID) (*Node, error) {
	if db.isClosed() {
		return nil, ErrClosed
	}
	if n := db.ncache.Get(id); n != nil {
		return n, nil
	}

	var node *Node
	err := db.bolt.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get(encodeNodeID(id))
		if data == nil {
			return fmt.Errorf("%w: node %d", ErrNotFound, id)
		}
		props, err := decodeProps(data)
		if err != nil {
			return err
		}
		node = &Node{ID: id, Props: props}
		return nil
	})
	if err != nil {
		return nil, err
	}
	db.ncache.Put(node)
	return node, nil
}

// NodeExists reports whether a node with the given ID is stored.
func (db *DB) NodeExists(id NodeID) (bool, error) {
	if db.isClosed() {
		return false, ErrClosed
	}
	var exists bool
	err := db.bolt.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketNodes).Get(encodeNodeID(id)) != nil
		return nil
	})
	return exists, err
}

// NodeCount returns the total number of nodes in the database.
func (db *DB) NodeCount() uint64 {
	return db.nodeCount.Load()
}

// ForEachNode iterates over all nodes in ID order.
// Return a non-nil error from fn to stop iteration.
func (db *DB) ForEachNode(fn func(*Node) error) error {
	if db.isClosed() {
		return ErrClosed
	}
	return db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			props, err := decodeProps(v)
			if err != nil {
				return err
			}
			return fn(&Node{ID: decodeNodeID(k), Props: props})
		})
	})
}
