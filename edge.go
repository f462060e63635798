package graphground

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// AddEdge creates a directed, labeled edge from one node to another.
// Example: AddEdge(alice, bob, "follows", Props{"since": "2024"})
//
//	creates: alice ---follows---> bob
//
// The edge record, both adjacency entries and the edge-type index entry are
// written in one transaction.
func (db *DB) AddEdge(from, to NodeID, label string, props Props) (EdgeID, error) {
	if db.isClosed() {
		return 0, ErrClosed
	}

	id := EdgeID(db.nextEdgeID.Add(1))
	edgeData, err := encodeEdge(&Edge{ID: id, From: from, To: to, Label: label, Props: props})
	if err != nil {
		return 0, fmt.Errorf("graphground: failed to encode edge: %w", err)
	}

	err = db.bolt.Update(func(tx *bolt.Tx) error {
		nodes := tx.Bucket(bucketNodes)
		if nodes.Get(encodeNodeID(from)) == nil {
			return fmt.Errorf("%w: source node %d", ErrNotFound, from)
		}
		if nodes.Get(encodeNodeID(to)) == nil {
			return fmt.Errorf("%w: target node %d", ErrNotFound, to)
		}
		if err := tx.Bucket(bucketEdges).Put(encodeEdgeID(id), edgeData); err != nil {
			return err
		}
		if err := tx.Bucket(bucketAdjOut).Put(encodeAdjKey(from, id), encodeAdjValue(to, label)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketAdjIn).Put(encodeAdjKey(to, id), encodeAdjValue(from, label)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIdxEdgeTyp).Put(encodeIndexKey(label, uint64(id)), nil); err != nil {
			return err
		}
		return db.persistCounters(tx)
	})
	if err != nil {
		return 0, fmt.Errorf("graphground: failed to add edge: %w", err)
	}
	db.edgeCount.Add(1)
	db.metrics.EdgesCreated.Add(1)
	db.log.Debug("edge added", "id", id, "from", from, "to", to, "label", label)
	return id, nil
}

// GetEdge retrieves an edge by its ID. Safe for concurrent use.
func (db *DB) GetEdge(id EdgeID) (*Edge, error) {
	if db.isClosed() {
		return nil, ErrClosed
	}
	var edge *Edge
	err := db.bolt.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEdges).Get(encodeEdgeID(id))
		if data == nil {
			return fmt.Errorf("%w: edge %d", ErrNotFound, id)
		}
		var err error
		edge, err = decodeEdge(data)
		return err
	})
	return edge, err
}

// OutEdges returns all outgoing edges from a node.
func (db *DB) OutEdges(id NodeID) ([]*Edge, error) {
	return db.adjacentEdges(id, bucketAdjOut, "", false)
}

// InEdges returns all incoming edges to a node.
func (db *DB) InEdges(id NodeID) ([]*Edge, error) {
	return db.adjacentEdges(id, bucketAdjIn, "", false)
}

// OutEdgesLabeled returns outgoing edges with a specific label.
// Example: OutEdgesLabeled(alice, "follows") returns all "follows" edges from alice.
func (db *DB) OutEdgesLabeled(id NodeID, label string) ([]*Edge, error) {
	return db.adjacentEdges(id, bucketAdjOut, label, true)
}

// InEdgesLabeled returns incoming edges with a specific label.
func (db *DB) InEdgesLabeled(id NodeID, label string) ([]*Edge, error) {
	return db.adjacentEdges(id, bucketAdjIn, label, true)
}

// adjacentEdges scans one adjacency bucket for the node's prefix. When
// filter is set, entries whose stored label differs are skipped before the
// edge record is decoded.
func (db *DB) adjacentEdges(id NodeID, bucket []byte, label string, filter bool) ([]*Edge, error) {
	if db.isClosed() {
		return nil, ErrClosed
	}
	prefix := encodeNodeID(id)
	var edges []*Edge
	err := db.bolt.View(func(tx *bolt.Tx) error {
		edgeBucket := tx.Bucket(bucketEdges)
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if filter {
				if _, l := decodeAdjValue(v); l != label {
					continue
				}
			}
			_, edgeID := decodeAdjKey(k)
			data := edgeBucket.Get(encodeEdgeID(edgeID))
			if data == nil {
				continue
			}
			edge, err := decodeEdge(data)
			if err != nil {
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// EdgesByLabel returns all edges with the given label via the edge-type index.
func (db *DB) EdgesByLabel(label string) ([]*Edge, error) {
	if db.isClosed() {
		return nil, ErrClosed
	}
	var edges []*Edge
	prefix := encodeIndexPrefix(label)
	err := db.bolt.View(func(tx *bolt.Tx) error {
		edgeBucket := tx.Bucket(bucketEdges)
		c := tx.Bucket(bucketIdxEdgeTyp).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if len(k) != len(prefix)+8 {
				continue
			}
			data := edgeBucket.Get(k[len(prefix):])
			if data == nil {
				continue
			}
			edge, err := decodeEdge(data)
			if err != nil {
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// ForEachEdge iterates over all edges in ID order.
// Return a non-nil error from fn to stop iteration.
func (db *DB) ForEachEdge(fn func(*Edge) error) error {
	if db.isClosed() {
		return ErrClosed
	}
	return db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEdges).ForEach(func(_, v []byte) error {
			edge, err := decodeEdge(v)
			if err != nil {
				return err
			}
			return fn(edge)
		})
	})
}

// HasEdgeLabeled checks if a direct edge with a specific label exists between two nodes.
func (db *DB) HasEdgeLabeled(from, to NodeID, label string) (bool, error) {
	edges, err := db.OutEdgesLabeled(from, label)
	if err != nil {
		return false, err
	}
	for _, e := range edges {
		if e.To == to {
			return true, nil
		}
	}
	return false, nil
}

// EdgeCount returns the total number of edges in the database.
func (db *DB) EdgeCount() uint64 {
	return db.edgeCount.Load()
}
