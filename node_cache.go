package graphground

import (
	lru "github.com/hashicorp/golang-lru"
)

// nodeCache is an LRU cache for hot Node objects. Grounding revisits the
// same nodes many times (every candidate edge resolves both endpoints), so
// this saves bbolt lookups and msgpack decoding.
//
// Entries are deep copies so callers cannot corrupt the cache by mutating
// a returned node. A nil *nodeCache is a valid, disabled cache.
type nodeCache struct {
	lru *lru.Cache
}

// newNodeCache returns a cache holding up to capacity nodes, or a
// disabled cache when capacity <= 0.
func newNodeCache(capacity int) (*nodeCache, error) {
	if capacity <= 0 {
		return nil, nil
	}
	c, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &nodeCache{lru: c}, nil
}

func (nc *nodeCache) Get(id NodeID) *Node {
	if nc == nil {
		return nil
	}
	v, ok := nc.lru.Get(id)
	if !ok {
		return nil
	}
	return copyNode(v.(*Node))
}

func (nc *nodeCache) Put(n *Node) {
	if nc == nil {
		return
	}
	nc.lru.Add(n.ID, copyNode(n))
}

func (nc *nodeCache) Len() int {
	if nc == nil {
		return 0
	}
	return nc.lru.Len()
}

func copyNode(n *Node) *Node {
	props := make(Props, len(n.Props))
	for k, v := range n.Props {
		props[k] = v
	}
	return &Node{ID: n.ID, Props: props}
}
