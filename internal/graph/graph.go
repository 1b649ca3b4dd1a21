// Package graph holds the immutable road graph catalog: per-edge length
// and speed limit keyed by edge id, plus the node count. It is loaded once
// before the simulation starts and never mutated afterwards.
package graph

import (
	"github.com/tidwall/btree"
)

// Edge is one directed road segment. A Length of 0 means the edge is
// traversed instantaneously.
type Edge struct {
	ID         int
	From       int
	To         int
	Length     float64
	SpeedLimit float64
}

// Catalog is the read-only edge store. Edges are kept ordered by id so
// scans are deterministic across runs.
type Catalog struct {
	numNodes int
	edges    btree.Map[int, Edge]
}

// NewCatalog builds a catalog from an edge list. Duplicate ids keep the
// last occurrence.
func NewCatalog(numNodes int, edges []Edge) *Catalog {
	c := &Catalog{numNodes: numNodes}
	for _, e := range edges {
		c.edges.Set(e.ID, e)
	}
	return c
}

// NumNodes returns the node count; nodes are numbered 0..NumNodes-1.
func (c *Catalog) NumNodes() int { return c.numNodes }

// NumEdges returns how many edges the catalog holds.
func (c *Catalog) NumEdges() int { return c.edges.Len() }

// Edge looks up an edge by id.
func (c *Catalog) Edge(id int) (Edge, bool) {
	return c.edges.Get(id)
}

// Scan visits every edge in ascending id order until fn returns false.
func (c *Catalog) Scan(fn func(Edge) bool) {
	c.edges.Scan(func(_ int, e Edge) bool {
		return fn(e)
	})
}
