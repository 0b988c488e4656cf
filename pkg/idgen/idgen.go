// Package idgen issues monotonic int64 identifiers for orders and
// trades. The simulation is single-threaded, so no atomics are needed;
// determinism matters more than contention here.
package idgen

// Generator hands out sequential ids starting above a fixed floor so
// that zero is never a valid id.
type Generator struct {
	id int64
}

// New creates a Generator. Ids start at 1001.
func New() *Generator {
	return &Generator{id: 1000}
}

// Next returns the next id.
func (g *Generator) Next() int64 {
	g.id++
	return g.id
}

// Peek returns the most recently issued id without consuming one.
func (g *Generator) Peek() int64 {
	return g.id
}
