// Package jam holds the shared traffic-jam and occupancy state. Many car
// goroutines read it during a step; the coordinator mutates occupancy and
// jam lifetimes exclusively at the step boundary. A single mutex keeps the
// factor/remaining pair atomic: a reader can never observe one half of a
// jam without the other.
package jam

import (
	"math/rand"
	"sync"
)

// Config are the jam trigger and lifetime parameters.
type Config struct {
	// Probability is the per-check chance of starting a jam on an edge
	// whose occupancy has reached MinCars.
	Probability float64
	// MinFactor and MaxFactor bound the drawn speed multiplier, in (0,1].
	MinFactor float64
	MaxFactor float64
	// MinSteps and MaxSteps bound the drawn jam duration.
	MinSteps int
	MaxSteps int
	// MinCars is the occupancy threshold below which no jam can start.
	MinCars int
}

// Model is the shared jam/occupancy store.
type Model struct {
	cfg Config

	mu        sync.Mutex
	factor    map[int]float64
	remaining map[int]int
	occupancy map[int]int
}

// NewModel creates an empty model: no jams, no occupancy.
func NewModel(cfg Config) *Model {
	return &Model{
		cfg:       cfg,
		factor:    make(map[int]float64),
		remaining: make(map[int]int),
		occupancy: make(map[int]int),
	}
}

// MaybeStartJam starts a jam on the edge if none is active, the current
// occupancy snapshot meets the threshold and the caller's random draw
// falls under the configured probability. Factor and duration are
// recorded together under the lock, so concurrent callers for the same
// edge cannot double-insert.
func (m *Model) MaybeStartJam(edgeID int, rnd *rand.Rand) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, active := m.remaining[edgeID]; active {
		return
	}
	if m.occupancy[edgeID] < m.cfg.MinCars {
		return
	}
	if rnd.Float64() > m.cfg.Probability {
		return
	}
	m.factor[edgeID] = m.cfg.MinFactor + rnd.Float64()*(m.cfg.MaxFactor-m.cfg.MinFactor)
	m.remaining[edgeID] = m.cfg.MinSteps + rnd.Intn(m.cfg.MaxSteps-m.cfg.MinSteps+1)
}

// Factor returns the edge's jam factor, 1.0 when no jam is active.
func (m *Model) Factor(edgeID int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.factor[edgeID]; ok {
		return f
	}
	return 1.0
}

// Tick ages every active jam by one step and removes expired ones, factor
// and remaining together. Calling it with no active jams changes nothing.
func (m *Model) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for edgeID := range m.remaining {
		m.remaining[edgeID]--
		if m.remaining[edgeID] <= 0 {
			delete(m.remaining, edgeID)
			delete(m.factor, edgeID)
		}
	}
}

// UpdateOccupancy replaces the occupancy map wholesale with the counts
// computed by the coordinator at the step boundary.
func (m *Model) UpdateOccupancy(counts map[int]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.occupancy = counts
}

// Occupancy returns the snapshot count for one edge.
func (m *Model) Occupancy(edgeID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.occupancy[edgeID]
}

// ActiveJams reports how many edges currently have a jam.
func (m *Model) ActiveJams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.remaining)
}
