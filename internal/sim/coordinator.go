package sim

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanonone/routesim/internal/config"
	"github.com/sanonone/routesim/internal/graph"
	"github.com/sanonone/routesim/internal/jam"
	"github.com/sanonone/routesim/internal/protocol"
	"github.com/sanonone/routesim/pkg/metrics"
)

// TransportFactory opens one car's exclusive connection to the routing
// server. A factory error is a setup failure and aborts the whole run.
type TransportFactory func(carID int) (protocol.Transport, error)

// Coordinator owns the per-step rendezvous: it releases all cars to
// compute a step concurrently against a frozen jam/occupancy snapshot,
// and once every car has finished it runs the boundary phase exclusively
// (occupancy recount, jam aging, logging, pacing) before the next step.
type Coordinator struct {
	cfg     config.Config
	catalog *graph.Catalog
	jams    *jam.Model
	cars    []*Car
	factory TransportFactory

	runID   string
	barrier *Barrier
	step    int // completed boundaries; only the boundary phase writes it
}

// NewCoordinator builds the fleet and the shared jam model.
func NewCoordinator(cfg config.Config, catalog *graph.Catalog, factory TransportFactory) *Coordinator {
	jams := jam.NewModel(jam.Config{
		Probability: cfg.JamProb,
		MinFactor:   cfg.JamMinFactor,
		MaxFactor:   cfg.JamMaxFactor,
		MinSteps:    cfg.JamMinSteps,
		MaxSteps:    cfg.JamMaxSteps,
		MinCars:     cfg.JamMinCars,
	})

	cars := make([]*Car, cfg.Cars)
	for i := range cars {
		cars[i] = NewCar(i, cfg, catalog, jams)
	}

	return &Coordinator{
		cfg:     cfg,
		catalog: catalog,
		jams:    jams,
		cars:    cars,
		factory: factory,
		runID:   uuid.NewString(),
	}
}

// Cars exposes the fleet for summaries and tests. Callers must not touch
// it while Run is in flight.
func (co *Coordinator) Cars() []*Car { return co.cars }

// Jams exposes the shared jam model.
func (co *Coordinator) Jams() *jam.Model { return co.jams }

// Run executes the configured number of steps and blocks until every car
// goroutine has finished. It returns an error only for a run-level
// failure (a car that could not connect, or an external abort);
// individual mid-run car failures are logged and excluded from the
// rendezvous without stopping the run.
func (co *Coordinator) Run() error {
	co.barrier = NewBarrier(len(co.cars), co.boundary)

	log.Printf("[run %s] starting %d cars for %d steps (%s protocol)",
		co.runID, len(co.cars), co.cfg.Steps, co.cfg.Protocol)

	var wg sync.WaitGroup
	for _, c := range co.cars {
		wg.Add(1)
		go func(c *Car) {
			defer wg.Done()
			co.runCar(c)
		}(c)
	}
	wg.Wait()

	return co.barrier.Err()
}

// Abort releases every car from the rendezvous with err. Safe to call
// from another goroutine (e.g. on SIGINT).
func (co *Coordinator) Abort(err error) {
	if co.barrier != nil {
		co.barrier.Abort(err)
	}
}

func (co *Coordinator) runCar(c *Car) {
	tr, err := co.factory(c.ID)
	if err != nil {
		// One car that cannot connect takes the whole run down; anyone
		// already parked at the barrier is released, not deadlocked.
		co.barrier.Abort(fmt.Errorf("connect failed for car %d: %w", c.ID, err))
		return
	}
	defer tr.Close()
	c.transport = tr

	for step := 0; step < co.cfg.Steps; step++ {
		if err := c.Step(step); err != nil {
			log.Printf("[run %s] car %d retired at step %d: %v", co.runID, c.ID, step, err)
			co.barrier.Retire()
			return
		}
		if err := co.barrier.Wait(); err != nil {
			return
		}
	}
}

// boundary is the exclusive step-boundary phase. It runs while every
// still-active car is parked at the barrier, so reading car state here is
// race-free.
func (co *Coordinator) boundary() {
	counts := make(map[int]int)
	for _, c := range co.cars {
		if c.State != StateDriving {
			continue
		}
		if edgeID, ok := c.CurrentEdge(); ok {
			counts[edgeID]++
		}
	}
	co.jams.UpdateOccupancy(counts)
	co.jams.Tick()
	co.step++

	driving, arrived, waiting := co.tally()
	metrics.SimSteps.Inc()
	metrics.CarsByState.WithLabelValues(StateDriving.String()).Set(float64(driving))
	metrics.CarsByState.WithLabelValues(StateArrived.String()).Set(float64(arrived))
	metrics.CarsByState.WithLabelValues(StateWaiting.String()).Set(float64(waiting))
	metrics.ActiveJams.Set(float64(co.jams.ActiveJams()))

	if co.cfg.LogEvery > 0 && co.step%co.cfg.LogEvery == 0 {
		log.Printf("[run %s] step %d: driving=%d arrived=%d waiting=%d jams=%d",
			co.runID, co.step, driving, arrived, waiting, co.jams.ActiveJams())
	}
	if co.cfg.SleepMs > 0 {
		time.Sleep(time.Duration(co.cfg.SleepMs) * time.Millisecond)
	}
}

func (co *Coordinator) tally() (driving, arrived, waiting int) {
	for _, c := range co.cars {
		switch c.State {
		case StateDriving:
			driving++
		case StateArrived:
			arrived++
		default:
			waiting++
		}
	}
	return driving, arrived, waiting
}
