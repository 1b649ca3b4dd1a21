// Package sim contains the simulation core: the car agent state machine,
// the per-step rendezvous barrier and the coordinator that advances the
// shared jam/occupancy model between steps.
package sim

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/sanonone/routesim/internal/config"
	"github.com/sanonone/routesim/internal/graph"
	"github.com/sanonone/routesim/internal/jam"
	"github.com/sanonone/routesim/internal/protocol"
	"github.com/sanonone/routesim/pkg/metrics"
)

// CarState is the agent lifecycle state.
type CarState int

const (
	StateWaiting CarState = iota // waiting for a route
	StateDriving
	StateArrived
)

func (s CarState) String() string {
	switch s {
	case StateWaiting:
		return "WAITING_FOR_ROUTE"
	case StateDriving:
		return "DRIVING"
	case StateArrived:
		return "ARRIVED"
	default:
		return fmt.Sprintf("CarState(%d)", int(s))
	}
}

// seedOffset spaces per-car seeds away from the run seed.
const seedOffset = 1000

// Car is one simulated vehicle. It owns its transport connection
// exclusively and is only ever mutated by its own Step calls; the
// coordinator reads it at step boundaries while the car is parked at the
// barrier.
type Car struct {
	ID     int
	UserID int

	State            CarState
	Route            []int
	CurrentEdgeIndex int
	PositionOnEdge   float64
	Speed            float64

	TotalDriveSteps int
	TotalWaitSteps  int
	ArrivalStep     int // step of the most recent arrival, -1 if never
	Src             int
	Dst             int

	desiredSpeed float64
	speedHold    int
	cooldown     int

	cfg       config.Config
	catalog   *graph.Catalog
	jams      *jam.Model
	transport protocol.Transport
	rnd       *rand.Rand
}

// NewCar creates a car with its own deterministic random source derived
// from the run seed. The transport is attached later by the coordinator,
// once the connection is established.
func NewCar(id int, cfg config.Config, catalog *graph.Catalog, jams *jam.Model) *Car {
	return &Car{
		ID:          id,
		UserID:      id,
		State:       StateWaiting,
		ArrivalStep: -1,
		cfg:         cfg,
		catalog:     catalog,
		jams:        jams,
		rnd:         rand.New(rand.NewSource(cfg.Seed + seedOffset + int64(id))),
	}
}

// CurrentEdge returns the edge id the car is on, if it has one.
func (c *Car) CurrentEdge() (int, bool) {
	if c.CurrentEdgeIndex >= len(c.Route) {
		return 0, false
	}
	return c.Route[c.CurrentEdgeIndex], true
}

// Arrived reports whether the car has completed at least one route.
func (c *Car) Arrived() bool { return c.ArrivalStep >= 0 }

// Step executes one simulated tick for the car. A returned error is a
// transport-level failure and permanently ends this car's participation;
// protocol rejections never surface here.
func (c *Car) Step(step int) error {
	if c.cooldown > 0 {
		c.cooldown--
	}

	if (c.State == StateWaiting || c.State == StateArrived) && c.cooldown == 0 {
		if err := c.acquireRoute(); err != nil {
			return err
		}
	}

	if c.State == StateDriving {
		if err := c.drive(step); err != nil {
			return err
		}
	}

	if c.speedHold > 0 {
		c.speedHold--
	}

	if c.State == StateDriving {
		c.TotalDriveSteps++
	} else {
		c.TotalWaitSteps++
	}
	return nil
}

// acquireRoute draws a fresh source/destination pair and asks the server
// for a route. An explicit no-route reply parks the car in waiting with
// the reroute cooldown; adopting a route applies the route cooldown.
func (c *Car) acquireRoute() error {
	src := c.rnd.Intn(max(1, c.catalog.NumNodes()))
	dst := c.pickDst(src)

	start := time.Now()
	route, err := c.transport.RequestRoute(src, dst)
	metrics.RouteRequestDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.RouteRequests.WithLabelValues("ok").Inc()
		c.adoptRoute(route.Edges, src, dst)
		c.cooldown = c.cfg.RouteCooldown
		return nil
	case errors.Is(err, protocol.ErrNoRoute):
		metrics.RouteRequests.WithLabelValues("no_route").Inc()
		c.State = StateWaiting
		c.cooldown = c.cfg.RerouteCooldown
		return nil
	default:
		metrics.RouteRequests.WithLabelValues("failed").Inc()
		return fmt.Errorf("car %d: route request failed: %w", c.ID, err)
	}
}

func (c *Car) adoptRoute(edges []int, src, dst int) {
	c.Route = edges
	c.CurrentEdgeIndex = 0
	c.PositionOnEdge = 0
	c.Src = src
	c.Dst = dst
	if len(edges) > 0 {
		c.State = StateDriving
	} else {
		c.State = StateWaiting
	}
}

func (c *Car) pickDst(src int) int {
	n := c.catalog.NumNodes()
	if n <= 1 {
		return src
	}
	dst := src
	for dst == src {
		dst = c.rnd.Intn(n)
	}
	return dst
}

// drive advances a DRIVING car along its current edge for one tick.
func (c *Car) drive(step int) error {
	if c.CurrentEdgeIndex >= len(c.Route) {
		c.State = StateArrived
		return nil
	}
	edgeID := c.Route[c.CurrentEdgeIndex]
	edge, ok := c.catalog.Edge(edgeID)
	if !ok {
		// The server handed out an edge the catalog does not know.
		c.State = StateWaiting
		return nil
	}

	if c.cfg.RerouteEvery > 0 && step > 0 && step%c.cfg.RerouteEvery == 0 {
		c.refreshRoute(edge)
	}

	c.jams.MaybeStartJam(edgeID, c.rnd)
	factor := c.jams.Factor(edgeID)

	if c.speedHold <= 0 {
		c.desiredSpeed = edge.SpeedLimit * uniform(c.rnd, c.cfg.MinSpeedFactor, c.cfg.MaxSpeedFactor)
		c.speedHold = c.cfg.SpeedHoldMin + c.rnd.Intn(c.cfg.SpeedHoldMax-c.cfg.SpeedHoldMin+1)
	}
	speed := math.Max(0.1, c.desiredSpeed*factor)
	if speed > edge.SpeedLimit {
		speed = edge.SpeedLimit
	}
	c.Speed = speed

	if edge.Length <= 0 {
		c.PositionOnEdge = 1.0
	} else {
		c.PositionOnEdge += speed * c.cfg.Dt / edge.Length
	}

	if c.cfg.ReportEvery > 0 && step%c.cfg.ReportEvery == 0 {
		if err := c.transport.ReportTraffic(edgeID, speed, c.PositionOnEdge); err != nil {
			return fmt.Errorf("car %d: traffic report failed: %w", c.ID, err)
		}
		metrics.TrafficReports.Inc()
	}

	for c.PositionOnEdge >= 1.0 && c.State == StateDriving {
		c.PositionOnEdge -= 1.0
		c.CurrentEdgeIndex++
		if c.CurrentEdgeIndex >= len(c.Route) {
			c.State = StateArrived
			c.cooldown = c.cfg.ArrivalCooldown
			c.ArrivalStep = step
			log.Printf("step %d: car %d arrived %d->%d", step, c.ID, c.Src, c.Dst)
			break
		}
	}
	return nil
}

// refreshRoute asks for a fresh route from the node reached after the
// current edge to the same destination and splices it in after the
// current edge. Every failure, transport or protocol, keeps the existing
// route.
func (c *Car) refreshRoute(current graph.Edge) {
	route, err := c.transport.RequestRoute(current.To, c.Dst)
	if err != nil || len(route.Edges) == 0 {
		return
	}
	c.Route = append(c.Route[:c.CurrentEdgeIndex+1], route.Edges...)
}

func uniform(rnd *rand.Rand, lo, hi float64) float64 {
	return lo + rnd.Float64()*(hi-lo)
}
