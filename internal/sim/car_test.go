package sim

import (
	"errors"
	"sync"
	"testing"

	"github.com/sanonone/routesim/internal/config"
	"github.com/sanonone/routesim/internal/graph"
	"github.com/sanonone/routesim/internal/jam"
	"github.com/sanonone/routesim/internal/protocol"
)

// stubTransport is an in-memory Transport with scriptable behavior. Each
// car owns its own stub, mirroring the one-connection-per-car rule.
type stubTransport struct {
	mu       sync.Mutex
	routeFn  func(src, dst int) (*protocol.Route, error)
	reportFn func(edgeID int, speed, position float64) error

	requests [][2]int
	reports  []int
}

func (s *stubTransport) RequestRoute(src, dst int) (*protocol.Route, error) {
	s.mu.Lock()
	s.requests = append(s.requests, [2]int{src, dst})
	s.mu.Unlock()
	if s.routeFn == nil {
		return nil, protocol.ErrNoRoute
	}
	return s.routeFn(src, dst)
}

func (s *stubTransport) ReportTraffic(edgeID int, speed, position float64) error {
	s.mu.Lock()
	s.reports = append(s.reports, edgeID)
	s.mu.Unlock()
	if s.reportFn == nil {
		return nil
	}
	return s.reportFn(edgeID, speed, position)
}

func (s *stubTransport) PredictTravel(edgeID int) (float64, error) {
	return 0, protocol.ErrUnsupported
}

func (s *stubTransport) Close() error { return nil }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Cars = 1
	cfg.Steps = 20
	cfg.ReportEvery = 0
	cfg.LogEvery = 0
	cfg.RouteCooldown = 0
	cfg.RerouteCooldown = 3
	cfg.ArrivalCooldown = 5
	cfg.RerouteEvery = 0
	cfg.JamProb = 0
	cfg.JamMinCars = 999 // jams stay out of the way unless a test wants them
	return cfg
}

func newTestCar(cfg config.Config, catalog *graph.Catalog, tr protocol.Transport) *Car {
	jams := jam.NewModel(jam.Config{
		Probability: cfg.JamProb,
		MinFactor:   cfg.JamMinFactor,
		MaxFactor:   cfg.JamMaxFactor,
		MinSteps:    cfg.JamMinSteps,
		MaxSteps:    cfg.JamMaxSteps,
		MinCars:     cfg.JamMinCars,
	})
	c := NewCar(0, cfg, catalog, jams)
	c.transport = tr
	return c
}

func TestSingleNodeGraphNeverDrives(t *testing.T) {
	catalog := graph.NewCatalog(1, nil)
	tr := &stubTransport{
		routeFn: func(src, dst int) (*protocol.Route, error) {
			if src != dst {
				t.Errorf("single-node graph produced src=%d dst=%d", src, dst)
			}
			return &protocol.Route{}, nil // empty route, src == dst
		},
	}
	c := newTestCar(testConfig(), catalog, tr)

	for step := 0; step < 20; step++ {
		if err := c.Step(step); err != nil {
			t.Fatalf("step %d failed: %v", step, err)
		}
		if c.State == StateDriving {
			t.Fatalf("step %d: car is driving on a single-node graph", step)
		}
	}
	if c.TotalDriveSteps != 0 {
		t.Errorf("total_drive_steps: got %d, want 0", c.TotalDriveSteps)
	}
	if c.TotalWaitSteps != 20 {
		t.Errorf("total_wait_steps: got %d, want 20", c.TotalWaitSteps)
	}
}

func TestZeroLengthEdgeTraversedSameStep(t *testing.T) {
	catalog := graph.NewCatalog(2, []graph.Edge{
		{ID: 0, From: 0, To: 1, Length: 0, SpeedLimit: 10},
	})
	tr := &stubTransport{
		routeFn: func(src, dst int) (*protocol.Route, error) {
			return &protocol.Route{Edges: []int{0}}, nil
		},
	}
	c := newTestCar(testConfig(), catalog, tr)

	if err := c.Step(0); err != nil {
		t.Fatal(err)
	}
	if c.State != StateArrived {
		t.Fatalf("state after zero-length edge: got %v, want ARRIVED", c.State)
	}
	if c.ArrivalStep != 0 {
		t.Errorf("arrival_step: got %d, want 0", c.ArrivalStep)
	}
}

func TestPositionStaysNormalizedWhileDriving(t *testing.T) {
	// Full speed on short edges crosses two edges per step; the
	// normalization loop must still leave position in [0,1).
	catalog := graph.NewCatalog(2, []graph.Edge{
		{ID: 0, From: 0, To: 1, Length: 5, SpeedLimit: 10},
	})
	cfg := testConfig()
	cfg.MinSpeedFactor = 1.0
	cfg.MaxSpeedFactor = 1.0
	tr := &stubTransport{
		routeFn: func(src, dst int) (*protocol.Route, error) {
			return &protocol.Route{Edges: []int{0, 0, 0, 0, 0}}, nil
		},
	}
	c := newTestCar(cfg, catalog, tr)

	for step := 0; step < 10; step++ {
		if err := c.Step(step); err != nil {
			t.Fatal(err)
		}
		if c.State == StateDriving && (c.PositionOnEdge < 0 || c.PositionOnEdge >= 1.0) {
			t.Fatalf("step %d: position %g out of [0,1)", step, c.PositionOnEdge)
		}
	}
}

func TestNoRouteAppliesRerouteCooldown(t *testing.T) {
	catalog := graph.NewCatalog(4, nil)
	tr := &stubTransport{} // always ErrNoRoute
	c := newTestCar(testConfig(), catalog, tr)

	for step := 0; step < 8; step++ {
		if err := c.Step(step); err != nil {
			t.Fatal(err)
		}
	}
	// Cooldown 3: requests land on steps 0, 3 and 6.
	if got := len(tr.requests); got != 3 {
		t.Errorf("route requests in 8 steps: got %d, want 3", got)
	}
	if c.State != StateWaiting {
		t.Errorf("state: got %v, want WAITING_FOR_ROUTE", c.State)
	}
}

func TestTransportFailureIsFatal(t *testing.T) {
	catalog := graph.NewCatalog(4, nil)
	boom := errors.New("connection reset")
	tr := &stubTransport{
		routeFn: func(src, dst int) (*protocol.Route, error) { return nil, boom },
	}
	c := newTestCar(testConfig(), catalog, tr)

	err := c.Step(0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the transport error to surface, got %v", err)
	}
}

func TestReportCadence(t *testing.T) {
	catalog := graph.NewCatalog(2, []graph.Edge{
		{ID: 0, From: 0, To: 1, Length: 1e6, SpeedLimit: 10},
	})
	cfg := testConfig()
	cfg.ReportEvery = 2
	tr := &stubTransport{
		routeFn: func(src, dst int) (*protocol.Route, error) {
			return &protocol.Route{Edges: []int{0}}, nil
		},
	}
	c := newTestCar(cfg, catalog, tr)

	for step := 0; step < 6; step++ {
		if err := c.Step(step); err != nil {
			t.Fatal(err)
		}
	}
	// Reports land on steps 0, 2 and 4.
	if got := len(tr.reports); got != 3 {
		t.Errorf("reports in 6 steps: got %d, want 3", got)
	}
}

func TestReportFailureIsFatal(t *testing.T) {
	catalog := graph.NewCatalog(2, []graph.Edge{
		{ID: 0, From: 0, To: 1, Length: 1e6, SpeedLimit: 10},
	})
	cfg := testConfig()
	cfg.ReportEvery = 1
	boom := errors.New("broken pipe")
	tr := &stubTransport{
		routeFn: func(src, dst int) (*protocol.Route, error) {
			return &protocol.Route{Edges: []int{0}}, nil
		},
		reportFn: func(edgeID int, speed, position float64) error { return boom },
	}
	c := newTestCar(cfg, catalog, tr)

	if err := c.Step(0); !errors.Is(err, boom) {
		t.Fatalf("expected the report failure to surface, got %v", err)
	}
}

func TestPeriodicRerouteSplicesRoute(t *testing.T) {
	catalog := graph.NewCatalog(4, []graph.Edge{
		{ID: 0, From: 0, To: 1, Length: 1e6, SpeedLimit: 10},
		{ID: 1, From: 1, To: 2, Length: 1e6, SpeedLimit: 10},
		{ID: 2, From: 2, To: 3, Length: 1e6, SpeedLimit: 10},
	})
	cfg := testConfig()
	cfg.RerouteEvery = 2

	tr := &stubTransport{}
	tr.routeFn = func(src, dst int) (*protocol.Route, error) {
		if len(tr.requests) == 1 {
			return &protocol.Route{Edges: []int{0, 1, 2}}, nil
		}
		// Refresh request starts from the node after the current edge.
		if src != 1 {
			t.Errorf("refresh requested from node %d, want 1", src)
		}
		return &protocol.Route{Edges: []int{7, 8}}, nil
	}
	c := newTestCar(cfg, catalog, tr)

	for step := 0; step < 3; step++ {
		if err := c.Step(step); err != nil {
			t.Fatal(err)
		}
	}
	want := []int{0, 7, 8}
	if len(c.Route) != len(want) {
		t.Fatalf("route after splice: got %v, want %v", c.Route, want)
	}
	for i := range want {
		if c.Route[i] != want[i] {
			t.Fatalf("route after splice: got %v, want %v", c.Route, want)
		}
	}
}

func TestPeriodicRerouteFailureKeepsRoute(t *testing.T) {
	catalog := graph.NewCatalog(4, []graph.Edge{
		{ID: 0, From: 0, To: 1, Length: 1e6, SpeedLimit: 10},
		{ID: 1, From: 1, To: 2, Length: 1e6, SpeedLimit: 10},
		{ID: 2, From: 2, To: 3, Length: 1e6, SpeedLimit: 10},
	})
	cfg := testConfig()
	cfg.RerouteEvery = 2

	tr := &stubTransport{}
	tr.routeFn = func(src, dst int) (*protocol.Route, error) {
		if len(tr.requests) == 1 {
			return &protocol.Route{Edges: []int{0, 1, 2}}, nil
		}
		return nil, errors.New("connection reset")
	}
	c := newTestCar(cfg, catalog, tr)

	for step := 0; step < 3; step++ {
		if err := c.Step(step); err != nil {
			t.Fatalf("a reroute failure must not surface: %v", err)
		}
	}
	if len(c.Route) != 3 {
		t.Fatalf("route after failed refresh: got %v, want the original 3 edges", c.Route)
	}
}

func TestUnknownEdgeReturnsToWaiting(t *testing.T) {
	catalog := graph.NewCatalog(2, nil)
	tr := &stubTransport{
		routeFn: func(src, dst int) (*protocol.Route, error) {
			return &protocol.Route{Edges: []int{42}}, nil
		},
	}
	c := newTestCar(testConfig(), catalog, tr)

	if err := c.Step(0); err != nil {
		t.Fatal(err)
	}
	if c.State != StateWaiting {
		t.Fatalf("state after unknown edge: got %v, want WAITING_FOR_ROUTE", c.State)
	}
}
