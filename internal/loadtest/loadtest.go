// Package loadtest drives a routing server with concurrent REQ/UPD/PRED
// clients and collects latency statistics. It is a standalone tool for
// sizing the server, separate from the simulation core.
package loadtest

import (
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sanonone/routesim/internal/protocol"
)

// Options configure one load run.
type Options struct {
	Addr    string
	Timeout time.Duration

	// Graph dimensions, taken from graph.meta of the served graph.
	NumNodes int
	NumEdges int

	ReqClients  int
	UpdClients  int
	PredClients int

	ReqRounds  int
	UpdRounds  int
	PredRounds int

	// ThinkMs sleeps between commands on each client.
	ThinkMs int
	Seed    int64
}

// Report aggregates the per-command-type statistics of a run.
type Report struct {
	Req     *Stats
	Upd     *Stats
	Pred    *Stats
	Elapsed time.Duration
}

// Run executes the load test and blocks until every client is done. A
// client that cannot connect fails the whole run; per-command errors are
// recorded in the stats instead.
func Run(opts Options) (*Report, error) {
	if (opts.UpdClients > 0 || opts.PredClients > 0) && opts.NumEdges <= 0 {
		return nil, fmt.Errorf("UPD/PRED clients need a positive edge count")
	}

	report := &Report{Req: NewStats(), Upd: NewStats(), Pred: NewStats()}
	start := time.Now()

	var g errgroup.Group
	for i := 0; i < opts.ReqClients; i++ {
		rnd := rand.New(rand.NewSource(opts.Seed + 1000 + int64(i)))
		g.Go(func() error { return worker(opts, "REQ", report.Req, rnd, opts.ReqRounds, reqOp) })
	}
	for i := 0; i < opts.UpdClients; i++ {
		rnd := rand.New(rand.NewSource(opts.Seed + 2000 + int64(i)))
		g.Go(func() error { return worker(opts, "UPD", report.Upd, rnd, opts.UpdRounds, updOp) })
	}
	for i := 0; i < opts.PredClients; i++ {
		rnd := rand.New(rand.NewSource(opts.Seed + 3000 + int64(i)))
		g.Go(func() error { return worker(opts, "PRED", report.Pred, rnd, opts.PredRounds, predOp) })
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// op issues one random command on the client.
type op func(c *protocol.LineClient, opts Options, rnd *rand.Rand) error

func reqOp(c *protocol.LineClient, opts Options, rnd *rand.Rand) error {
	src := rnd.Intn(max(1, opts.NumNodes))
	dst := rnd.Intn(max(1, opts.NumNodes))
	_, err := c.RequestRoute(src, dst)
	return err
}

func updOp(c *protocol.LineClient, opts Options, rnd *rand.Rand) error {
	edgeID := rnd.Intn(opts.NumEdges)
	speed := 1.0 + rnd.Float64()*29.0
	return c.ReportTraffic(edgeID, speed, rnd.Float64())
}

func predOp(c *protocol.LineClient, opts Options, rnd *rand.Rand) error {
	_, err := c.PredictTravel(rnd.Intn(opts.NumEdges))
	return err
}

func worker(opts Options, name string, stats *Stats, rnd *rand.Rand, rounds int, issue op) error {
	c, err := protocol.DialLine(opts.Addr, opts.Timeout)
	if err != nil {
		return fmt.Errorf("%s client connect: %w", name, err)
	}
	defer c.Close()

	for i := 0; i < rounds; i++ {
		start := time.Now()
		err := issue(c, opts, rnd)
		o := outcomeOf(err)
		stats.Record(time.Since(start), o)
		// Rejections leave the connection healthy; anything else worse
		// than OK means it is gone and this client is done.
		if o != outcomeOK && o != outcomeRejected {
			return nil
		}
		if opts.ThinkMs > 0 {
			time.Sleep(time.Duration(opts.ThinkMs) * time.Millisecond)
		}
	}
	return nil
}
