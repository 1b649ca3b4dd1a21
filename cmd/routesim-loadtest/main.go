package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sanonone/routesim/internal/graph"
	"github.com/sanonone/routesim/internal/loadtest"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "Routing server address")
	timeout := flag.Duration("timeout", 3*time.Second, "Per-command transport timeout")
	graphDir := flag.String("graph-dir", "data", "Graph directory with graph.meta and edges.csv")

	reqClients := flag.Int("req-clients", 32, "Concurrent REQ clients")
	updClients := flag.Int("upd-clients", 8, "Concurrent UPD clients")
	predClients := flag.Int("pred-clients", 0, "Concurrent PRED clients")

	reqRounds := flag.Int("req-rounds", 50, "REQ commands per REQ client")
	updRounds := flag.Int("upd-rounds", 100, "UPD commands per UPD client")
	predRounds := flag.Int("pred-rounds", 50, "PRED commands per PRED client")

	thinkMs := flag.Int("think-ms", 0, "Sleep between commands per client")
	seed := flag.Int64("seed", 1, "Seed for the per-client random sources")

	flag.Parse()

	catalog, err := graph.Load(*graphDir)
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}

	fmt.Printf("Target: %s\n", *addr)
	fmt.Printf("Clients: REQ=%d (x%d), UPD=%d (x%d), PRED=%d (x%d)\n",
		*reqClients, *reqRounds, *updClients, *updRounds, *predClients, *predRounds)
	fmt.Printf("Graph: nodes=%d, edges=%d\n\n", catalog.NumNodes(), catalog.NumEdges())

	report, err := loadtest.Run(loadtest.Options{
		Addr:        *addr,
		Timeout:     *timeout,
		NumNodes:    catalog.NumNodes(),
		NumEdges:    catalog.NumEdges(),
		ReqClients:  *reqClients,
		UpdClients:  *updClients,
		PredClients: *predClients,
		ReqRounds:   *reqRounds,
		UpdRounds:   *updRounds,
		PredRounds:  *predRounds,
		ThinkMs:     *thinkMs,
		Seed:        *seed,
	})
	if err != nil {
		log.Fatalf("Load test failed: %v", err)
	}

	fmt.Println(report)
	if !report.Passed() {
		log.Fatal("FAIL: some commands had unexpected failures")
	}
	fmt.Println("\nPASS: completed load run with no unexpected failures")
}
