package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanonone/routesim/internal/config"
	"github.com/sanonone/routesim/internal/graph"
	"github.com/sanonone/routesim/internal/protocol"
	"github.com/sanonone/routesim/internal/sim"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	addr := flag.String("addr", "", "Routing server address (overrides config)")
	graphDir := flag.String("graph-dir", "", "Graph directory with graph.meta and edges.csv (overrides config)")
	proto := flag.String("protocol", "", "Wire protocol: line or json (overrides config)")
	cars := flag.Int("cars", 0, "Number of car agents (overrides config)")
	steps := flag.Int("steps", 0, "Number of simulation steps (overrides config)")
	seed := flag.Int64("seed", 0, "Run seed (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint (disabled when empty)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *graphDir != "" {
		cfg.GraphDir = *graphDir
	}
	if *proto != "" {
		cfg.Protocol = *proto
	}
	if *cars > 0 {
		cfg.Cars = *cars
	}
	if *steps > 0 {
		cfg.Steps = *steps
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	catalog, err := graph.Load(cfg.GraphDir)
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}
	log.Printf("Loaded graph: %d nodes, %d edges", catalog.NumNodes(), catalog.NumEdges())

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("Metrics endpoint failed: %v", err)
			}
		}()
		log.Printf("Metrics available on %s/metrics", *metricsAddr)
	}

	coordinator := sim.NewCoordinator(cfg, catalog, transportFactory(cfg))

	// Ctrl+C releases every car from the rendezvous instead of leaving
	// the fleet mid-step.
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdownChan
		coordinator.Abort(fmt.Errorf("interrupted by signal %v", sig))
	}()

	runErr := coordinator.Run()
	fmt.Println(coordinator.Summarize())

	if runErr != nil {
		log.Fatalf("Run failed: %v", runErr)
	}
}

// transportFactory binds the configured protocol to per-car connections.
func transportFactory(cfg config.Config) sim.TransportFactory {
	if cfg.Protocol == "json" {
		return func(carID int) (protocol.Transport, error) {
			return protocol.DialJSON(cfg.Addr, carID, carID, cfg.Timeout)
		}
	}
	return func(carID int) (protocol.Transport, error) {
		return protocol.DialLine(cfg.Addr, cfg.Timeout)
	}
}
