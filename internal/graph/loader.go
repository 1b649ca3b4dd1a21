package graph

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Load reads a graph directory containing graph.meta and edges.csv.
//
// graph.meta is "key value" lines; num_nodes and num_edges are required.
// edges.csv has a header row with edge_id, from_node, to_node,
// base_length and base_speed_limit columns.
func Load(dir string) (*Catalog, error) {
	numNodes, numEdges, err := loadMeta(filepath.Join(dir, "graph.meta"))
	if err != nil {
		return nil, err
	}

	edges, err := loadEdges(filepath.Join(dir, "edges.csv"))
	if err != nil {
		return nil, err
	}
	if numEdges != len(edges) {
		return nil, fmt.Errorf("graph %s: meta declares %d edges, edges.csv has %d", dir, numEdges, len(edges))
	}

	return NewCatalog(numNodes, edges), nil
}

func loadMeta(path string) (numNodes, numEdges int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open graph meta: %w", err)
	}
	defer f.Close()

	numNodes, numEdges = -1, -1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "num_nodes", "num_edges":
		default:
			continue
		}
		v, convErr := strconv.Atoi(parts[1])
		if convErr != nil {
			return 0, 0, fmt.Errorf("invalid %s value %q in %s", parts[0], parts[1], path)
		}
		if parts[0] == "num_nodes" {
			numNodes = v
		} else {
			numEdges = v
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to read graph meta: %w", err)
	}
	if numNodes < 0 || numEdges < 0 {
		return 0, 0, fmt.Errorf("invalid graph meta %s: num_nodes and num_edges are required", path)
	}
	return numNodes, numEdges, nil
}

func loadEdges(path string) ([]Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open edges file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("edges file %s is empty", path)
	}

	// Column positions come from the header row, not fixed offsets.
	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"edge_id", "from_node", "to_node", "base_length", "base_speed_limit"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("edges file %s: missing column %q", path, name)
		}
	}

	edges := make([]Edge, 0, len(rows)-1)
	for i, row := range rows[1:] {
		e, err := parseEdgeRow(row, col)
		if err != nil {
			return nil, fmt.Errorf("edges file %s row %d: %w", path, i+2, err)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func parseEdgeRow(row []string, col map[string]int) (Edge, error) {
	intField := func(name string) (int, error) {
		idx := col[name]
		if idx >= len(row) {
			return 0, fmt.Errorf("missing field %s", name)
		}
		return strconv.Atoi(strings.TrimSpace(row[idx]))
	}
	floatField := func(name string) (float64, error) {
		idx := col[name]
		if idx >= len(row) {
			return 0, fmt.Errorf("missing field %s", name)
		}
		return strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
	}

	var e Edge
	var err error
	if e.ID, err = intField("edge_id"); err != nil {
		return Edge{}, fmt.Errorf("bad edge_id: %w", err)
	}
	if e.From, err = intField("from_node"); err != nil {
		return Edge{}, fmt.Errorf("bad from_node: %w", err)
	}
	if e.To, err = intField("to_node"); err != nil {
		return Edge{}, fmt.Errorf("bad to_node: %w", err)
	}
	if e.Length, err = floatField("base_length"); err != nil {
		return Edge{}, fmt.Errorf("bad base_length: %w", err)
	}
	if e.SpeedLimit, err = floatField("base_speed_limit"); err != nil {
		return Edge{}, fmt.Errorf("bad base_speed_limit: %w", err)
	}
	return e, nil
}
