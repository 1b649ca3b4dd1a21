// Package protocol implements the client side of the routing/traffic
// server contract. Two incompatible wire encodings exist — a line-oriented
// text protocol and a JSON-object-per-line protocol — behind a single
// Transport interface so the rest of the simulation never knows which one
// a run is using.
package protocol

import (
	"errors"
	"fmt"
)

// Route is a route response: an ordered edge id sequence plus the server's
// ETA. Nodes is only populated by the line protocol's ROUTE2 form. A route
// with zero edges is only meaningful when source equals destination.
type Route struct {
	ETA   float64
	Nodes []int
	Edges []int
}

// ErrNoRoute is the explicit protocol-level rejection of a route request.
// It is a normal outcome, not a transport failure: callers fall back to
// waiting and retry later.
var ErrNoRoute = errors.New("no route")

// ErrUnsupported is returned for operations a transport does not carry
// (PRED exists only on the line protocol).
var ErrUnsupported = errors.New("operation not supported by transport")

// ParseError marks a structurally invalid response: declared element
// counts that do not match the payload, identifier echoes that do not
// match the request, or fields that fail to parse. It is treated like a
// transport failure by callers.
type ParseError struct {
	Msg  string
	Line string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed response (%s): %q", e.Msg, e.Line)
}

// Transport is one agent's exclusive channel to the routing server. It is
// not safe for concurrent use; every car owns exactly one for its
// lifetime and never reconnects after a failure.
type Transport interface {
	// RequestRoute asks for a route from src to dst. ErrNoRoute signals
	// an explicit rejection; any other error is fatal for the connection.
	RequestRoute(src, dst int) (*Route, error)

	// ReportTraffic sends a position/speed report for an edge. A server
	// rejection is swallowed; only transport or parse failures surface.
	ReportTraffic(edgeID int, speed, position float64) error

	// PredictTravel asks for the predicted travel time of an edge in
	// seconds. Transports without the query return ErrUnsupported.
	PredictTravel(edgeID int) (float64, error)

	Close() error
}
