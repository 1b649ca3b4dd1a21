package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// JSONClient speaks the structured protocol: one JSON object per line in
// each direction. Replies must echo the requesting user/car identifiers;
// a mismatch is treated as a malformed response.
type JSONClient struct {
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	timeout time.Duration

	userID int
	carID  int
	now    func() time.Time
}

type jsonRouteRequest struct {
	UserID          int   `json:"user_id"`
	CarID           int   `json:"car_id"`
	StartNode       int   `json:"start_node"`
	DestinationNode int   `json:"destination_node"`
	Timestamp       int64 `json:"timestamp"`
}

type jsonRouteReply struct {
	UserID     int     `json:"user_id"`
	CarID      int     `json:"car_id"`
	RouteEdges []int   `json:"route_edges"`
	ETA        float64 `json:"eta"`
	Error      string  `json:"error,omitempty"`
}

type jsonTrafficReport struct {
	UserID         int     `json:"user_id"`
	CarID          int     `json:"car_id"`
	Timestamp      int64   `json:"timestamp"`
	EdgeID         int     `json:"edge_id"`
	PositionOnEdge float64 `json:"position_on_edge"`
	Speed          float64 `json:"speed"`
}

type jsonAckReply struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DialJSON connects to addr and returns a structured-protocol client
// bound to one user/car identity.
func DialJSON(addr string, userID, carID int, timeout time.Duration) (*JSONClient, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}
	return NewJSONClient(conn, userID, carID, timeout), nil
}

// NewJSONClient wraps an established connection.
func NewJSONClient(conn net.Conn, userID, carID int, timeout time.Duration) *JSONClient {
	return &JSONClient{
		conn:    conn,
		r:       bufio.NewReader(conn),
		w:       bufio.NewWriter(conn),
		timeout: timeout,
		userID:  userID,
		carID:   carID,
		now:     time.Now,
	}
}

func (c *JSONClient) Close() error { return c.conn.Close() }

// exchange marshals one request object, sends it as a single line and
// unmarshals the single reply line into out.
func (c *JSONClient) exchange(req, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("failed to set deadline: %w", err)
		}
	}
	if _, err := c.w.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}
	if err := json.Unmarshal(line, out); err != nil {
		return &ParseError{Msg: "invalid JSON reply", Line: string(line)}
	}
	return nil
}

func (c *JSONClient) RequestRoute(src, dst int) (*Route, error) {
	req := jsonRouteRequest{
		UserID:          c.userID,
		CarID:           c.carID,
		StartNode:       src,
		DestinationNode: dst,
		Timestamp:       c.now().Unix(),
	}
	var reply jsonRouteReply
	if err := c.exchange(req, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, reply.Error)
	}
	if reply.UserID != c.userID || reply.CarID != c.carID {
		return nil, &ParseError{
			Msg:  fmt.Sprintf("identity echo mismatch: got user=%d car=%d", reply.UserID, reply.CarID),
			Line: fmt.Sprintf("want user=%d car=%d", c.userID, c.carID),
		}
	}
	return &Route{ETA: reply.ETA, Edges: reply.RouteEdges}, nil
}

func (c *JSONClient) ReportTraffic(edgeID int, speed, position float64) error {
	req := jsonTrafficReport{
		UserID:         c.userID,
		CarID:          c.carID,
		Timestamp:      c.now().Unix(),
		EdgeID:         edgeID,
		PositionOnEdge: position,
		Speed:          speed,
	}
	var reply jsonAckReply
	if err := c.exchange(req, &reply); err != nil {
		return err
	}
	// Explicit rejections are fire-and-forget from the agent's side.
	if reply.Status == "ACK" || reply.Error != "" {
		return nil
	}
	return &ParseError{Msg: "missing ack status", Line: reply.Status}
}

// PredictTravel exists only on the line protocol.
func (c *JSONClient) PredictTravel(edgeID int) (float64, error) {
	return 0, ErrUnsupported
}
