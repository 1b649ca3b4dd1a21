package protocol

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// LineClient speaks the line-oriented text protocol: one ASCII command per
// line out, one reply line back.
//
//	REQ <src> <dst>              -> ROUTE <eta> <n> <edges...>
//	                              | ROUTE2 <eta> <n> <nodes...> <m> <edges...>
//	                              | ERR <reason>
//	UPD <edge> <speed> [<pos>]   -> ACK | ERR <reason>
//	PRED <edge>                  -> PRED <edge> <seconds>
type LineClient struct {
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	timeout time.Duration
}

// DialLine connects to addr and returns a line-protocol client. timeout
// bounds the dial and every subsequent exchange; zero disables deadlines.
func DialLine(addr string, timeout time.Duration) (*LineClient, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}
	return NewLineClient(conn, timeout), nil
}

// NewLineClient wraps an established connection. Useful for tests that
// drive the client over a pipe.
func NewLineClient(conn net.Conn, timeout time.Duration) *LineClient {
	return &LineClient{
		conn:    conn,
		r:       bufio.NewReader(conn),
		w:       bufio.NewWriter(conn),
		timeout: timeout,
	}
}

func (c *LineClient) Close() error { return c.conn.Close() }

// exchange sends one command line and reads exactly one reply line.
func (c *LineClient) exchange(line string) (string, error) {
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return "", fmt.Errorf("failed to set deadline: %w", err)
		}
	}
	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return "", fmt.Errorf("write failed: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return "", fmt.Errorf("write failed: %w", err)
	}
	resp, err := c.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read failed: %w", err)
	}
	return strings.TrimSpace(resp), nil
}

func (c *LineClient) RequestRoute(src, dst int) (*Route, error) {
	resp, err := c.exchange(fmt.Sprintf("REQ %d %d", src, dst))
	if err != nil {
		return nil, err
	}
	if reason, ok := strings.CutPrefix(resp, "ERR "); ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, reason)
	}
	return parseRoute(resp)
}

// parseRoute decodes a ROUTE or ROUTE2 reply, verifying that every
// declared element count matches the actual payload.
func parseRoute(resp string) (*Route, error) {
	parts := strings.Fields(resp)
	if len(parts) < 3 {
		return nil, &ParseError{Msg: "not a ROUTE response", Line: resp}
	}

	eta, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, &ParseError{Msg: "bad eta", Line: resp}
	}
	route := &Route{ETA: eta}

	rest := parts[2:]
	switch parts[0] {
	case "ROUTE2":
		nodes, remaining, err := parseCounted(rest, resp)
		if err != nil {
			return nil, err
		}
		route.Nodes = nodes
		rest = remaining
		if len(rest) == 0 {
			return nil, &ParseError{Msg: "missing edge count", Line: resp}
		}
		fallthrough
	case "ROUTE":
		edges, remaining, err := parseCounted(rest, resp)
		if err != nil {
			return nil, err
		}
		if len(remaining) != 0 {
			return nil, &ParseError{Msg: "trailing fields", Line: resp}
		}
		route.Edges = edges
		return route, nil
	default:
		return nil, &ParseError{Msg: "not a ROUTE response", Line: resp}
	}
}

// parseCounted reads "<count> <id>..." from parts, consuming exactly
// count ids. A declared count that does not match the available ids is a
// parse error.
func parseCounted(parts []string, line string) ([]int, []string, error) {
	count, err := strconv.Atoi(parts[0])
	if err != nil || count < 0 {
		return nil, nil, &ParseError{Msg: "bad element count", Line: line}
	}
	if count > len(parts)-1 {
		return nil, nil, &ParseError{Msg: "element count mismatch", Line: line}
	}
	ids := make([]int, count)
	for i := 0; i < count; i++ {
		ids[i], err = strconv.Atoi(parts[1+i])
		if err != nil {
			return nil, nil, &ParseError{Msg: "bad element id", Line: line}
		}
	}
	return ids, parts[1+count:], nil
}

func (c *LineClient) ReportTraffic(edgeID int, speed, position float64) error {
	resp, err := c.exchange(fmt.Sprintf("UPD %d %.3f %.3f", edgeID, speed, position))
	if err != nil {
		return err
	}
	// A server-side rejection of a report is not the agent's problem.
	if resp == "ACK" || strings.HasPrefix(resp, "ERR ") {
		return nil
	}
	return &ParseError{Msg: "not an ACK response", Line: resp}
}

func (c *LineClient) PredictTravel(edgeID int) (float64, error) {
	resp, err := c.exchange(fmt.Sprintf("PRED %d", edgeID))
	if err != nil {
		return 0, err
	}
	parts := strings.Fields(resp)
	if len(parts) != 3 || parts[0] != "PRED" {
		return 0, &ParseError{Msg: "not a PRED response", Line: resp}
	}
	echoed, err := strconv.Atoi(parts[1])
	if err != nil || echoed != edgeID {
		return 0, &ParseError{Msg: "edge id echo mismatch", Line: resp}
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, &ParseError{Msg: "bad predicted time", Line: resp}
	}
	return seconds, nil
}
