// Package livestatus implements a client for the LiveStatus query socket
// exposed by monitoring cores. Queries are line-oriented; responses carry a
// fixed 16-byte header (status code and body length) followed by a JSON
// body shaped as an array of arrays, which the client transposes into
// column-keyed records.
package livestatus

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// headerLen is the size of the fixed16 response header:
// a 3-digit status, a space, and the body length padded to 16 bytes total.
const headerLen = 16

// Record is one data row keyed by the column names of its response.
type Record map[string]any

// Client holds one persistent connection to a LiveStatus socket.
//
// The client never reconnects: KeepAlive keeps the server side open
// between queries, but any read or write failure leaves the connection in
// an unknown state and the client must be rebuilt with Dial.
type Client struct {
	conn net.Conn
	now  func() time.Time
}

// Dial connects to a LiveStatus endpoint. addr is either a UNIX socket
// path ("/var/run/livestatus/live" or "unix:/path") or a TCP endpoint
// ("tcp:host:port"). A bare address containing a slash is taken as a
// socket path.
func Dial(addr string) (*Client, error) {
	network, target := parseAddr(addr)
	conn, err := net.Dial(network, target)
	if err != nil {
		return nil, fmt.Errorf("livestatus connection to %s failed: %w", addr, err)
	}
	return &Client{conn: conn, now: time.Now}, nil
}

func parseAddr(addr string) (network, target string) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		return "unix", strings.TrimPrefix(addr, "unix:")
	case strings.HasPrefix(addr, "tcp:"):
		return "tcp", strings.TrimPrefix(addr, "tcp:")
	case strings.Contains(addr, "/"):
		return "unix", addr
	default:
		return "tcp", addr
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Get sends a query block and returns all matching records. Extra clauses
// (Filter:, Columns:, ...) belong in the query text itself; the trailer
// lines selecting JSON output and the fixed16 header are appended here.
func (c *Client) Get(query string) ([]Record, error) {
	return c.roundTrip(query, nil)
}

// GetOne appends a Limit: 1 clause and returns the first record, or nil
// when nothing matched.
func (c *Client) GetOne(query string) (Record, error) {
	records, err := c.roundTrip(query, []string{"Limit: 1"})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// GetHost returns the host object with the given name.
func (c *Client) GetHost(name string) (Record, error) {
	return c.GetOne("GET hosts\nFilter: name = " + name)
}

// GetService returns one service by host name and service description.
func (c *Client) GetService(host, description string) (Record, error) {
	return c.GetOne(fmt.Sprintf("GET services\nFilter: host_name = %s\nFilter: description = %s", host, description))
}

// roundTrip writes one framed query and reads one framed response.
func (c *Client) roundTrip(query string, extra []string) ([]Record, error) {
	if _, err := c.conn.Write(c.frame(query, extra)); err != nil {
		return nil, fmt.Errorf("livestatus write failed: %w", err)
	}

	status, length, err := c.readHeader()
	if err != nil {
		return nil, err
	}

	var body []byte
	if length > 0 {
		body = make([]byte, length)
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return nil, fmt.Errorf("livestatus body read failed (want %d bytes): %w", length, err)
		}
	}

	if status != 200 {
		return nil, fmt.Errorf("livestatus query failed: status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return transpose(body)
}

// frame appends the protocol trailer to the query lines.
func (c *Client) frame(query string, extra []string) []byte {
	lines := strings.Split(strings.TrimRight(query, "\n"), "\n")
	lines = append(lines, extra...)
	lines = append(lines,
		"OutputFormat: json",
		"KeepAlive: on",
		"ResponseHeader: fixed16",
		fmt.Sprintf("Localtime: %d", c.now().Unix()),
		"", // blank line terminates the request
	)
	return []byte(strings.Join(lines, "\n") + "\n")
}

// readHeader reads and parses the fixed16 header: a 3-digit status code
// and a decimal body length, whitespace-separated within 16 bytes.
func (c *Client) readHeader() (status, length int, err error) {
	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return 0, 0, fmt.Errorf("livestatus header read failed: %w", err)
	}
	fields := strings.Fields(string(buf))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("malformed livestatus header %q", string(buf))
	}
	status, err = strconv.Atoi(fields[0])
	if err != nil || len(fields[0]) != 3 {
		return 0, 0, fmt.Errorf("malformed livestatus status %q", fields[0])
	}
	length, err = strconv.Atoi(fields[1])
	if err != nil || length < 0 {
		return 0, 0, fmt.Errorf("malformed livestatus body length %q", fields[1])
	}
	return status, length, nil
}

// transpose reshapes the array-of-arrays body into records: the first
// inner array names the columns, each further array is one row. Every
// record of a response shares the key set of that header row.
func transpose(body []byte) ([]Record, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("livestatus body is not an array of arrays: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		name, ok := c.(string)
		if !ok {
			return nil, fmt.Errorf("livestatus header row holds a non-string column name: %v", c)
		}
		columns[i] = name
	}

	records := make([]Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("livestatus row %d has %d cells, header has %d columns", n, len(row), len(columns))
		}
		rec := make(Record, len(columns))
		for i, cell := range row {
			rec[columns[i]] = cell
		}
		records = append(records, rec)
	}
	return records, nil
}
