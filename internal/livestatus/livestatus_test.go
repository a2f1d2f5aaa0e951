package livestatus

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// pipeClient returns a Client over one end of a net.Pipe and a server-side
// handler running in a goroutine. respond receives the full request block
// (without the terminating blank line) and returns the raw bytes to send.
func pipeClient(t *testing.T, respond func(req string) []byte) *Client {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})

	go func() {
		r := bufio.NewReader(serverConn)
		for {
			var lines []string
			for {
				line, err := r.ReadString('\n')
				if err != nil {
					return
				}
				line = strings.TrimRight(line, "\n")
				if line == "" {
					break
				}
				lines = append(lines, line)
			}
			resp := respond(strings.Join(lines, "\n"))
			if _, err := serverConn.Write(resp); err != nil {
				return
			}
		}
	}()

	return &Client{
		conn: clientConn,
		now:  func() time.Time { return time.Unix(1700000000, 0) },
	}
}

// fixed16 frames a response body with the 16-byte header.
func fixed16(status int, body string) []byte {
	return []byte(fmt.Sprintf("%3d %11d\n%s", status, len(body), body))
}

func TestFixed16HeaderShape(t *testing.T) {
	h := fixed16(200, "")
	if len(h) != headerLen {
		t.Fatalf("header is %d bytes, want %d", len(h), headerLen)
	}
}

func TestGetTransposesRows(t *testing.T) {
	c := pipeClient(t, func(string) []byte {
		return fixed16(200, `[["name","alias"],["host1","Host One"]]`)
	})

	records, err := c.Get("GET hosts")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec["name"] != "host1" || rec["alias"] != "Host One" {
		t.Errorf("record = %v", rec)
	}
	if len(rec) != 2 {
		t.Errorf("record has %d keys, want 2", len(rec))
	}
}

func TestGetPreservesRowOrderAndTypes(t *testing.T) {
	c := pipeClient(t, func(string) []byte {
		return fixed16(200, `[["name","state","notes"],["a",0,null],["b",2,"down"]]`)
	})

	records, err := c.Get("GET hosts")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["name"] != "a" || records[1]["name"] != "b" {
		t.Errorf("row order not preserved: %v", records)
	}
	if records[1]["state"] != float64(2) {
		t.Errorf("state = %#v, want JSON number 2", records[1]["state"])
	}
	if records[0]["notes"] != nil {
		t.Errorf("notes = %#v, want nil", records[0]["notes"])
	}
}

func TestRequestFraming(t *testing.T) {
	var request string
	c := pipeClient(t, func(req string) []byte {
		request = req
		return fixed16(200, `[]`)
	})

	if _, err := c.Get("GET services\nColumns: host_name description state"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	for _, want := range []string{
		"GET services",
		"Columns: host_name description state",
		"OutputFormat: json",
		"KeepAlive: on",
		"ResponseHeader: fixed16",
		"Localtime: 1700000000",
	} {
		if !strings.Contains(request, want) {
			t.Errorf("request missing %q:\n%s", want, request)
		}
	}
}

func TestGetOneAppendsLimit(t *testing.T) {
	var request string
	c := pipeClient(t, func(req string) []byte {
		request = req
		return fixed16(200, `[["name"],["host1"]]`)
	})

	rec, err := c.GetOne("GET hosts\nFilter: name = host1")
	if err != nil {
		t.Fatalf("GetOne: %v", err)
	}
	if rec["name"] != "host1" {
		t.Errorf("record = %v", rec)
	}
	if !strings.Contains(request, "Limit: 1") {
		t.Errorf("request missing Limit: 1:\n%s", request)
	}
}

func TestGetOneNoMatch(t *testing.T) {
	c := pipeClient(t, func(string) []byte {
		return fixed16(200, `[["name"]]`)
	})

	rec, err := c.GetOne("GET hosts\nFilter: name = absent")
	if err != nil {
		t.Fatalf("GetOne: %v", err)
	}
	if rec != nil {
		t.Errorf("record = %v, want nil", rec)
	}
}

func TestNon200IsFatal(t *testing.T) {
	c := pipeClient(t, func(string) []byte {
		return fixed16(404, "Table 'nonsense' does not exist.")
	})

	_, err := c.Get("GET nonsense")
	if err == nil {
		t.Fatal("Get on 404 should fail")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("error lacks status and body detail: %v", err)
	}
}

func TestShortBodyIsFatal(t *testing.T) {
	c := pipeClient(t, func(req string) []byte {
		// Claim 100 bytes, deliver 7, then half-close.
		return []byte(fmt.Sprintf("%3d %11d\n%s", 200, 100, `[["x"]]`))
	})
	// Closing the server side after the short write is driven by the pipe
	// handler exiting; force it by closing the client read side after a
	// deadline instead.
	c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

	_, err := c.Get("GET hosts")
	if err == nil {
		t.Fatal("short body must be a read error, not a truncated result")
	}
}

func TestMalformedHeader(t *testing.T) {
	c := pipeClient(t, func(string) []byte {
		return []byte("this is not a h")
	})
	c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

	if _, err := c.Get("GET hosts"); err == nil {
		t.Fatal("malformed header should fail")
	}
}

func TestGetHostAndServiceQueries(t *testing.T) {
	var requests []string
	c := pipeClient(t, func(req string) []byte {
		requests = append(requests, req)
		return fixed16(200, `[["name"],["host1"]]`)
	})

	if _, err := c.GetHost("host1"); err != nil {
		t.Fatalf("GetHost: %v", err)
	}
	if _, err := c.GetService("host1", "PING"); err != nil {
		t.Fatalf("GetService: %v", err)
	}

	if !strings.Contains(requests[0], "GET hosts") || !strings.Contains(requests[0], "Filter: name = host1") {
		t.Errorf("host query:\n%s", requests[0])
	}
	if !strings.Contains(requests[1], "GET services") ||
		!strings.Contains(requests[1], "Filter: host_name = host1") ||
		!strings.Contains(requests[1], "Filter: description = PING") {
		t.Errorf("service query:\n%s", requests[1])
	}
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		addr    string
		network string
		target  string
	}{
		{"/var/run/livestatus/live", "unix", "/var/run/livestatus/live"},
		{"unix:/tmp/live", "unix", "/tmp/live"},
		{"tcp:mon1:6557", "tcp", "mon1:6557"},
		{"mon1:6557", "tcp", "mon1:6557"},
	}
	for _, tt := range tests {
		network, target := parseAddr(tt.addr)
		if network != tt.network || target != tt.target {
			t.Errorf("parseAddr(%q) = (%s, %s), want (%s, %s)",
				tt.addr, network, target, tt.network, tt.target)
		}
	}
}

func TestTranspose(t *testing.T) {
	t.Run("mismatched row length", func(t *testing.T) {
		if _, err := transpose([]byte(`[["a","b"],["only one"]]`)); err == nil {
			t.Error("mismatched row should fail")
		}
	})
	t.Run("empty body", func(t *testing.T) {
		records, err := transpose(nil)
		if err != nil || records != nil {
			t.Errorf("transpose(nil) = %v, %v", records, err)
		}
	})
	t.Run("not arrays", func(t *testing.T) {
		if _, err := transpose([]byte(`{"x":1}`)); err == nil {
			t.Error("object body should fail")
		}
	})
}
