// lsq sends a LiveStatus query to a monitoring core and prints the
// matching records as JSON, one object per line. The query is taken from
// the command line (one clause per argument) or from stdin.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	flags "github.com/jessevdk/go-flags"

	"github.com/checkkit/checkkit/internal/config"
	"github.com/checkkit/checkkit/internal/livestatus"
)

type options struct {
	Socket string `short:"s" long:"socket" description:"livestatus endpoint (path, unix:path or tcp:host:port)"`
	Config string `short:"C" long:"config" description:"configuration file (INI)"`
	One    bool   `short:"1" long:"one" description:"return only the first matching record"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] [QUERY LINE]..."
	rest, err := parser.Parse()
	if err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(1)
	}

	store := config.New()
	if opts.Config != "" {
		if err := store.LoadFile(opts.Config); err != nil {
			log.Fatalf("lsq: %v", err)
		}
	}
	if opts.Socket != "" {
		store.SetOption("socket", opts.Socket)
	}
	addr := store.ResolveOption("socket", "livestatus", "socket", "/var/run/livestatus/live")

	query, err := readQuery(rest)
	if err != nil {
		log.Fatalf("lsq: %v", err)
	}

	client, err := livestatus.Dial(addr)
	if err != nil {
		log.Fatalf("lsq: %v", err)
	}
	defer client.Close()

	enc := json.NewEncoder(os.Stdout)
	if opts.One {
		rec, err := client.GetOne(query)
		if err != nil {
			log.Fatalf("lsq: %v", err)
		}
		if rec != nil {
			enc.Encode(rec)
		}
		return
	}

	records, err := client.Get(query)
	if err != nil {
		log.Fatalf("lsq: %v", err)
	}
	for _, rec := range records {
		enc.Encode(rec)
	}
}

// readQuery joins the argument clauses, or reads the whole query from
// stdin when no arguments were given.
func readQuery(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, "\n"), nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read query from stdin: %w", err)
	}
	query := strings.TrimSpace(string(raw))
	if query == "" {
		return "", fmt.Errorf("empty query")
	}
	return query, nil
}
