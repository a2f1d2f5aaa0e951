// Package plugin is the base for monitoring check plugins. It wires the
// option surface, the layered configuration store, session construction and
// the host prober into one lifecycle: parse options, load configuration,
// configure logging, run the check body, emit status and performance data,
// exit with the conventional code (0 OK, 1 WARNING, 2 CRITICAL, 3 UNKNOWN).
package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/gosnmp/gosnmp"
	"github.com/masterzen/winrm"
	"github.com/olorin/nagiosplugin"

	"github.com/checkkit/checkkit/internal/config"
	"github.com/checkkit/checkkit/internal/fault"
	"github.com/checkkit/checkkit/internal/probe"
	"github.com/checkkit/checkkit/internal/session"
)

// Plugin carries the state of one check invocation. Sessions and the probe
// result are constructed lazily and at most once; the process lives for a
// single check, so nothing is ever rebuilt or pooled.
type Plugin struct {
	Name  string
	Opts  Options
	Store *config.Store
	Check *nagiosplugin.Check
	Log   *slog.Logger

	runID uuid.UUID

	snmpOnce sync.Once
	snmp     *gosnmp.GoSNMP
	snmpErr  error

	sshOnce sync.Once
	ssh     *session.SSH

	winrmOnce sync.Once
	winrm     *winrm.Client
	winrmErr  error

	probeOnce sync.Once
	probeRes  *probe.Result
	probeErr  error
}

// New creates a plugin shell. Nothing is parsed or connected yet.
func New(name string) *Plugin {
	return &Plugin{
		Name:  name,
		Store: config.New(),
		runID: uuid.New(),
	}
}

// Run drives the full lifecycle around the check body and does not return:
// it exits the process with the accumulated status. A configuration fault
// exits UNKNOWN; any other error from the body exits CRITICAL.
func (p *Plugin) Run(body func(*Plugin) error) {
	if err := p.Init(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "UNKNOWN: %s: %s\n", p.Name, err)
		os.Exit(int(nagiosplugin.UNKNOWN))
	}

	p.Check = nagiosplugin.NewCheck()
	defer p.Check.Finish()
	defer p.closeSessions()

	if err := body(p); err != nil {
		p.Log.Error("check failed", "error", err)
		// Exitf never returns, so the deferred cleanup would be skipped.
		p.closeSessions()
		if fault.IsConfig(err) {
			p.Check.Exitf(nagiosplugin.UNKNOWN, "%s", err)
		}
		p.Check.Exitf(nagiosplugin.CRITICAL, "%s", err)
	}
}

// Init parses options, loads configuration files and configures logging.
// Split from Run so tests can drive the lifecycle without exiting.
func (p *Plugin) Init(args []string) error {
	rest, set, err := p.Opts.parseArgs(args)
	if err != nil {
		return fault.Configf("option parsing failed: %v", err)
	}
	if len(rest) > 0 {
		return fault.Configf("unexpected arguments: %v", rest)
	}

	for name, value := range set {
		p.Store.SetOption(name, value)
	}

	if p.Opts.Config != "" {
		if err := p.Store.LoadFile(p.Opts.Config); err != nil {
			return fault.Configf("%v", err)
		}
	}

	if err := p.setupLogging(); err != nil {
		return err
	}
	p.Log.Debug("plugin initialized", "args", args)
	return nil
}

// setupLogging maps -v counts to levels (warn, info, debug) and mirrors
// the stream to the -L file (or the configured logfile) when given.
func (p *Plugin) setupLogging() error {
	var level slog.Level
	switch len(p.Opts.Verbose) {
	case 0:
		level = slog.LevelWarn
	case 1:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	logPath := p.Opts.Log
	if logPath == "" {
		logPath = p.Store.Resolve("global", "logfile", "")
	}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fault.Configf("failed to open log file %s: %v", logPath, err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	p.Log = slog.New(handler).With("plugin", p.Name, "run_id", p.runID.String())
	return nil
}

// Hostname returns the target host. Checks that need one treat an empty
// value as a configuration fault.
func (p *Plugin) Hostname() (string, error) {
	if p.Opts.Hostname == "" {
		return "", fault.Configf("a target host is required (-H)")
	}
	return p.Opts.Hostname, nil
}

// SNMP returns the SNMP session for the target host, building it on first
// use. The same session (or the same failure) is returned on every call.
func (p *Plugin) SNMP() (*gosnmp.GoSNMP, error) {
	p.snmpOnce.Do(func() {
		host, err := p.Hostname()
		if err != nil {
			p.snmpErr = err
			return
		}
		v1, v2, v3 := p.Opts.versionFlags()
		params, err := session.SNMPFromConfig(p.Store, host, v1, v2, v3)
		if err != nil {
			p.snmpErr = err
			return
		}
		p.Log.Debug("building SNMP session",
			"host", params.Host, "port", params.Port, "version", params.Version)
		p.snmp, p.snmpErr = session.BuildSNMP(params)
	})
	return p.snmp, p.snmpErr
}

// SSH returns the SSH session wrapper for the target host, dialing on
// first use. Connection failures are held on the wrapper's Err, so a check
// that treats SSH as optional can continue.
func (p *Plugin) SSH() *session.SSH {
	p.sshOnce.Do(func() {
		host, err := p.Hostname()
		if err != nil {
			p.ssh = &session.SSH{}
			return
		}
		params, err := session.SSHFromConfig(p.Store, host)
		if err != nil {
			p.Log.Error("SSH parameters invalid", "error", err)
			p.ssh = &session.SSH{}
			return
		}
		p.Log.Debug("building SSH session", "host", params.Host, "port", params.Port, "user", params.User)
		p.ssh = session.BuildSSH(params)
		if err := p.ssh.Err(); err != nil {
			p.Log.Warn("SSH connection failed", "error", err)
		}
	})
	return p.ssh
}

// WinRM returns the WinRM client for the target host, building it on
// first use. Construction validates credentials but does not dial; the
// first command execution does.
func (p *Plugin) WinRM() (*winrm.Client, error) {
	p.winrmOnce.Do(func() {
		host, err := p.Hostname()
		if err != nil {
			p.winrmErr = err
			return
		}
		params, err := session.WinRMFromConfig(p.Store, host)
		if err != nil {
			p.winrmErr = err
			return
		}
		p.Log.Debug("building WinRM session", "host", params.Host, "port", params.Port, "user", params.User)
		p.winrm, p.winrmErr = session.BuildWinRM(params)
	})
	return p.winrm, p.winrmErr
}

// Probe identifies the target device's vendor, running the probe at most
// once per invocation.
func (p *Plugin) Probe(ctx context.Context) (*probe.Result, error) {
	p.probeOnce.Do(func() {
		sess, err := p.SNMP()
		if err != nil {
			p.probeErr = err
			return
		}
		host, err := p.Hostname()
		if err != nil {
			p.probeErr = err
			return
		}
		prober, err := probe.New(sess, host, p.Log)
		if err != nil {
			p.probeErr = err
			return
		}
		p.probeRes = prober.Probe(ctx)
	})
	return p.probeRes, p.probeErr
}

// Vendor is the single-value probe accessor: just the tag, or "unknown".
func (p *Plugin) Vendor(ctx context.Context) string {
	res, err := p.Probe(ctx)
	if err != nil || res == nil {
		return probe.VendorUnknown
	}
	return res.Vendor
}

// PrevPerfdata parses the -P option into labeled values.
func (p *Plugin) PrevPerfdata() map[string]PerfValue {
	return ParsePerfdata(p.Opts.PrevPerfdata)
}

func (p *Plugin) closeSessions() {
	if p.snmp != nil && p.snmp.Conn != nil {
		p.snmp.Conn.Close()
	}
	if p.ssh != nil {
		p.ssh.Close()
	}
}
