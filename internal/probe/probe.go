// Package probe identifies the make of a remote device from its SNMP
// identity. The prober fetches the system group in one GET, matches
// sysObjectID against a table of enterprise OID prefixes, and lets
// per-vendor refiners disambiguate generic agents with further SNMP or
// HTTP evidence.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gosnmp/gosnmp"

	"github.com/checkkit/checkkit/internal/fault"
)

// System group OIDs fetched in one batched GET.
const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysContact  = ".1.3.6.1.2.1.1.4.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"
	oidSysLocation = ".1.3.6.1.2.1.1.6.0"
)

// VendorUnknown is returned when no prefix matches and no refiner helps.
const VendorUnknown = "unknown"

// Session is the slice of an SNMP session the prober needs. Satisfied by
// *gosnmp.GoSNMP.
type Session interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	WalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
}

// HTTPDoer issues the HTTP banner probe. Satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SysInfo is the raw system group of the probed device.
type SysInfo struct {
	Descr    string
	ObjectID string
	Contact  string
	Name     string
	Location string
}

// Result is the outcome of one probe. Extra carries vendor-specific
// payload from a refiner, such as NTCIP module records.
type Result struct {
	Vendor  string
	SysInfo *SysInfo
	Extra   any
}

// Env gives refiners access to the device without widening their
// signatures. The session and HTTP client are the prober's own.
type Env struct {
	Session Session
	HTTP    HTTPDoer
	Host    string
	Logger  *slog.Logger
}

// Refiner narrows a generic vendor tag to a specific make. Returning the
// input tag unchanged means no refinement was possible; errors are treated
// as "no refinement", never as probe failure.
type Refiner interface {
	Refine(ctx context.Context, env *Env, si *SysInfo) (vendor string, extra any, err error)
}

// Prober runs the identification pass against one device.
type Prober struct {
	env     Env
	vendors []VendorEntry
}

// Option configures a Prober.
type Option func(*Prober)

// WithHTTPClient overrides the HTTP client used by banner-probing refiners.
func WithHTTPClient(c HTTPDoer) Option {
	return func(p *Prober) { p.env.HTTP = c }
}

// WithVendors replaces the vendor table, for extension files and tests.
func WithVendors(vendors []VendorEntry) Option {
	return func(p *Prober) { p.vendors = vendors }
}

// New builds a Prober over an established SNMP session. A nil session or
// empty host is a configuration fault: probing only makes sense against a
// configured remote target.
func New(sess Session, host string, logger *slog.Logger, opts ...Option) (*Prober, error) {
	if sess == nil {
		return nil, fault.Configf("host probe requires an SNMP session")
	}
	if host == "" {
		return nil, fault.Configf("host probe requires a remote host")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prober{
		env: Env{
			Session: sess,
			HTTP:    http.DefaultClient,
			Host:    host,
			Logger:  logger.With("component", "probe", "host", host),
		},
		vendors: BuiltinVendors(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Probe performs the single identification pass. SNMP timeouts and refiner
// failures degrade the result to a less specific vendor rather than
// returning an error; the only errors are precondition faults already
// caught in New.
func (p *Prober) Probe(ctx context.Context) *Result {
	si, ok := p.sysInfo()
	if !ok {
		return &Result{Vendor: VendorUnknown}
	}

	res := &Result{Vendor: VendorUnknown, SysInfo: si}

	entry, matched := matchVendor(p.vendors, si.ObjectID)
	if matched {
		res.Vendor = entry.Tag
		if entry.Refiner != nil {
			p.refine(ctx, entry.Refiner, si, res)
		}
		return res
	}

	// Some NTCIP field devices answer the module table without advertising
	// the NTCIP enterprise prefix. Last-resort heuristic, not a rule.
	p.env.Logger.Debug("no vendor prefix matched, attempting NTCIP refinement", "sysobjectid", si.ObjectID)
	p.refine(ctx, ntcipRefiner{}, si, res)
	return res
}

// refine applies one refiner, folding a non-empty answer into res and
// absorbing failures.
func (p *Prober) refine(ctx context.Context, r Refiner, si *SysInfo, res *Result) {
	vendor, extra, err := r.Refine(ctx, &p.env, si)
	if err != nil {
		p.env.Logger.Warn("vendor refinement failed", "vendor", res.Vendor, "error", err)
		return
	}
	if vendor != "" && vendor != VendorUnknown {
		res.Vendor = vendor
	}
	if extra != nil {
		res.Extra = extra
	}
}

// sysInfo fetches the system group. A failed GET or a missing sysObjectID
// yields no SysInfo at all.
func (p *Prober) sysInfo() (*SysInfo, bool) {
	oids := []string{oidSysDescr, oidSysObjectID, oidSysContact, oidSysName, oidSysLocation}
	pkt, err := p.env.Session.Get(oids)
	if err != nil {
		p.env.Logger.Warn("system group fetch failed", "error", err)
		return nil, false
	}

	si := &SysInfo{}
	for _, v := range pkt.Variables {
		switch v.Name {
		case oidSysDescr:
			si.Descr = pduString(v)
		case oidSysObjectID:
			si.ObjectID = pduString(v)
		case oidSysContact:
			si.Contact = pduString(v)
		case oidSysName:
			si.Name = pduString(v)
		case oidSysLocation:
			si.Location = pduString(v)
		}
	}
	if si.ObjectID == "" {
		p.env.Logger.Warn("device did not return sysObjectID")
		return nil, false
	}
	return si, true
}

// pduString renders an SNMP value as a string, skipping error markers.
func pduString(v gosnmp.SnmpPDU) string {
	switch v.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return ""
	case gosnmp.OctetString:
		if b, ok := v.Value.([]byte); ok {
			return string(b)
		}
	}
	if v.Value == nil {
		return ""
	}
	return fmt.Sprintf("%v", v.Value)
}
