package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/gosnmp/gosnmp"

	"github.com/checkkit/checkkit/internal/fault"
)

type fakeSession struct {
	sysDescr    string
	sysObjectID string
	getErr      error

	walk    []gosnmp.SnmpPDU
	walkErr error
}

func (f *fakeSession) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	pkt := &gosnmp.SnmpPacket{}
	for _, oid := range oids {
		pdu := gosnmp.SnmpPDU{Name: oid, Type: gosnmp.NoSuchObject}
		switch oid {
		case oidSysDescr:
			if f.sysDescr != "" {
				pdu = gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: []byte(f.sysDescr)}
			}
		case oidSysObjectID:
			if f.sysObjectID != "" {
				pdu = gosnmp.SnmpPDU{Name: oid, Type: gosnmp.ObjectIdentifier, Value: f.sysObjectID}
			}
		}
		pkt.Variables = append(pkt.Variables, pdu)
	}
	return pkt, nil
}

func (f *fakeSession) WalkAll(root string) ([]gosnmp.SnmpPDU, error) {
	if f.walkErr != nil {
		return nil, f.walkErr
	}
	return f.walk, nil
}

// countingDoer serves a canned body and counts requests.
type countingDoer struct {
	body  string
	calls int
	err   error
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Request:    req,
	}, nil
}

func newProber(t *testing.T, sess Session, opts ...Option) *Prober {
	t.Helper()
	p, err := New(sess, "device1", slog.Default(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewPreconditions(t *testing.T) {
	if _, err := New(nil, "device1", nil); err == nil || !fault.IsConfig(err) {
		t.Errorf("New with nil session: err = %v, want config fault", err)
	}
	if _, err := New(&fakeSession{}, "", nil); err == nil || !fault.IsConfig(err) {
		t.Errorf("New with empty host: err = %v, want config fault", err)
	}
}

func TestProbeCoretec(t *testing.T) {
	doer := &countingDoer{}
	sess := &fakeSession{
		sysDescr:    "CoreTec VCX video codec",
		sysObjectID: ".1.3.6.1.4.1.14979.99",
		walkErr:     fmt.Errorf("should not walk"),
	}
	res := newProber(t, sess, WithHTTPClient(doer)).Probe(context.Background())

	if res.Vendor != "coretec" {
		t.Errorf("Vendor = %q, want coretec", res.Vendor)
	}
	if res.SysInfo == nil || res.SysInfo.ObjectID != ".1.3.6.1.4.1.14979.99" {
		t.Errorf("SysInfo = %+v", res.SysInfo)
	}
	if doer.calls != 0 {
		t.Errorf("HTTP probe issued %d requests for a direct match", doer.calls)
	}
}

func TestProbeUcdsnmpM0n0wall(t *testing.T) {
	doer := &countingDoer{body: "irrelevant"}
	sess := &fakeSession{
		sysDescr:    "FreeBSD m0n0wall 1.8",
		sysObjectID: ".1.3.6.1.4.1.2021.250.10",
	}
	res := newProber(t, sess, WithHTTPClient(doer)).Probe(context.Background())

	if res.Vendor != "m0n0wall" {
		t.Errorf("Vendor = %q, want m0n0wall", res.Vendor)
	}
	if doer.calls != 0 {
		t.Errorf("HTTP probe issued %d requests, want 0 for m0n0wall sysDescr", doer.calls)
	}
}

func TestProbeUcdsnmpComtrol(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		vendor string
	}{
		{"banner matches", "<html>Comtrol Corporation DeviceMaster</html>", "comtrol"},
		{"banner does not match", "<html>nothing to see</html>", "ucdsnmp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := &countingDoer{body: tt.body}
			sess := &fakeSession{
				sysDescr:    "Linux device1 2.6",
				sysObjectID: ".1.3.6.1.4.1.2021.250.10",
			}
			res := newProber(t, sess, WithHTTPClient(doer)).Probe(context.Background())

			if res.Vendor != tt.vendor {
				t.Errorf("Vendor = %q, want %q", res.Vendor, tt.vendor)
			}
			if doer.calls != 1 {
				t.Errorf("HTTP probe issued %d requests, want exactly 1", doer.calls)
			}
		})
	}
}

func TestProbeHTTPFailureDegrades(t *testing.T) {
	doer := &countingDoer{err: fmt.Errorf("connection refused")}
	sess := &fakeSession{
		sysDescr:    "Linux device1 2.6",
		sysObjectID: ".1.3.6.1.4.1.2021.250.10",
	}
	res := newProber(t, sess, WithHTTPClient(doer)).Probe(context.Background())

	if res.Vendor != "ucdsnmp" {
		t.Errorf("Vendor = %q, want unrefined ucdsnmp on HTTP failure", res.Vendor)
	}
}

func TestProbeMissingSysObjectID(t *testing.T) {
	sess := &fakeSession{sysDescr: "something"}
	res := newProber(t, sess).Probe(context.Background())

	if res.Vendor != VendorUnknown || res.SysInfo != nil {
		t.Errorf("Probe = %+v, want unknown with no SysInfo", res)
	}
}

func TestProbeGetTimeoutDegrades(t *testing.T) {
	sess := &fakeSession{getErr: fmt.Errorf("request timeout")}
	res := newProber(t, sess).Probe(context.Background())

	if res.Vendor != VendorUnknown || res.SysInfo != nil {
		t.Errorf("Probe = %+v, want unknown on GET timeout", res)
	}
}

func TestProbeNTCIPFallback(t *testing.T) {
	walk := []gosnmp.SnmpPDU{
		{Name: oidModuleTable + ".3.1", Type: gosnmp.OctetString, Value: []byte("Econolite Control Products")},
		{Name: oidModuleTable + ".4.1", Type: gosnmp.OctetString, Value: []byte("ASC/3")},
		{Name: oidModuleTable + ".5.1", Type: gosnmp.OctetString, Value: []byte("2.48")},
	}
	sess := &fakeSession{
		sysDescr:    "traffic controller",
		sysObjectID: ".1.3.6.1.4.1.99999.1",
		walk:        walk,
	}
	res := newProber(t, sess).Probe(context.Background())

	if res.Vendor != "econolite" {
		t.Errorf("Vendor = %q, want econolite via NTCIP fallback", res.Vendor)
	}
	modules, ok := res.Extra.([]Module)
	if !ok || len(modules) != 1 {
		t.Fatalf("Extra = %#v, want one Module", res.Extra)
	}
	if modules[0].Make != "Econolite Control Products" || modules[0].Model != "ASC/3" {
		t.Errorf("module = %+v", modules[0])
	}
}

func TestProbeNTCIPFallbackEmptyTable(t *testing.T) {
	sess := &fakeSession{
		sysDescr:    "mystery box",
		sysObjectID: ".1.3.6.1.4.1.99999.1",
	}
	res := newProber(t, sess).Probe(context.Background())

	if res.Vendor != VendorUnknown {
		t.Errorf("Vendor = %q, want unknown when fallback finds nothing", res.Vendor)
	}
}

func TestMatchVendorLongestPrefix(t *testing.T) {
	vendors := []VendorEntry{
		{Tag: "broad", Prefix: "1.3.6.1.4.1.9"},
		{Tag: "narrow", Prefix: "1.3.6.1.4.1.9.12.3"},
	}
	entry, ok := matchVendor(vendors, ".1.3.6.1.4.1.9.12.3.1.9")
	if !ok || entry.Tag != "narrow" {
		t.Errorf("matchVendor = %v %v, want narrow", entry.Tag, ok)
	}

	entry, ok = matchVendor(vendors, ".1.3.6.1.4.1.9.1.1")
	if !ok || entry.Tag != "broad" {
		t.Errorf("matchVendor = %v %v, want broad", entry.Tag, ok)
	}
}

func TestHasOIDPrefix(t *testing.T) {
	tests := []struct {
		oid    string
		prefix string
		want   bool
	}{
		{"1.3.6.1.4.1.14979.99", "1.3.6.1.4.1.14979", true},
		{".1.3.6.1.4.1.14979.99", "1.3.6.1.4.1.14979", true},
		{"1.3.6.1.4.1.14979", "1.3.6.1.4.1.14979", true},
		{"1.3.6.1.4.1.149790", "1.3.6.1.4.1.14979", false},
		{"1.3.6.1.4.1.90", "1.3.6.1.4.1.9", false},
	}
	for _, tt := range tests {
		if got := hasOIDPrefix(tt.oid, tt.prefix); got != tt.want {
			t.Errorf("hasOIDPrefix(%q, %q) = %v, want %v", tt.oid, tt.prefix, got, tt.want)
		}
	}
}
