package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// netsnmpRefiner narrows generic net-snmp agents by sysDescr fingerprints.
// Several embedded devices ship a stock net-snmp agent whose sysObjectID
// says nothing about the hardware.
type netsnmpRefiner struct{}

// netsnmpFingerprints maps sysDescr substrings to makes.
var netsnmpFingerprints = []struct {
	substring string
	vendor    string
}{
	{"m0n0wall", "m0n0wall"},
	{"pfSense", "pfsense"},
	{"VideoJet", "bosch"},
	{"VIP X", "bosch"},
}

func (netsnmpRefiner) Refine(_ context.Context, _ *Env, si *SysInfo) (string, any, error) {
	for _, fp := range netsnmpFingerprints {
		if strings.Contains(si.Descr, fp.substring) {
			return fp.vendor, nil, nil
		}
	}
	return "", nil, nil
}

// ucdsnmpRefiner narrows generic ucd-snmp agents. m0n0wall identifies
// itself in sysDescr; Comtrol device servers do not, but answer HTTP on
// the root page with a vendor banner.
type ucdsnmpRefiner struct{}

func (ucdsnmpRefiner) Refine(ctx context.Context, env *Env, si *SysInfo) (string, any, error) {
	if strings.Contains(si.Descr, "m0n0wall") {
		return "m0n0wall", nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+env.Host+"/", nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := env.HTTP.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("banner probe failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", nil, fmt.Errorf("banner probe read failed: %w", err)
	}
	if strings.Contains(string(body), "Comtrol Corporation") {
		return "comtrol", nil, nil
	}
	return "", nil, nil
}

// NTCIP global module table (NTCIP 1201 globalConfiguration).
const oidModuleTable = ".1.3.6.1.4.1.1206.4.2.6.1.3.1"

// Module is one row of the NTCIP module table.
type Module struct {
	Index   int
	Make    string
	Model   string
	Version string
	Type    int
}

// ntcipRefiner walks the NTCIP module table and lifts the manufacturer
// string out of the per-module records. Also used as the unconditional
// fallback for devices with no recognized enterprise prefix.
type ntcipRefiner struct{}

func (ntcipRefiner) Refine(_ context.Context, env *Env, _ *SysInfo) (string, any, error) {
	pdus, err := env.Session.WalkAll(oidModuleTable)
	if err != nil {
		return "", nil, fmt.Errorf("NTCIP module table walk failed: %w", err)
	}
	if len(pdus) == 0 {
		return "", nil, nil
	}

	rows := map[int]*Module{}
	for _, pdu := range pdus {
		col, idx, ok := moduleCell(pdu.Name)
		if !ok {
			continue
		}
		row := rows[idx]
		if row == nil {
			row = &Module{Index: idx}
			rows[idx] = row
		}
		switch col {
		case 3:
			row.Make = pduString(pdu)
		case 4:
			row.Model = pduString(pdu)
		case 5:
			row.Version = pduString(pdu)
		case 6:
			if n, err := strconv.Atoi(pduString(pdu)); err == nil {
				row.Type = n
			}
		}
	}
	if len(rows) == 0 {
		return "", nil, nil
	}

	indexes := make([]int, 0, len(rows))
	for idx := range rows {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	modules := make([]Module, 0, len(rows))
	vendor := ""
	for _, idx := range indexes {
		modules = append(modules, *rows[idx])
		if vendor == "" && rows[idx].Make != "" {
			vendor = vendorTag(rows[idx].Make)
		}
	}
	if vendor == "" {
		return "", nil, nil
	}
	return vendor, modules, nil
}

// moduleCell splits a module table OID into (column, row index).
func moduleCell(name string) (col, idx int, ok bool) {
	suffix := strings.TrimPrefix(strings.TrimPrefix(name, "."), strings.TrimPrefix(oidModuleTable, ".")+".")
	parts := strings.Split(suffix, ".")
	if len(parts) != 2 {
		return 0, 0, false
	}
	col, err1 := strconv.Atoi(parts[0])
	idx, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return col, idx, true
}

// vendorTag reduces a manufacturer string to a table-style tag: the first
// word, lowercased, stripped to alphanumerics.
func vendorTag(manufacturer string) string {
	fields := strings.Fields(manufacturer)
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToLower(fields[0]) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
