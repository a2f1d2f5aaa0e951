// check_snmp_info probes a device over SNMP, reports its vendor and system
// identity, and emits uptime performance data.
package main

import (
	"context"
	"fmt"

	"github.com/gosnmp/gosnmp"
	"github.com/olorin/nagiosplugin"

	"github.com/checkkit/checkkit/internal/plugin"
	"github.com/checkkit/checkkit/internal/probe"
)

const oidSysUpTime = ".1.3.6.1.2.1.1.3.0"

func main() {
	plugin.New("check_snmp_info").Run(run)
}

func run(p *plugin.Plugin) error {
	ctx := context.Background()

	res, err := p.Probe(ctx)
	if err != nil {
		return err
	}
	if res.SysInfo == nil {
		p.Check.AddResult(nagiosplugin.UNKNOWN, "device did not answer the system group")
		return nil
	}

	summary := fmt.Sprintf("%s (vendor %s)", res.SysInfo.Name, res.Vendor)
	if res.SysInfo.Location != "" {
		summary += " at " + res.SysInfo.Location
	}

	// Uptime is decoration; a device that answered the system group but
	// not sysUpTime still counts as identified.
	if uptime, ok := fetchUptime(p); ok {
		summary += ", up " + plugin.Sec2DHMS(uptime)
		if err := p.Check.AddPerfDatum("uptime", "s", uptime); err != nil {
			p.Log.Warn("failed to add uptime perfdata", "error", err)
		}
	}

	if res.Vendor == probe.VendorUnknown {
		p.Check.AddResultf(nagiosplugin.WARNING, "unrecognized device %s", res.SysInfo.ObjectID)
		return nil
	}
	p.Check.AddResult(nagiosplugin.OK, summary)
	return nil
}

// fetchUptime reads sysUpTime (hundredths of a second) as seconds.
func fetchUptime(p *plugin.Plugin) (float64, bool) {
	sess, err := p.SNMP()
	if err != nil {
		return 0, false
	}
	pkt, err := sess.Get([]string{oidSysUpTime})
	if err != nil || len(pkt.Variables) == 0 {
		p.Log.Warn("sysUpTime fetch failed", "error", err)
		return 0, false
	}
	v := pkt.Variables[0]
	if v.Type != gosnmp.TimeTicks {
		return 0, false
	}
	return float64(gosnmp.ToBigInt(v.Value).Int64()) / 100, true
}
