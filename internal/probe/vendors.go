package probe

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// VendorEntry associates an enterprise OID prefix with a vendor tag and an
// optional refiner. The table is read-only at runtime.
type VendorEntry struct {
	Tag     string  `yaml:"tag"`
	Prefix  string  `yaml:"prefix"`
	Refiner Refiner `yaml:"-"`

	// Refine names a built-in refiner in extension files.
	Refine string `yaml:"refine,omitempty"`
}

var oidRe = regexp.MustCompile(`^\.?\d+(\.\d+)*$`)

// namedRefiners are the refiners an extension file may reference.
var namedRefiners = map[string]Refiner{
	"netsnmp": netsnmpRefiner{},
	"ucdsnmp": ucdsnmpRefiner{},
	"ntcip":   ntcipRefiner{},
}

// BuiltinVendors returns the static vendor table. Generic agent prefixes
// (net-snmp, ucd-snmp, NTCIP) carry refiners; the rest identify the make
// directly.
func BuiltinVendors() []VendorEntry {
	return []VendorEntry{
		{Tag: "cisco", Prefix: "1.3.6.1.4.1.9"},
		{Tag: "hp", Prefix: "1.3.6.1.4.1.11"},
		{Tag: "apc", Prefix: "1.3.6.1.4.1.318"},
		{Tag: "axis", Prefix: "1.3.6.1.4.1.368"},
		{Tag: "ntcip", Prefix: "1.3.6.1.4.1.1206", Refiner: ntcipRefiner{}},
		{Tag: "ucdsnmp", Prefix: "1.3.6.1.4.1.2021", Refiner: ucdsnmpRefiner{}},
		{Tag: "juniper", Prefix: "1.3.6.1.4.1.2636"},
		{Tag: "netgear", Prefix: "1.3.6.1.4.1.4526"},
		{Tag: "synology", Prefix: "1.3.6.1.4.1.6574"},
		{Tag: "netsnmp", Prefix: "1.3.6.1.4.1.8072", Refiner: netsnmpRefiner{}},
		{Tag: "coretec", Prefix: "1.3.6.1.4.1.14979"},
		{Tag: "mikrotik", Prefix: "1.3.6.1.4.1.14988"},
	}
}

// LoadVendorFile reads extra vendor entries from a YAML file and appends
// them to the builtin table. Entries may name one of the built-in refiners.
func LoadVendorFile(path string) ([]VendorEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor file %s: %w", path, err)
	}
	var extra []VendorEntry
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse vendor file %s: %w", path, err)
	}
	vendors := BuiltinVendors()
	for i := range extra {
		e := &extra[i]
		if e.Tag == "" || !oidRe.MatchString(e.Prefix) {
			return nil, fmt.Errorf("vendor file %s: entry %d needs a tag and a dotted OID prefix", path, i)
		}
		if e.Refine != "" {
			r, ok := namedRefiners[e.Refine]
			if !ok {
				return nil, fmt.Errorf("vendor file %s: unknown refiner %q", path, e.Refine)
			}
			e.Refiner = r
		}
		vendors = append(vendors, *e)
	}
	return vendors, nil
}

// matchVendor finds the entry whose prefix matches sysObjectID. When
// enterprise OIDs nest, the longest prefix wins; iteration order never
// decides a match.
func matchVendor(vendors []VendorEntry, oid string) (VendorEntry, bool) {
	var best VendorEntry
	bestLen := -1
	for _, v := range vendors {
		if !hasOIDPrefix(oid, v.Prefix) {
			continue
		}
		if n := len(strings.Split(v.Prefix, ".")); n > bestLen {
			best, bestLen = v, n
		}
	}
	return best, bestLen >= 0
}

// hasOIDPrefix reports whether prefix matches oid on label boundaries, so
// 1.3.6.1.4.1.9 does not match 1.3.6.1.4.1.90.
func hasOIDPrefix(oid, prefix string) bool {
	oid = strings.TrimPrefix(oid, ".")
	prefix = strings.TrimPrefix(prefix, ".")
	if oid == prefix {
		return true
	}
	return strings.HasPrefix(oid, prefix+".")
}
