// Package session builds configured SNMP, SSH and WinRM sessions from
// resolved plugin configuration. The package validates and translates
// parameters; the protocol handshakes themselves belong to the underlying
// client libraries.
package session

import (
	"encoding/hex"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/checkkit/checkkit/internal/config"
	"github.com/checkkit/checkkit/internal/fault"
)

// SNMP protocol version tags as they appear in configuration.
const (
	Version1  = "1"
	Version2c = "2c"
	Version3  = "3"
)

var validate = validator.New()

// seclevelRe captures the two optional "no" halves of an SNMPv3 security
// level: authPriv, authNoPriv, noAuthNoPriv.
var seclevelRe = regexp.MustCompile(`(?i)^(no)?auth(no)?priv$`)

// SecLevel is a parsed SNMPv3 security level.
type SecLevel struct {
	Name         string // canonical form, e.g. "authPriv"
	AuthRequired bool
	PrivRequired bool
}

// ParseSecLevel parses an SNMPv3 security level string, case-insensitively.
func ParseSecLevel(s string) (SecLevel, error) {
	m := seclevelRe.FindStringSubmatch(s)
	if m == nil {
		return SecLevel{}, fault.Configf("invalid security level %q (want noAuthNoPriv, authNoPriv or authPriv)", s)
	}
	lvl := SecLevel{
		AuthRequired: m[1] == "",
		PrivRequired: m[2] == "",
	}
	switch {
	case lvl.AuthRequired && lvl.PrivRequired:
		lvl.Name = "authPriv"
	case lvl.AuthRequired:
		lvl.Name = "authNoPriv"
	default:
		lvl.Name = "noAuthNoPriv"
	}
	return lvl, nil
}

// ParseVersion derives the SNMP protocol version from the --protocol value
// and the -1/-2/-3 boolean flags. Giving both forms, or more than one flag,
// is a configuration fault. The default is version 1.
func ParseVersion(protocol string, v1, v2, v3 bool) (string, error) {
	flags := 0
	flagVersion := ""
	for _, f := range []struct {
		set bool
		v   string
	}{{v1, Version1}, {v2, Version2c}, {v3, Version3}} {
		if f.set {
			flags++
			flagVersion = f.v
		}
	}
	if flags > 1 {
		return "", fault.Configf("conflicting SNMP version flags (-1/-2/-3 are mutually exclusive)")
	}
	if protocol != "" && flags > 0 {
		return "", fault.Configf("--protocol and the -1/-2/-3 flags are mutually exclusive")
	}
	if flags == 1 {
		return flagVersion, nil
	}
	switch strings.ToLower(protocol) {
	case "":
		return Version1, nil
	case "1":
		return Version1, nil
	case "2", "2c":
		return Version2c, nil
	case "3":
		return Version3, nil
	default:
		return "", fault.Configf("invalid SNMP protocol version %q (want 1, 2, 2c or 3)", protocol)
	}
}

// ParseTarget splits an SNMP target of the form [tcp:|udp:]host[:port],
// preserving an explicit transport prefix. defPort applies when no port is
// given.
func ParseTarget(target string, defPort uint16) (transport, host string, port uint16, err error) {
	transport = "udp"
	lower := strings.ToLower(target)
	switch {
	case strings.HasPrefix(lower, "tcp:"):
		transport = "tcp"
		target = target[len("tcp:"):]
	case strings.HasPrefix(lower, "udp:"):
		target = target[len("udp:"):]
	}
	if target == "" {
		return "", "", 0, fault.Configf("empty SNMP target")
	}
	host = target
	port = defPort
	if h, p, splitErr := net.SplitHostPort(target); splitErr == nil {
		n, convErr := strconv.ParseUint(p, 10, 16)
		if convErr != nil {
			return "", "", 0, fault.Configf("invalid port in SNMP target %q", target)
		}
		host, port = h, uint16(n)
	}
	return transport, host, port, nil
}

// Secret is one auth or privacy secret. Values beginning with 0x are
// pre-localized key material rather than passwords to be hashed.
type Secret struct {
	Value string
	IsKey bool
}

// ParseSecret classifies a configured secret, decoding 0x-prefixed hex.
func ParseSecret(s string) (Secret, error) {
	if !strings.HasPrefix(s, "0x") {
		return Secret{Value: s}, nil
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return Secret{}, fault.Configf("invalid hex key material %q: %v", s, err)
	}
	return Secret{Value: string(raw), IsKey: true}, nil
}

// SNMPParams is the validated parameter set for one SNMP session.
type SNMPParams struct {
	Host      string `validate:"required"`
	Port      uint16
	Transport string `validate:"oneof=udp tcp"`
	Version   string `validate:"oneof=1 2c 3"`

	// Versions 1 and 2c.
	Community string

	// Version 3 only.
	SecName      string
	SecLevel     SecLevel
	AuthProtocol string
	AuthSecret   Secret
	PrivProtocol string
	PrivSecret   Secret

	Timeout time.Duration
	Retries int
}

// Validate checks the struct tags plus the version-conditional fields.
// Version 3 requires a security name and level, and each half of the
// security level pulls in its protocol and secret.
func (p *SNMPParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fault.Configf("invalid SNMP parameters: %v", err)
	}
	if p.Version != Version3 {
		if p.Community == "" {
			return fault.Configf("SNMP v%s requires a community string", p.Version)
		}
		return nil
	}
	if p.SecName == "" {
		return fault.Configf("SNMP v3 requires a security name (--secname)")
	}
	if p.SecLevel.Name == "" {
		return fault.Configf("SNMP v3 requires a security level (--seclevel)")
	}
	if p.SecLevel.AuthRequired {
		if p.AuthProtocol == "" {
			return fault.Configf("security level %s requires an auth protocol (--authproto)", p.SecLevel.Name)
		}
		if p.AuthSecret.Value == "" {
			return fault.Configf("security level %s requires an auth password (--authpassword)", p.SecLevel.Name)
		}
	}
	if p.SecLevel.PrivRequired {
		if p.PrivProtocol == "" {
			return fault.Configf("security level %s requires a privacy protocol (--privproto)", p.SecLevel.Name)
		}
		if p.PrivSecret.Value == "" {
			return fault.Configf("security level %s requires a privacy password (--privpassword)", p.SecLevel.Name)
		}
	}
	return nil
}

// SNMPFromConfig assembles SNMPParams from the resolved configuration and
// the version selection flags, then validates them.
func SNMPFromConfig(store *config.Store, host string, v1, v2, v3 bool) (*SNMPParams, error) {
	protocol := store.ResolveOption("protocol", "snmp", "protocol", "")
	// The builtin default "1" must not conflict with an explicit flag, so
	// only an option or file value participates in the conflict check.
	if _, explicit := store.Option("protocol"); !explicit {
		if v1 || v2 || v3 {
			protocol = ""
		}
	}
	version, err := ParseVersion(protocol, v1, v2, v3)
	if err != nil {
		return nil, err
	}

	portStr := store.ResolveOption("snmpport", "snmp", "port", "161")
	defPort, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fault.Configf("invalid SNMP port %q", portStr)
	}
	transport, host, port, err := ParseTarget(host, uint16(defPort))
	if err != nil {
		return nil, err
	}

	timeoutStr := store.Resolve("snmp", "timeout", "5")
	timeoutSec, err := strconv.Atoi(timeoutStr)
	if err != nil || timeoutSec <= 0 {
		return nil, fault.Configf("invalid SNMP timeout %q", timeoutStr)
	}

	p := &SNMPParams{
		Host:      host,
		Port:      port,
		Transport: transport,
		Version:   version,
		Timeout:   time.Duration(timeoutSec) * time.Second,
		Retries:   1,
	}

	if version == Version3 {
		p.SecName = store.ResolveOption("secname", "snmp", "secname", "")
		if lvl := store.ResolveOption("seclevel", "snmp", "seclevel", ""); lvl != "" {
			p.SecLevel, err = ParseSecLevel(lvl)
			if err != nil {
				return nil, err
			}
		}
		p.AuthProtocol = store.ResolveOption("authproto", "snmp", "authproto", "")
		p.AuthSecret, err = ParseSecret(store.ResolveOption("authpassword", "snmp", "authpassword", ""))
		if err != nil {
			return nil, err
		}
		p.PrivProtocol = store.ResolveOption("privproto", "snmp", "privproto", "")
		p.PrivSecret, err = ParseSecret(store.ResolveOption("privpassword", "snmp", "privpassword", ""))
		if err != nil {
			return nil, err
		}
	} else {
		p.Community = store.ResolveOption("community", "snmp", "community", "public")
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// hostPort formats host and port for dialing, IPv6-safe.
func hostPort(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}
