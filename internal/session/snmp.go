package session

import (
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/checkkit/checkkit/internal/fault"
)

// authProtocols maps configuration names to gosnmp auth protocols.
var authProtocols = map[string]gosnmp.SnmpV3AuthProtocol{
	"md5":    gosnmp.MD5,
	"sha":    gosnmp.SHA,
	"sha224": gosnmp.SHA224,
	"sha256": gosnmp.SHA256,
	"sha384": gosnmp.SHA384,
	"sha512": gosnmp.SHA512,
}

// privProtocols maps configuration names to gosnmp privacy protocols.
var privProtocols = map[string]gosnmp.SnmpV3PrivProtocol{
	"des":    gosnmp.DES,
	"aes":    gosnmp.AES,
	"aes192": gosnmp.AES192,
	"aes256": gosnmp.AES256,
}

// BuildSNMP translates validated parameters into a connected gosnmp
// session. Connection failure is returned as an error; parameter problems
// are configuration faults.
func BuildSNMP(p *SNMPParams) (*gosnmp.GoSNMP, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	g := &gosnmp.GoSNMP{
		Target:    p.Host,
		Port:      p.Port,
		Transport: p.Transport,
		Timeout:   p.Timeout,
		Retries:   p.Retries,
	}

	switch p.Version {
	case Version1:
		g.Version = gosnmp.Version1
		g.Community = p.Community
	case Version2c:
		g.Version = gosnmp.Version2c
		g.Community = p.Community
	case Version3:
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		usm := &gosnmp.UsmSecurityParameters{UserName: p.SecName}
		switch {
		case p.SecLevel.AuthRequired && p.SecLevel.PrivRequired:
			g.MsgFlags = gosnmp.AuthPriv
		case p.SecLevel.AuthRequired:
			g.MsgFlags = gosnmp.AuthNoPriv
		default:
			g.MsgFlags = gosnmp.NoAuthNoPriv
		}
		if p.SecLevel.AuthRequired {
			proto, ok := authProtocols[strings.ToLower(p.AuthProtocol)]
			if !ok {
				return nil, fault.Configf("unknown auth protocol %q", p.AuthProtocol)
			}
			usm.AuthenticationProtocol = proto
			usm.AuthenticationPassphrase = p.AuthSecret.Value
		}
		if p.SecLevel.PrivRequired {
			proto, ok := privProtocols[strings.ToLower(p.PrivProtocol)]
			if !ok {
				return nil, fault.Configf("unknown privacy protocol %q", p.PrivProtocol)
			}
			usm.PrivacyProtocol = proto
			usm.PrivacyPassphrase = p.PrivSecret.Value
		}
		g.SecurityParameters = usm
	}

	if err := g.Connect(); err != nil {
		return nil, fault.Configf("SNMP session to %s:%d failed: %v", p.Host, p.Port, err)
	}
	return g, nil
}
