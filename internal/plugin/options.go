package plugin

import (
	flags "github.com/jessevdk/go-flags"
)

// Options is the uniform command-line surface shared by all checks.
// Fields default to empty so that a non-zero value always means the
// operator set it explicitly; built-in defaults live in the config store.
type Options struct {
	Hostname string `short:"H" long:"hostname" description:"host to check"`
	Config   string `short:"C" long:"config" description:"configuration file (INI)"`
	Log      string `short:"L" long:"log" description:"log file"`
	Verbose  []bool `short:"v" long:"verbose" description:"increase verbosity (repeatable)"`

	Community string `short:"c" long:"community" description:"SNMP community string"`
	SNMPPort  string `long:"snmpport" description:"SNMP port"`
	Protocol  string `long:"protocol" description:"SNMP protocol version (1, 2, 2c or 3)"`
	V1        bool   `short:"1" description:"use SNMP version 1"`
	V2        bool   `short:"2" description:"use SNMP version 2c"`
	V2c       bool   `long:"2c" description:"use SNMP version 2c"`
	V3        bool   `short:"3" description:"use SNMP version 3"`

	SecLevel     string `short:"l" long:"seclevel" description:"SNMPv3 security level"`
	SecName      string `short:"u" long:"secname" description:"SNMPv3 security name"`
	AuthProto    string `short:"a" long:"authproto" description:"SNMPv3 auth protocol"`
	AuthPassword string `short:"A" long:"authpassword" description:"SNMPv3 auth password (0x-prefixed for key material)"`
	PrivProto    string `short:"x" long:"privproto" description:"SNMPv3 privacy protocol"`
	PrivPassword string `short:"X" long:"privpassword" description:"SNMPv3 privacy password (0x-prefixed for key material)"`

	PrevPerfdata string `short:"P" long:"prevperfdata" description:"performance data from the previous check run"`

	SSHUser      string `long:"sshuser" description:"SSH user"`
	SSHPort      string `long:"sshport" description:"SSH port"`
	SSHPass      string `long:"sshpass" description:"SSH password"`
	SSHKeyPath   string `long:"sshkeypath" description:"SSH private key file"`
	SSHKeyPhrase string `long:"sshkeyphrase" description:"SSH private key passphrase"`

	WinRMUser string `long:"winrmuser" description:"WinRM user"`
	WinRMPass string `long:"winrmpass" description:"WinRM password"`
	WinRMPort string `long:"winrmport" description:"WinRM port"`
}

// parseArgs fills o from args and returns the remaining positionals plus
// the options the command line actually set, keyed by long name. Presence
// is decided by the parser, not by value, so an explicit empty string still
// counts as set and overrides file values.
func (o *Options) parseArgs(args []string) ([]string, map[string]string, error) {
	parser := flags.NewParser(o, flags.HelpFlag|flags.PassDoubleDash)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	fields := map[string]*string{
		"hostname":     &o.Hostname,
		"community":    &o.Community,
		"snmpport":     &o.SNMPPort,
		"protocol":     &o.Protocol,
		"seclevel":     &o.SecLevel,
		"secname":      &o.SecName,
		"authproto":    &o.AuthProto,
		"authpassword": &o.AuthPassword,
		"privproto":    &o.PrivProto,
		"privpassword": &o.PrivPassword,
		"sshuser":      &o.SSHUser,
		"sshport":      &o.SSHPort,
		"sshpass":      &o.SSHPass,
		"sshkeypath":   &o.SSHKeyPath,
		"sshkeyphrase": &o.SSHKeyPhrase,
		"winrmuser":    &o.WinRMUser,
		"winrmpass":    &o.WinRMPass,
		"winrmport":    &o.WinRMPort,
	}
	set := make(map[string]string)
	for name, value := range fields {
		if opt := parser.FindOptionByLongName(name); opt != nil && opt.IsSet() {
			set[name] = *value
		}
	}
	return rest, set, nil
}

// versionFlags folds the -2 and --2c spellings into one version 2c flag.
func (o *Options) versionFlags() (v1, v2, v3 bool) {
	return o.V1, o.V2 || o.V2c, o.V3
}
