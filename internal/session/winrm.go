package session

import (
	"strconv"
	"time"

	"github.com/masterzen/winrm"

	"github.com/checkkit/checkkit/internal/config"
	"github.com/checkkit/checkkit/internal/fault"
)

// WinRMParams is the parameter set for one WinRM session.
type WinRMParams struct {
	Host     string
	Port     int
	User     string
	Password string
	UseHTTPS bool
	Timeout  time.Duration
}

// WinRMFromConfig assembles WinRMParams from the resolved configuration.
func WinRMFromConfig(store *config.Store, host string) (*WinRMParams, error) {
	portStr := store.ResolveOption("winrmport", "winrm", "port", "5985")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fault.Configf("invalid WinRM port %q", portStr)
	}
	return &WinRMParams{
		Host:     host,
		Port:     port,
		User:     store.ResolveOption("winrmuser", "winrm", "user", ""),
		Password: store.ResolveOption("winrmpass", "winrm", "password", ""),
		UseHTTPS: store.Resolve("winrm", "https", "false") == "true",
		Timeout:  10 * time.Second,
	}, nil
}

// BuildWinRM validates the credentials and constructs a WinRM client.
// Unlike SSH, WinRM has no key-based fallback, so user and password are
// both mandatory.
func BuildWinRM(p *WinRMParams) (*winrm.Client, error) {
	if p.User == "" {
		return nil, fault.Configf("WinRM requires a user (--winrmuser)")
	}
	if p.Password == "" {
		return nil, fault.Configf("WinRM requires a password (--winrmpass)")
	}
	endpoint := winrm.NewEndpoint(p.Host, p.Port, p.UseHTTPS, false, nil, nil, nil, p.Timeout)
	client, err := winrm.NewClient(endpoint, p.User, p.Password)
	if err != nil {
		return nil, fault.Configf("WinRM client for %s:%d failed: %v", p.Host, p.Port, err)
	}
	return client, nil
}
