package session

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/checkkit/checkkit/internal/config"
)

// SSHParams is the parameter set for one SSH session. Empty credential
// fields are omitted from the handshake rather than sent as empty strings.
type SSHParams struct {
	Host          string
	Port          int
	User          string
	Password      string
	KeyPath       string
	KeyPassphrase string
	Timeout       time.Duration
}

// SSH wraps an SSH client whose connection may have failed. Connection
// errors are recorded, not raised, so callers that treat SSH as optional
// can inspect Err and move on.
type SSH struct {
	client  *ssh.Client
	lastErr error
}

// SSHFromConfig assembles SSHParams from the resolved configuration.
func SSHFromConfig(store *config.Store, host string) (*SSHParams, error) {
	portStr := store.ResolveOption("sshport", "ssh", "port", "22")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid SSH port %q", portStr)
	}
	return &SSHParams{
		Host:          host,
		Port:          port,
		User:          store.ResolveOption("sshuser", "ssh", "user", "root"),
		Password:      store.ResolveOption("sshpass", "ssh", "password", ""),
		KeyPath:       store.ResolveOption("sshkeypath", "ssh", "keypath", ""),
		KeyPassphrase: store.ResolveOption("sshkeyphrase", "ssh", "keyphrase", ""),
		Timeout:       10 * time.Second,
	}, nil
}

// BuildSSH dials the host with only the authentication methods that were
// actually configured. There is no interactive prompting: a missing
// credential fails the handshake immediately, and the failure lands in
// Err rather than being returned.
func BuildSSH(p *SSHParams) *SSH {
	s := &SSH{}

	methods, err := authMethods(p)
	if err != nil {
		s.lastErr = err
		return s
	}
	if len(methods) == 0 {
		s.lastErr = fmt.Errorf("no SSH authentication method configured for %s (password or key path required)", p.Host)
		return s
	}

	cfg := &ssh.ClientConfig{
		User:            p.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         p.Timeout,
	}
	client, err := ssh.Dial("tcp", hostPort(p.Host, p.Port), cfg)
	if err != nil {
		s.lastErr = fmt.Errorf("SSH connection to %s:%d failed: %w", p.Host, p.Port, err)
		return s
	}
	s.client = client
	return s
}

// authMethods collects password and key auth from the non-empty fields.
func authMethods(p *SSHParams) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if p.Password != "" {
		methods = append(methods, ssh.Password(p.Password))
	}
	if p.KeyPath != "" {
		raw, err := os.ReadFile(p.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key %s: %w", p.KeyPath, err)
		}
		var signer ssh.Signer
		if p.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(raw, []byte(p.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(raw)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key %s: %w", p.KeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	return methods, nil
}

// Err returns the most recent connection or command error.
func (s *SSH) Err() error { return s.lastErr }

// Connected reports whether the underlying client is usable.
func (s *SSH) Connected() bool { return s.client != nil }

// Run executes one command and returns its trimmed output. The error is
// also recorded for Err.
func (s *SSH) Run(cmd string) (string, error) {
	if s.client == nil {
		if s.lastErr == nil {
			s.lastErr = fmt.Errorf("SSH session not connected")
		}
		return "", s.lastErr
	}
	sess, err := s.client.NewSession()
	if err != nil {
		s.lastErr = fmt.Errorf("SSH session setup failed: %w", err)
		return "", s.lastErr
	}
	defer sess.Close()

	out, err := sess.Output(cmd)
	if err != nil {
		s.lastErr = fmt.Errorf("SSH command %q failed: %w", cmd, err)
		return "", s.lastErr
	}
	return strings.TrimSpace(string(out)), nil
}

// Close tears down the connection, if one was established.
func (s *SSH) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
