// Package config defines the runtime configuration for wirebridge and
// provides helpers for parsing tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"wirebridge/internal/transport"
	"wirebridge/internal/tunnel"
	"wirebridge/util"
)

// Config holds every tuneable for a single wirebridge session.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	WireFile string
	Host     string        `flag:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int           `flag:"port" validate:"required,min=1,max=65535"`
	Timeout  time.Duration `flag:"timeout"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string `flag:"tunnel" validate:"required_if=TunnelEnabled true"`
	TunnelPort     int    `flag:"tunnel" validate:"omitempty,min=1,max=65535"`
	SSHKeyPath     string `flag:"ssh-key" validate:"omitempty,file"`
	SSHPassword    bool   // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Registry ─────────────────────────────────────────────────────
	Duplicates string `flag:"duplicates" validate:"omitempty,oneof=warn reject allow"`

	// ── Run ──────────────────────────────────────────────────────────
	LoadAttempts    int `flag:"load-attempts" validate:"min=1"`
	BreakerFailures int `flag:"breaker-failures" validate:"min=1"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose   int    `flag:"verbose" validate:"min=0"`
	LogFormat string `flag:"log-format" validate:"omitempty,oneof=console json"`
	LogFile   string
	Stats     bool
}

// Defaults returns a Config populated from defaults.go.
func Defaults() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		Timeout:         DefaultCallTimeout,
		Duplicates:      DefaultDuplicatePolicy,
		LoadAttempts:    DefaultLoadAttempts,
		BreakerFailures: DefaultBreakerFailures,
		LogFormat:       DefaultLogFormat,
	}
}

// Address is host:port of the wire server.
func (c *Config) Address() string {
	return util.FormatAddr(c.Host, c.Port)
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q: expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Transport ────────────────────────────────────────────────────────

// SSHConfig builds the tunnel configuration, or nil when no tunnel is
// configured.
func (c *Config) SSHConfig() *tunnel.SSHConfig {
	if !c.TunnelEnabled {
		return nil
	}
	return &tunnel.SSHConfig{
		User:          c.TunnelUser,
		Host:          c.TunnelHost,
		Port:          c.TunnelPort,
		KeyPath:       c.SSHKeyPath,
		PromptPass:    c.SSHPassword,
		UseAgent:      c.UseSSHAgent,
		StrictHostKey: c.StrictHostKey,
		KnownHosts:    c.KnownHostsPath,
		ConnTimeout:   DefaultConnTimeout,
	}
}

// Dialer returns the dialer for the configured route: through the SSH
// tunnel when one is set, plain TCP otherwise.
func (c *Config) Dialer(log *zap.Logger) transport.Dialer {
	if ssh := c.SSHConfig(); ssh != nil {
		return transport.NewSSHDialer(ssh, log)
	}
	return &transport.TCPDialer{Timeout: DefaultConnTimeout, KeepAlive: DefaultKeepAlive}
}
