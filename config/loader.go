package config

// loader.go - configuration loading from the wire file and environment.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables
//   3. Wire file
//   4. Defaults   (defaults.go)

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"wirebridge/util"
)

// ── Wire file ────────────────────────────────────────────────────────

// wireFile is the YAML layout of a wire file.  Only keys present in
// the file override the configuration.
type wireFile struct {
	Host       *string        `yaml:"host"`
	Port       *int           `yaml:"port"`
	Timeout    *time.Duration `yaml:"timeout"`
	Tunnel     *string        `yaml:"tunnel"`
	SSHKey     *string        `yaml:"ssh_key"`
	KnownHosts *string        `yaml:"known_hosts"`
	Duplicates *string        `yaml:"duplicates"`
}

// LoadFile overlays the wire file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read wire file: %w", err)
	}
	var wf wireFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("parse wire file %s: %w", path, err)
	}
	cfg.WireFile = path
	if wf.Host != nil {
		cfg.Host = *wf.Host
	}
	if wf.Port != nil {
		cfg.Port = *wf.Port
	}
	if wf.Timeout != nil {
		cfg.Timeout = *wf.Timeout
	}
	if wf.Tunnel != nil {
		cfg.TunnelSpec = *wf.Tunnel
	}
	if wf.SSHKey != nil {
		cfg.SSHKeyPath = *wf.SSHKey
	}
	if wf.KnownHosts != nil {
		cfg.KnownHostsPath = *wf.KnownHosts
	}
	if wf.Duplicates != nil {
		cfg.Duplicates = *wf.Duplicates
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the WIRE_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called after
// LoadFile and BEFORE CLI flags are applied so that flags take
// precedence.
func LoadFromEnv(cfg *Config) {
	// WIRE_ADDR is host:port; WIRE_HOST and WIRE_PORT refine it.
	if v := os.Getenv(EnvPrefix + "ADDR"); v != "" {
		if host, port, err := util.SplitAddr(v); err == nil {
			cfg.Host, cfg.Port = host, port
		}
	}
	if v := os.Getenv(EnvPrefix + "HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt(EnvPrefix + "PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envDuration(EnvPrefix + "TIMEOUT"); v > 0 {
		cfg.Timeout = v
	}

	// SSH tunnel
	if v := os.Getenv(EnvPrefix + "TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv(EnvPrefix + "SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool(EnvPrefix + "SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool(EnvPrefix + "STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv(EnvPrefix + "KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt(EnvPrefix + "VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts a Go duration ("250ms") or whole seconds ("5").
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return 0
}
