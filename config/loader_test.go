package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeWireFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "step_definitions.wire")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// ── Wire file ────────────────────────────────────────────────────────

func TestLoadFile(t *testing.T) {
	path := writeWireFile(t, "host: wire.example.com\nport: 54321\ntimeout: 250ms\ntunnel: deploy@bastion\nduplicates: reject\n")
	cfg := Defaults()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "wire.example.com" || cfg.Port != 54321 {
		t.Errorf("address = %s", cfg.Address())
	}
	if cfg.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.TunnelSpec != "deploy@bastion" || cfg.Duplicates != "reject" {
		t.Errorf("TunnelSpec = %q, Duplicates = %q", cfg.TunnelSpec, cfg.Duplicates)
	}
	if cfg.WireFile != path {
		t.Errorf("WireFile = %q", cfg.WireFile)
	}
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	cfg := Defaults()
	if err := LoadFile(writeWireFile(t, "port: 4000\n"), cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Host != DefaultHost || cfg.Port != 4000 || cfg.Timeout != DefaultCallTimeout {
		t.Errorf("got %s timeout %v", cfg.Address(), cfg.Timeout)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := Defaults()
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.wire"), cfg); err == nil || !strings.Contains(err.Error(), "read wire file") {
		t.Errorf("missing file: %v", err)
	}
	if err := LoadFile(writeWireFile(t, "port: [1, 2]\n"), cfg); err == nil || !strings.Contains(err.Error(), "parse wire file") {
		t.Errorf("bad yaml: %v", err)
	}
}

// ── Environment ──────────────────────────────────────────────────────

func TestLoadFromEnv_Host(t *testing.T) {
	t.Setenv("WIRE_HOST", "test.example.com")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Host != "test.example.com" {
		t.Errorf("Host = %q, want %q", cfg.Host, "test.example.com")
	}
}

func TestLoadFromEnv_Port(t *testing.T) {
	t.Setenv("WIRE_PORT", "8080")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
}

func TestLoadFromEnv_Addr(t *testing.T) {
	t.Setenv("WIRE_ADDR", "[::1]:4000")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Host != "::1" || cfg.Port != 4000 {
		t.Errorf("Host, Port = %q, %d, want ::1, 4000", cfg.Host, cfg.Port)
	}
	if got := cfg.Address(); got != "[::1]:4000" {
		t.Errorf("Address() = %q", got)
	}

	t.Setenv("WIRE_PORT", "4001")
	cfg = &Config{}
	LoadFromEnv(cfg)
	if cfg.Port != 4001 {
		t.Errorf("WIRE_PORT should refine WIRE_ADDR, Port = %d", cfg.Port)
	}

	t.Setenv("WIRE_ADDR", "no-port")
	t.Setenv("WIRE_PORT", "")
	cfg = &Config{Host: "keep", Port: 1}
	LoadFromEnv(cfg)
	if cfg.Host != "keep" || cfg.Port != 1 {
		t.Errorf("malformed WIRE_ADDR changed config: %q:%d", cfg.Host, cfg.Port)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "TRUE", "Yes"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("WIRE_SSH_AGENT", v)
			t.Setenv("WIRE_STRICT_HOSTKEY", v)
			cfg := &Config{}
			LoadFromEnv(cfg)
			if !cfg.UseSSHAgent || !cfg.StrictHostKey {
				t.Errorf("UseSSHAgent = %v, StrictHostKey = %v", cfg.UseSSHAgent, cfg.StrictHostKey)
			}
		})
	}
}

func TestLoadFromEnv_Timeout(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"10", 10 * time.Second},
		{"750ms", 750 * time.Millisecond},
		{"soon", DefaultCallTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("WIRE_TIMEOUT", tt.value)
			cfg := Defaults()
			LoadFromEnv(cfg)
			if cfg.Timeout != tt.want {
				t.Errorf("Timeout = %v, want %v", cfg.Timeout, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_SSHFields(t *testing.T) {
	t.Setenv("WIRE_TUNNEL", "admin@jump:2222")
	t.Setenv("WIRE_SSH_KEY", "/tmp/id_ed25519")
	t.Setenv("WIRE_KNOWN_HOSTS", "/tmp/known_hosts")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.TunnelSpec != "admin@jump:2222" {
		t.Errorf("TunnelSpec = %q", cfg.TunnelSpec)
	}
	if cfg.SSHKeyPath != "/tmp/id_ed25519" {
		t.Errorf("SSHKeyPath = %q", cfg.SSHKeyPath)
	}
	if cfg.KnownHostsPath != "/tmp/known_hosts" {
		t.Errorf("KnownHostsPath = %q", cfg.KnownHostsPath)
	}
}

func TestLoadFromEnv_OverridesWireFile(t *testing.T) {
	cfg := Defaults()
	if err := LoadFile(writeWireFile(t, "host: from-file\nport: 1111\n"), cfg); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WIRE_PORT", "2222")
	LoadFromEnv(cfg)
	if cfg.Host != "from-file" || cfg.Port != 2222 {
		t.Errorf("got %s, want from-file:2222", cfg.Address())
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	os.Unsetenv("WIRE_HOST")
	cfg := &Config{Host: "original"}
	LoadFromEnv(cfg)
	if cfg.Host != "original" {
		t.Errorf("Host should remain %q, got %q", "original", cfg.Host)
	}
}

func TestLoadFromEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("WIRE_PORT", "not-a-number")
	cfg := &Config{Port: 3902}
	LoadFromEnv(cfg)
	if cfg.Port != 3902 {
		t.Errorf("Port should remain 3902, got %d", cfg.Port)
	}
}

func TestLoadFromEnv_Output(t *testing.T) {
	t.Setenv("WIRE_VERBOSE", "3")
	t.Setenv("WIRE_LOG_FILE", "/tmp/wire.log")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Verbose != 3 || cfg.LogFile != "/tmp/wire.log" {
		t.Errorf("Verbose = %d, LogFile = %q", cfg.Verbose, cfg.LogFile)
	}
}
