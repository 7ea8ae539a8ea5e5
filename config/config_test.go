package config

import (
	"testing"

	"go.uber.org/zap"

	"wirebridge/internal/transport"
)

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

// ── Defaults ─────────────────────────────────────────────────────────

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Address() != "localhost:3902" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if cfg.Timeout != DefaultCallTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultCallTimeout)
	}
	if cfg.SSHConfig() != nil {
		t.Error("no tunnel configured, SSHConfig should be nil")
	}
}

// ── Tunnel resolution ────────────────────────────────────────────────

func TestValidate_ResolvesTunnel(t *testing.T) {
	cfg := Defaults()
	cfg.TunnelSpec = "deploy@bastion.example.com:2222"
	cfg.UseSSHAgent = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.TunnelEnabled || cfg.TunnelUser != "deploy" || cfg.TunnelHost != "bastion.example.com" || cfg.TunnelPort != 2222 {
		t.Fatalf("tunnel not resolved: %+v", cfg)
	}

	ssh := cfg.SSHConfig()
	if ssh == nil || ssh.Addr() != "bastion.example.com:2222" || !ssh.UseAgent {
		t.Fatalf("SSHConfig() = %+v", ssh)
	}
	if _, ok := cfg.Dialer(zap.NewNop()).(*transport.SSHDialer); !ok {
		t.Error("a tunnelled config should dial through SSH")
	}
}

func TestDialer_PlainTCP(t *testing.T) {
	d, ok := Defaults().Dialer(zap.NewNop()).(*transport.TCPDialer)
	if !ok {
		t.Fatal("expected a TCP dialer")
	}
	if d.Timeout != DefaultConnTimeout {
		t.Errorf("Timeout = %v, want %v", d.Timeout, DefaultConnTimeout)
	}
}
