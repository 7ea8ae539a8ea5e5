package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"wirebridge/internal/tunnel"
)

// SSHDialer routes the wire connection through an SSH bastion.  The
// tunnel is connected lazily on the first Dial call and torn down on
// Close.
type SSHDialer struct {
	tunnel    tunnel.Tunnel
	config    *tunnel.SSHConfig
	log       *zap.Logger
	mu        sync.Mutex
	connected bool
}

// NewSSHDialer creates a dialer that forwards through the bastion
// described by cfg.  Nothing is dialed until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, log *zap.Logger) *SSHDialer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, log),
		config: cfg,
		log:    log,
	}
}

func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected && d.tunnel.IsAlive() {
		return nil
	}

	d.log.Info("establishing SSH tunnel",
		zap.String("user", d.config.User), zap.String("bastion", d.config.Addr()))

	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	d.connected = true
	return nil
}

// Dial connects to address through the bastion.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	d.connected = false
	return d.tunnel.Close()
}
