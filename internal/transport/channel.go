package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	wberr "wirebridge/internal/errors"
	"wirebridge/internal/metrics"
)

// DefaultCallTimeout bounds each phase of a call when the caller passes
// a non-positive timeout.
const DefaultCallTimeout = 5 * time.Second

// ── Channel state ────────────────────────────────────────────────────

// State is the lifecycle position of a [Channel].
type State int

const (
	// StateUnconnected: no socket yet; the next call dials.
	StateUnconnected State = iota
	// StateConnected: a socket is open and calls go over it.
	StateConnected
	// StateFailed is terminal.  Construct a new Channel to retry.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ── Channel ──────────────────────────────────────────────────────────

// Channel is the single connection to a wire server.  Each [Channel.Call]
// writes one line and blocks for exactly one response line.  Calls are
// serialized; the protocol has no pipelining.
type Channel struct {
	dialer  Dialer
	address string
	log     *zap.Logger
	metrics *metrics.Collector

	callMu sync.Mutex
	conn   net.Conn
	reader *bufio.Reader

	stateMu sync.RWMutex
	state   State
	cause   error
}

// ChannelOption configures a [Channel].
type ChannelOption func(*Channel)

// WithLogger sets the channel's logger.  The default discards.
func WithLogger(l *zap.Logger) ChannelOption {
	return func(c *Channel) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records calls, bytes and timeouts into m.
func WithMetrics(m *metrics.Collector) ChannelOption {
	return func(c *Channel) { c.metrics = m }
}

// NewChannel returns an unconnected channel to address.  Nothing is
// dialed until the first call.
func NewChannel(d Dialer, address string, opts ...ChannelOption) *Channel {
	c := &Channel{
		dialer:  d,
		address: address,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.Named("channel").With(zap.String("addr", address))
	return c
}

// Address returns the wire server address.
func (c *Channel) Address() string { return c.address }

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Err returns the error that moved the channel to [StateFailed], or nil.
func (c *Channel) Err() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.cause
}

// Call sends message and returns the response line without its line
// terminator.  timeout bounds the send and the receive phase
// separately; a context deadline that falls earlier caps both.
//
// A phase that expires yields a *errors.TimeoutError and leaves the
// channel usable.  Any other I/O failure moves the channel to
// [StateFailed].
func (c *Channel) Call(ctx context.Context, message string, timeout time.Duration) (string, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	command := CommandOf(message)
	log := c.log.With(zap.String("call_id", uuid.NewString()), zap.String("command", command))
	log.Debug("calling server", zap.String("message", message))

	conn, err := c.ensureConn(ctx, log)
	if err != nil {
		return "", err
	}

	if err := conn.SetWriteDeadline(deadline(ctx, timeout)); err != nil {
		return "", c.fail(log, wberr.Wrap("write", c.address, err))
	}
	sent, err := io.WriteString(conn, message+"\n")
	if err != nil {
		return "", c.phaseError(log, "send", "write", message, timeout, err)
	}
	log.Debug("message sent", zap.Duration("timeout", timeout))

	if err := conn.SetReadDeadline(deadline(ctx, timeout)); err != nil {
		return "", c.fail(log, wberr.Wrap("read", c.address, err))
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", c.phaseError(log, "receive", "read", message, timeout, err)
	}

	c.metrics.Call(command, sent, len(line))
	response := strings.TrimRight(line, "\r\n")
	log.Debug("received response", zap.String("response", response))
	return response, nil
}

// Close tears the connection down and moves the channel to
// [StateFailed].  The channel never closes its socket on its own, not
// even after a failure; Close is the only teardown path.
func (c *Channel) Close() error {
	c.stateMu.Lock()
	if c.state != StateFailed {
		c.state = StateFailed
		c.cause = wberr.ErrChannelClosed
	}
	conn := c.conn
	c.stateMu.Unlock()

	var errs []error
	if conn != nil {
		errs = append(errs, conn.Close())
	}
	if c.dialer != nil {
		errs = append(errs, c.dialer.Close())
	}
	return errors.Join(errs...)
}

// ── internal ─────────────────────────────────────────────────────────

func (c *Channel) ensureConn(ctx context.Context, log *zap.Logger) (net.Conn, error) {
	c.stateMu.RLock()
	state, cause, conn := c.state, c.cause, c.conn
	c.stateMu.RUnlock()

	switch state {
	case StateConnected:
		return conn, nil
	case StateFailed:
		return nil, fmt.Errorf("%w: %w", wberr.ErrChannelFailed, cause)
	}

	log.Debug("opening connection")
	conn, err := c.dialer.Dial(ctx, "tcp", c.address)
	if err != nil {
		return nil, c.fail(log, wberr.Wrap("dial", c.address, err))
	}

	c.reader = bufio.NewReader(conn)
	c.stateMu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.stateMu.Unlock()
	c.metrics.Connected()
	log.Info("connected to wire server")
	return conn, nil
}

func (c *Channel) phaseError(log *zap.Logger, phase, op, message string, timeout time.Duration, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		c.metrics.Timeout()
		log.Warn("call timed out", zap.String("phase", phase), zap.Duration("timeout", timeout))
		return &wberr.TimeoutError{Message: message, Phase: phase, Timeout: timeout}
	}
	return c.fail(log, wberr.Wrap(op, c.address, err))
}

func (c *Channel) fail(log *zap.Logger, err error) error {
	c.stateMu.Lock()
	if c.state != StateFailed {
		c.state = StateFailed
		c.cause = err
	}
	c.stateMu.Unlock()

	c.metrics.ChannelFailed()
	c.metrics.RecordError(err.Error())
	log.Error("channel failed", zap.Error(err))
	return err
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// CommandOf returns the command word of a wire message: the text
// before the first ':' or the whole message.
func CommandOf(message string) string {
	if i := strings.IndexByte(message, ':'); i >= 0 {
		return message[:i]
	}
	return message
}
