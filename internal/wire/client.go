package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	wberr "wirebridge/internal/errors"
	"wirebridge/internal/metrics"
)

// DefaultTimeout bounds each phase of a call unless overridden.
const DefaultTimeout = 5 * time.Second

// Caller sends one line and returns one line.  *transport.Channel
// satisfies it.
type Caller interface {
	Call(ctx context.Context, message string, timeout time.Duration) (string, error)
}

// Client issues typed protocol commands over a Caller.
type Client struct {
	caller  Caller
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Collector
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaultTimeout sets the per-phase timeout used when a call does
// not carry its own.
func WithDefaultTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClientLogger attaches a logger.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClientMetrics attaches a collector.
func WithClientMetrics(m *metrics.Collector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient wraps caller.
func NewClient(caller Caller, opts ...ClientOption) *Client {
	c := &Client{caller: caller, timeout: DefaultTimeout, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CallOption adjusts a single call.
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
}

// WithTimeout overrides the per-phase timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(cc *callConfig) {
		if d > 0 {
			cc.timeout = d
		}
	}
}

func (c *Client) call(ctx context.Context, message string, opts []CallOption) (string, error) {
	cc := callConfig{timeout: c.timeout}
	for _, o := range opts {
		o(&cc)
	}
	return c.caller.Call(ctx, message, cc.timeout)
}

func (c *Client) checkMalformed(err error) error {
	var me *wberr.MalformedResponseError
	if wberr.As(err, &me) {
		c.metrics.Malformed()
		c.log.Warn("malformed response",
			zap.String("command", me.Command),
			zap.String("response", me.Response),
			zap.String("reason", me.Reason))
	}
	return err
}

// ── Commands ─────────────────────────────────────────────────────────

// ListStepDefinitions asks the remote for every step definition it
// exposes.
func (c *Client) ListStepDefinitions(ctx context.Context, opts ...CallOption) ([]StepDefinition, error) {
	raw, err := c.call(ctx, CmdListStepDefinitions, opts)
	if err != nil {
		return nil, err
	}
	defs, err := DecodeStepDefinitions(raw)
	if err != nil {
		return nil, c.checkMalformed(err)
	}
	return defs, nil
}

type invokePayload struct {
	ID   string `json:"id"`
	Args []any  `json:"args"`
}

// Invoke runs step definition id with args.  Tables in args must
// marshal as an array of arrays; *table.Table does.  The reply is
// [OK], [Diff] or [Fail].
func (c *Client) Invoke(ctx context.Context, id string, args []any, opts ...CallOption) (Response, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(invokePayload{ID: id, Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode invoke: %w", err)
	}
	raw, err := c.call(ctx, CmdInvoke+":"+string(body), opts)
	if err != nil {
		return nil, err
	}
	resp, err := DecodeInvoke(raw)
	if err != nil {
		return nil, c.checkMalformed(err)
	}
	return resp, nil
}

type argumentsPayload struct {
	ID       string `json:"id"`
	StepName string `json:"step_name"`
}

// ArgumentsFrom asks definition id to extract its arguments from
// stepName.  The reply is [Arguments] or [Fail].
func (c *Client) ArgumentsFrom(ctx context.Context, id, stepName string, opts ...CallOption) (Response, error) {
	body, err := json.Marshal(argumentsPayload{ID: id, StepName: stepName})
	if err != nil {
		return nil, fmt.Errorf("encode ARGUMENTS_FROM: %w", err)
	}
	raw, err := c.call(ctx, CmdArgumentsFrom+":"+string(body), opts)
	if err != nil {
		return nil, err
	}
	resp, err := DecodeArguments(raw)
	if err != nil {
		return nil, c.checkMalformed(err)
	}
	return resp, nil
}

// TableDiffOK tells the remote its table comparison agreed.
func (c *Client) TableDiffOK(ctx context.Context, opts ...CallOption) (Response, error) {
	return c.ack(ctx, CmdDiffOK, opts)
}

// TableDiffKO tells the remote its table comparison disagreed.  The
// remote is expected to reply with a FAIL carrying its backtrace.
func (c *Client) TableDiffKO(ctx context.Context, opts ...CallOption) (Response, error) {
	return c.ack(ctx, CmdDiffKO, opts)
}

func (c *Client) ack(ctx context.Context, cmd string, opts []CallOption) (Response, error) {
	raw, err := c.call(ctx, cmd, opts)
	if err != nil {
		return nil, err
	}
	return DecodeAck(raw), nil
}
