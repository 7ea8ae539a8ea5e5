package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	wberr "wirebridge/internal/errors"
	"wirebridge/internal/registry"
	"wirebridge/internal/retry"
	"wirebridge/internal/transport"
	"wirebridge/internal/wire"
)

// Session is a loaded registry and the channel its definitions use.
type Session struct {
	Registry *registry.Registry
	Client   *wire.Client
	Channel  *transport.Channel
}

// Close shuts the channel.
func (s *Session) Close() error {
	if s == nil || s.Channel == nil {
		return nil
	}
	return s.Channel.Close()
}

// ConnectOptions configures Connect.
type ConnectOptions struct {
	// NewChannel returns a fresh, unconnected channel.  It is called
	// once per attempt because a failed channel is never reused.
	NewChannel func() *transport.Channel
	Backoff    *retry.Backoff
	Registry   registry.Options
	Client     []wire.ClientOption
	Logger     *zap.Logger
}

// Connect loads the remote's step definitions, retrying transient
// failures such as a refused dial or a timed-out listing.  Remote
// failures, malformed replies and bad patterns are not retried.
func Connect(ctx context.Context, opts ConnectOptions) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	b := opts.Backoff
	if b == nil {
		b = &retry.Backoff{MaxAttempts: 1}
	}
	if b.OnRetry == nil {
		b.OnRetry = func(attempt int, err error, wait time.Duration) {
			log.Warn("loading step definitions failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
	}

	var sess *Session
	err := b.Do(ctx, func(attempt int) error {
		ch := opts.NewChannel()
		client := wire.NewClient(ch, opts.Client...)
		reg := registry.New(opts.Registry)
		if _, err := reg.Load(ctx, client); err != nil {
			ch.Close()
			if wberr.IsRetryable(err) {
				return err
			}
			return retry.Permanent(err)
		}
		sess = &Session{Registry: reg, Client: client, Channel: ch}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}
