// Package stepdef represents step definitions that live in a remote
// wire server.  A Definition matches step text locally against the
// remote's pattern and forwards invocations over the wire, settling
// table diffs the remote raises.
package stepdef

import (
	"context"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	wberr "wirebridge/internal/errors"
	"wirebridge/internal/metrics"
	"wirebridge/internal/table"
	"wirebridge/internal/wire"
)

// Registrar receives definitions as they are constructed.
type Registrar interface {
	Register(d *Definition) error
}

// Option configures a Definition.
type Option func(*Definition)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Definition) {
		if l != nil {
			d.log = l
		}
	}
}

// WithMetrics attaches a collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(d *Definition) { d.metrics = m }
}

// WithDiffOptions sets how local and remote tables are compared.
func WithDiffOptions(o table.Options) Option {
	return func(d *Definition) { d.diffOpts = o }
}

// Definition is a step definition implemented by the remote.
type Definition struct {
	id      string
	source  string
	pattern *regexp.Regexp
	client  *wire.Client

	diffOpts table.Options
	log      *zap.Logger
	metrics  *metrics.Collector
}

// New compiles data's pattern and registers the definition with reg.
// Nothing is registered if the pattern does not compile.
func New(reg Registrar, client *wire.Client, data wire.StepDefinition, opts ...Option) (*Definition, error) {
	re, err := regexp.Compile(data.Regexp)
	if err != nil {
		return nil, fmt.Errorf("step definition %s: %w", data.ID, err)
	}
	d := &Definition{
		id:      data.ID,
		source:  data.Regexp,
		pattern: re,
		client:  client,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.With(zap.String("step_id", d.id))
	if reg != nil {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ID is the remote's identifier for the definition.
func (d *Definition) ID() string { return d.id }

// PatternSource is the pattern text as the remote sent it.
func (d *Definition) PatternSource() string { return d.source }

// Pattern is the compiled pattern.
func (d *Definition) Pattern() *regexp.Regexp { return d.pattern }

func (d *Definition) String() string {
	return fmt.Sprintf("%s /%s/", d.id, d.source)
}

// Matches reports whether stepText matches the pattern, returning the
// capture groups as arguments.
func (d *Definition) Matches(stepText string) ([]Argument, bool) {
	loc := d.pattern.FindStringSubmatchIndex(stepText)
	if loc == nil {
		return nil, false
	}
	args := make([]Argument, 0, len(loc)/2-1)
	for i := 2; i+1 < len(loc); i += 2 {
		start, end := loc[i], loc[i+1]
		if start < 0 {
			args = append(args, Argument{Position: -1})
			continue
		}
		args = append(args, Argument{
			Value:    stepText[start:end],
			Position: utf8.RuneCountInString(stepText[:start]),
		})
	}
	return args, true
}

// ArgumentsFrom asks the remote to extract arguments from stepText.
func (d *Definition) ArgumentsFrom(ctx context.Context, stepText string) ([]Argument, error) {
	resp, err := d.client.ArgumentsFrom(ctx, d.id, stepText)
	if err != nil {
		return nil, err
	}
	switch r := resp.(type) {
	case wire.Arguments:
		args := make([]Argument, len(r.Args))
		for i, a := range r.Args {
			args[i] = Argument{Value: a.Val, Position: a.Pos}
		}
		return args, nil
	case wire.Fail:
		return nil, r.Err()
	default:
		return nil, &wberr.MalformedResponseError{
			Command: wire.CmdArgumentsFrom,
			Reason:  fmt.Sprintf("unexpected %T", resp),
		}
	}
}

// Invoke runs the definition remotely with args.  It returns nil on
// success, *errors.TableMismatchError when a table diff raised by the
// remote is confirmed locally, *errors.RemoteFailure on FAIL, and
// transport or decoding errors as they occur.
func (d *Definition) Invoke(ctx context.Context, args []Arg) error {
	start := time.Now()
	err := d.invoke(ctx, args)

	outcome := OutcomeOf(err)
	d.metrics.StepFinished(outcome.metric())
	fields := []zap.Field{
		zap.Stringer("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		d.metrics.RecordError(err.Error())
		d.log.Debug("invoke finished", append(fields, zap.Error(err))...)
	} else {
		d.log.Debug("invoke finished", fields...)
	}
	return err
}

func (d *Definition) invoke(ctx context.Context, args []Arg) error {
	payload, local := encodeArgs(args)
	resp, err := d.client.Invoke(ctx, d.id, payload)
	if err != nil {
		return err
	}
	switch r := resp.(type) {
	case wire.OK:
		return nil
	case wire.Fail:
		return r.Err()
	case wire.Diff:
		return d.reconcile(ctx, local, r.Table)
	default:
		return &wberr.MalformedResponseError{
			Command: wire.CmdInvoke,
			Reason:  fmt.Sprintf("unexpected %T", resp),
		}
	}
}

// reconcile settles a DIFF reply.  The remote always gets exactly one
// DIFFOK or DIFFKO so the conversation stays in step.
func (d *Definition) reconcile(ctx context.Context, local, remote *table.Table) error {
	if local == nil {
		_, ackErr := d.client.TableDiffKO(ctx)
		d.metrics.DiffAcknowledged(false)
		err := &wberr.MalformedResponseError{
			Command:  wire.CmdInvoke,
			Response: "DIFF",
			Reason:   "remote sent a table diff but no table argument was passed",
		}
		if ackErr != nil {
			return wberr.Join(err, ackErr)
		}
		return err
	}

	diff := local.Diff(remote, d.diffOpts)
	if !diff.Different() {
		d.log.Debug("remote table diff resolved locally")
		_, err := d.client.TableDiffOK(ctx)
		if err != nil {
			return err
		}
		d.metrics.DiffAcknowledged(true)
		return nil
	}

	resp, ackErr := d.client.TableDiffKO(ctx)
	d.metrics.DiffAcknowledged(false)
	var remoteTrace []string
	if f, ok := resp.(wire.Fail); ok {
		remoteTrace = f.Backtrace
	}
	mismatch := wberr.NewTableMismatch(diff, remoteTrace)
	if ackErr != nil {
		return wberr.Join(mismatch, ackErr)
	}
	return mismatch
}
