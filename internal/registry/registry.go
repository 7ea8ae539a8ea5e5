// Package registry holds the step definitions exposed by one wire
// server for the lifetime of one connection.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	wberr "wirebridge/internal/errors"
	"wirebridge/internal/metrics"
	"wirebridge/internal/stepdef"
	"wirebridge/internal/table"
	"wirebridge/internal/wire"
)

// DuplicatePolicy decides what happens when two definitions share an id.
type DuplicatePolicy int

const (
	// DuplicateWarn keeps the later definition and logs a warning.
	DuplicateWarn DuplicatePolicy = iota
	// DuplicateReject fails registration with errors.ErrDuplicateID.
	DuplicateReject
	// DuplicateAllow keeps the later definition silently.
	DuplicateAllow
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateWarn:
		return "warn"
	case DuplicateReject:
		return "reject"
	case DuplicateAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// ParseDuplicatePolicy maps "warn", "reject" or "allow" to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, bool) {
	switch s {
	case "", "warn":
		return DuplicateWarn, true
	case "reject":
		return DuplicateReject, true
	case "allow":
		return DuplicateAllow, true
	default:
		return DuplicateWarn, false
	}
}

// Options configures a Registry.
type Options struct {
	Duplicates DuplicatePolicy
	Diff       table.Options
	Logger     *zap.Logger
	Metrics    *metrics.Collector
}

// Registry maps remote ids to definitions, preserving load order.
type Registry struct {
	opts    Options
	log     *zap.Logger
	session string

	loadMu sync.Mutex
	loaded bool

	mu    sync.RWMutex
	byID  map[string]*stepdef.Definition
	order []*stepdef.Definition
}

// New creates an empty registry.
func New(opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	session := uuid.NewString()
	return &Registry{
		opts:    opts,
		log:     log.With(zap.String("session", session)),
		session: session,
		byID:    make(map[string]*stepdef.Definition),
	}
}

// Session is a random id tagging this registry's log lines.
func (r *Registry) Session() string { return r.session }

// Load fetches the remote's step definitions and registers one
// Definition per entry, in the order the remote listed them.  Patterns
// that do not compile are collected and reported together; the load
// fails if there are any.  Load may succeed only once.
func (r *Registry) Load(ctx context.Context, client *wire.Client) ([]*stepdef.Definition, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	if r.loaded {
		return nil, wberr.ErrAlreadyLoaded
	}

	entries, err := client.ListStepDefinitions(ctx)
	if err != nil {
		return nil, err
	}

	opts := []stepdef.Option{
		stepdef.WithLogger(r.log),
		stepdef.WithMetrics(r.opts.Metrics),
		stepdef.WithDiffOptions(r.opts.Diff),
	}
	var (
		result *multierror.Error
		defs   = make([]*stepdef.Definition, 0, len(entries))
	)
	for _, e := range entries {
		d, err := stepdef.New(r, client, e, opts...)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		defs = append(defs, d)
	}
	if err := result.ErrorOrNil(); err != nil {
		r.reset()
		return nil, err
	}

	r.loaded = true
	r.log.Info("step definitions loaded", zap.Int("count", len(defs)))
	return defs, nil
}

func (r *Registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*stepdef.Definition)
	r.order = nil
}

// Register adds d.  It is called by stepdef.New.
func (r *Registry) Register(d *stepdef.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, dup := r.byID[d.ID()]
	if dup {
		switch r.opts.Duplicates {
		case DuplicateReject:
			return fmt.Errorf("%w: %s", wberr.ErrDuplicateID, d.ID())
		case DuplicateWarn:
			r.log.Warn("duplicate step definition id, keeping the later one",
				zap.String("step_id", d.ID()),
				zap.String("previous", prev.PatternSource()),
				zap.String("current", d.PatternSource()))
		}
		for i, o := range r.order {
			if o == prev {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.byID[d.ID()] = d
	r.order = append(r.order, d)
	return nil
}

// Lookup returns the definition registered under id.
func (r *Registry) Lookup(id string) (*stepdef.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Definitions returns every definition in load order.
func (r *Registry) Definitions() []*stepdef.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*stepdef.Definition, len(r.order))
	copy(out, r.order)
	return out
}

// Len is the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Match is a definition whose pattern matched some step text.
type Match struct {
	Definition *stepdef.Definition
	Args       []stepdef.Argument
}

// Match returns every definition matching stepText, in load order.
func (r *Registry) Match(stepText string) []Match {
	var out []Match
	for _, d := range r.Definitions() {
		if args, ok := d.Matches(stepText); ok {
			out = append(out, Match{Definition: d, Args: args})
		}
	}
	return out
}

// BeginScenario marks the start of a scenario.  The wire server is not
// told.
func (r *Registry) BeginScenario(ctx context.Context) {
	r.log.Debug("begin scenario")
}

// EndScenario marks the end of a scenario.
func (r *Registry) EndScenario(ctx context.Context) {
	r.log.Debug("end scenario")
}
