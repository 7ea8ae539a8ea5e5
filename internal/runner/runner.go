// Package runner drives scenarios of plain-text steps through a
// registry of remote step definitions.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	wberr "wirebridge/internal/errors"
	"wirebridge/internal/metrics"
	"wirebridge/internal/registry"
	"wirebridge/internal/retry"
	"wirebridge/internal/stepdef"
)

// Options configures a Runner.
type Options struct {
	// Breaker guards remote calls.  Only infrastructure failures
	// (timeouts, dead channels) count against it; remote FAIL replies
	// and table mismatches are ordinary step results.
	Breaker *retry.CircuitBreaker
	Logger  *zap.Logger
	Metrics *metrics.Collector
	// OnStep, if set, is called after each step result is known.
	OnStep func(scenario string, res StepResult)
}

// Runner executes suites against one loaded registry.
type Runner struct {
	reg  *registry.Registry
	opts Options
	log  *zap.Logger
}

// New creates a Runner over reg.
func New(reg *registry.Registry, opts Options) *Runner {
	if opts.Breaker == nil {
		opts.Breaker = retry.NewCircuitBreaker(nil)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{reg: reg, opts: opts, log: log}
}

// Run executes every scenario in order.  Within a scenario the first
// step that does not pass causes the remaining steps to be skipped.
func (r *Runner) Run(ctx context.Context, suite *Suite) *Report {
	start := time.Now()
	report := &Report{Scenarios: make([]ScenarioResult, 0, len(suite.Scenarios))}
	for _, sc := range suite.Scenarios {
		report.Scenarios = append(report.Scenarios, r.runScenario(ctx, sc))
	}
	report.Elapsed = time.Since(start)
	return report
}

func (r *Runner) runScenario(ctx context.Context, sc Scenario) ScenarioResult {
	log := r.log.With(zap.String("scenario", sc.Name))
	r.reg.BeginScenario(ctx)
	defer r.reg.EndScenario(ctx)

	res := ScenarioResult{Name: sc.Name, Steps: make([]StepResult, 0, len(sc.Steps))}
	skipping := false
	for _, st := range sc.Steps {
		var sr StepResult
		if skipping || ctx.Err() != nil {
			sr = StepResult{Text: st.Text, Status: StatusSkipped}
		} else {
			sr = r.runStep(ctx, st)
		}
		if sr.Status != StatusPassed {
			skipping = true
		}
		log.Info("step finished",
			zap.String("step", st.Text),
			zap.String("status", string(sr.Status)),
			zap.Duration("elapsed", sr.Elapsed))
		if r.opts.OnStep != nil {
			r.opts.OnStep(sc.Name, sr)
		}
		res.Steps = append(res.Steps, sr)
	}
	return res
}

func (r *Runner) runStep(ctx context.Context, st Step) StepResult {
	start := time.Now()
	res := StepResult{Text: st.Text}

	matches := r.reg.Match(st.Text)
	switch len(matches) {
	case 0:
		res.Status = StatusUndefined
		res.Err = fmt.Errorf("no step definition matches %q", st.Text)
		return finish(&res, start)
	case 1:
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.Definition.String()
		}
		res.Status = StatusAmbiguous
		res.Err = fmt.Errorf("%q matches %d step definitions: %s",
			st.Text, len(matches), strings.Join(ids, ", "))
		return finish(&res, start)
	}

	def := matches[0].Definition
	res.DefinitionID = def.ID()

	var stepErr error
	err := r.opts.Breaker.Execute(func() error {
		stepErr = r.call(ctx, def, st)
		if isInfrastructure(stepErr) {
			return stepErr
		}
		return nil
	})
	if stepErr == nil && err != nil {
		// the breaker refused the call
		stepErr = err
	}
	res.Err = stepErr
	res.Status = statusOf(stepdef.OutcomeOf(stepErr))
	if stepErr != nil {
		r.opts.Metrics.RecordError(stepErr.Error())
	}
	return finish(&res, start)
}

func finish(res *StepResult, start time.Time) StepResult {
	res.Elapsed = time.Since(start)
	return *res
}

// call fetches the remote's view of the arguments and invokes the
// definition with them, appending the step's table last.
func (r *Runner) call(ctx context.Context, def *stepdef.Definition, st Step) error {
	remote, err := def.ArgumentsFrom(ctx, st.Text)
	if err != nil {
		return err
	}
	args := make([]stepdef.Arg, 0, len(remote)+1)
	for _, a := range remote {
		args = append(args, stepdef.String(a.Value))
	}
	if st.Table != nil {
		args = append(args, stepdef.TableArg(st.Table))
	}
	return def.Invoke(ctx, args)
}

// isInfrastructure reports whether err says the connection, rather
// than the step, is broken.
func isInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	if wberr.IsTimeout(err) || wberr.Is(err, wberr.ErrChannelFailed) {
		return true
	}
	var ne *wberr.NetworkError
	return wberr.As(err, &ne)
}
