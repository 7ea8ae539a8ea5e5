package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wirebridge/config"
	"wirebridge/internal/retry"
	"wirebridge/internal/runner"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	LoadAttempts    int
	BreakerFailures int
}

func newRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <steps.yaml>",
		Short: "Run scenarios of steps against the wire server",
		Long: `Run every scenario in a steps file.  Each step must match exactly one
step definition; the first step that does not pass skips the rest of
its scenario.

Steps file:
  scenarios:
    - name: eating cukes
      steps:
        - text: I have 3 cukes in my belly
        - text: the basket contains
          table:
            - [name, qty]
            - [apple, 1]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, opts, args[0])
		},
	}
	cmd.Flags().IntVar(&opts.LoadAttempts, "load-attempts", config.DefaultLoadAttempts, "attempts at loading step definitions, each on a new connection")
	cmd.Flags().IntVar(&opts.BreakerFailures, "breaker-failures", config.DefaultBreakerFailures, "consecutive timeouts or connection failures before remaining steps fail fast")
	return cmd
}

func runSuite(cmd *cobra.Command, opts *RunOptions, path string) error {
	cfg := opts.cfg
	cfg.LoadAttempts = opts.LoadAttempts
	cfg.BreakerFailures = opts.BreakerFailures
	if err := cfg.Validate(); err != nil {
		return err
	}

	suite, err := runner.LoadSuite(path)
	if err != nil {
		return err
	}

	co, err := opts.connectOptions()
	if err != nil {
		return err
	}
	co.Backoff = &retry.Backoff{
		InitialDelay: config.DefaultLoadBackoff,
		MaxDelay:     config.DefaultLoadBackoff * 8,
		Multiplier:   2,
		MaxAttempts:  cfg.LoadAttempts,
		Jitter:       true,
	}
	sess, err := runner.Connect(cmd.Context(), co)
	if err != nil {
		return err
	}
	defer sess.Close()

	log := opts.log
	breaker := retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
		Name:         cfg.Address(),
		MaxFailures:  cfg.BreakerFailures,
		ResetTimeout: config.DefaultBreakerReset,
		HalfOpenMax:  1,
		OnStateChange: func(from, to retry.State) {
			log.Warn("circuit breaker state changed",
				zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	p := newPrinter(cmd.OutOrStdout(), opts.NoColor)
	current := ""
	r := runner.New(sess.Registry, runner.Options{
		Breaker: breaker,
		Logger:  log,
		Metrics: opts.metrics,
		OnStep: func(scenario string, res runner.StepResult) {
			if scenario != current {
				current = scenario
				p.printf("[bold]%s[reset]\n", scenario)
			}
			p.printf("  %s%-9s[reset] %s\n", statusColors[res.Status], res.Status, res.Text)
			if res.Status != runner.StatusSkipped {
				p.failure(res.Err, "      ")
			}
		},
	})
	report := r.Run(cmd.Context(), suite)

	counts := report.Counts()
	total := 0
	parts := make([]string, 0, len(runner.Statuses))
	for _, s := range runner.Statuses {
		if n := counts[s]; n > 0 {
			total += n
			parts = append(parts, fmt.Sprintf("%s%d %s[reset]", statusColors[s], n, s))
		}
	}
	p.printf("\n%d scenarios, %d steps (%s) in %v\n",
		len(report.Scenarios), total, strings.Join(parts, ", "), report.Elapsed.Round(time.Millisecond))

	if report.Failed() {
		return fmt.Errorf("%d of %d scenarios did not pass", failedScenarios(report), len(report.Scenarios))
	}
	return nil
}

func failedScenarios(r *runner.Report) int {
	n := 0
	for _, sc := range r.Scenarios {
		if !sc.Passed() {
			n++
		}
	}
	return n
}
