package runner

import (
	"time"

	"wirebridge/internal/stepdef"
)

// Status is the result of one step.
type Status string

const (
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusMismatch  Status = "mismatch"
	StatusUndefined Status = "undefined"
	StatusAmbiguous Status = "ambiguous"
	StatusSkipped   Status = "skipped"
)

// Statuses lists every status in report order.
var Statuses = []Status{
	StatusPassed, StatusFailed, StatusMismatch,
	StatusUndefined, StatusAmbiguous, StatusSkipped,
}

func statusOf(o stepdef.Outcome) Status {
	switch o {
	case stepdef.Success:
		return StatusPassed
	case stepdef.TableMismatch:
		return StatusMismatch
	default:
		return StatusFailed
	}
}

// StepResult records what happened to one step.
type StepResult struct {
	Text         string
	Status       Status
	DefinitionID string
	Err          error
	Elapsed      time.Duration
}

// ScenarioResult groups a scenario's step results.
type ScenarioResult struct {
	Name  string
	Steps []StepResult
}

// Passed reports whether every step passed.
func (s ScenarioResult) Passed() bool {
	for _, st := range s.Steps {
		if st.Status != StatusPassed {
			return false
		}
	}
	return true
}

// Report is the outcome of a run.
type Report struct {
	Scenarios []ScenarioResult
	Elapsed   time.Duration
}

// Counts tallies step results by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, sc := range r.Scenarios {
		for _, st := range sc.Steps {
			counts[st.Status]++
		}
	}
	return counts
}

// Failed reports whether any scenario did not pass.
func (r *Report) Failed() bool {
	for _, sc := range r.Scenarios {
		if !sc.Passed() {
			return true
		}
	}
	return false
}
