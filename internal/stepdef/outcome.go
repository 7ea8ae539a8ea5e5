package stepdef

import (
	wberr "wirebridge/internal/errors"
	"wirebridge/internal/metrics"
)

// Outcome classifies the result of Invoke.
type Outcome int

const (
	Success Outcome = iota
	TableMismatch
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TableMismatch:
		return "table mismatch"
	default:
		return "failure"
	}
}

// OutcomeOf classifies the error returned by Invoke.  A nil error is
// Success, any error carrying a *errors.TableMismatchError is
// TableMismatch, and everything else is Failure.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Success
	}
	var tm *wberr.TableMismatchError
	if wberr.As(err, &tm) {
		return TableMismatch
	}
	return Failure
}

func (o Outcome) metric() metrics.Outcome {
	switch o {
	case Success:
		return metrics.OutcomePassed
	case TableMismatch:
		return metrics.OutcomeMismatch
	default:
		return metrics.OutcomeFailed
	}
}
