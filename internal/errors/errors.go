// Package errors provides domain-specific error types for wirebridge.
//
// The wire taxonomy (timeouts, remote failures, table mismatches and
// malformed responses) carries enough context for the step engine to
// report a failed step with the remote's message and a backtrace that
// spans both processes.  Network, SSH and configuration errors keep
// the operation and address involved.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"wirebridge/internal/table"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrTimeout       = errors.New("operation timed out")
	ErrNotConnected  = errors.New("not connected")
	ErrChannelFailed = errors.New("channel failed")
	ErrChannelClosed = errors.New("channel closed")
	ErrAlreadyLoaded = errors.New("step definitions already loaded")
	ErrDuplicateID   = errors.New("duplicate step definition id")
	ErrCircuitOpen   = errors.New("circuit breaker is open")
)

// ── Wire errors ──────────────────────────────────────────────────────

// TimeoutError reports a call whose send or receive phase did not
// finish in time.  It matches [ErrTimeout] with errors.Is.
type TimeoutError struct {
	Message string        // outgoing wire message
	Phase   string        // "send" or "receive"
	Timeout time.Duration // the window that expired
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v (%s) calling server with message %s",
		e.Timeout, e.Phase, e.Message)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RemoteFailure is a FAIL response from the wire server.
type RemoteFailure struct {
	Message   string
	Backtrace []string
}

func (e *RemoteFailure) Error() string {
	return "remote failure: " + e.Message
}

// TableMismatchError reports a table the local comparison confirmed
// to differ from the remote's.  Backtrace holds local frames with any
// remote frames spliced in after the first.
type TableMismatchError struct {
	Diff      *table.Diff
	Backtrace []string
}

func (e *TableMismatchError) Error() string {
	return "tables were not identical:\n" + e.Diff.String()
}

// MalformedResponseError is a response that matched none of the tags
// valid for the command that produced it.
type MalformedResponseError struct {
	Command  string
	Response string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("malformed response to %s: %q", e.Command, e.Response)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ── Transport and configuration errors ───────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // "dial", "write", "read"
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
	Hint    string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, detecting retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// NewTableMismatch captures the caller's stack as the local backtrace
// and splices remote frames in after its first entry.
func NewTableMismatch(diff *table.Diff, remote []string) *TableMismatchError {
	local := Backtrace(1)
	bt := make([]string, 0, len(local)+len(remote))
	if len(local) > 0 {
		bt = append(bt, local[0])
		local = local[1:]
	}
	bt = append(bt, remote...)
	bt = append(bt, local...)
	return &TableMismatchError{Diff: diff, Backtrace: bt}
}

// Backtrace returns the calling goroutine's stack as "file:line in func"
// strings, skipping skip frames above the caller.
func Backtrace(skip int) []string {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	st, ok := pkgerrors.New("").(stackTracer)
	if !ok {
		return nil
	}
	frames := st.StackTrace()
	// drop Backtrace itself plus the requested frames
	if skip+1 >= len(frames) {
		return nil
	}
	frames = frames[skip+1:]
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, fmt.Sprintf("%s:%d in %n", f, f, f))
	}
	return out
}

// ── Classification helpers ───────────────────────────────────────────

// IsTimeout reports whether err is a wire call timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsRetryable reports whether err is worth retrying at a higher level.
// Remote failures, table mismatches and malformed responses never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	if IsTimeout(err) {
		return true
	}
	return classifyRetryable(err)
}

// RemoteBacktrace extracts the backtrace carried by a wire error, if any.
func RemoteBacktrace(err error) []string {
	var rf *RemoteFailure
	if errors.As(err, &rf) {
		return rf.Backtrace
	}
	var tm *TableMismatchError
	if errors.As(err, &tm) {
		return tm.Backtrace
	}
	return nil
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Temporary() { //nolint:staticcheck // Temporary is deprecated but still useful
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.Temporary() { //nolint:staticcheck
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
