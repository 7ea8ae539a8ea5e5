// Package metrics provides lightweight, lock-free counters for tracking
// wire traffic and step outcomes during a bridge session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome labels a finished step invocation.
type Outcome string

const (
	OutcomePassed   Outcome = "passed"
	OutcomeFailed   Outcome = "failed"
	OutcomeMismatch Outcome = "mismatch"
)

// Collector tracks runtime metrics for one bridge session.
type Collector struct {
	connects       atomic.Int64
	channelFailed  atomic.Int64
	timeouts       atomic.Int64
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	diffOK         atomic.Int64
	diffKO         atomic.Int64
	malformed      atomic.Int64
	errorsTotal    atomic.Int64
	lastErrorNanos atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	calls        map[string]int64
	outcomes     map[Outcome]int64
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{
		startTime: time.Now(),
		calls:     make(map[string]int64),
		outcomes:  make(map[Outcome]int64),
	}
}

// ── Channel metrics ──────────────────────────────────────────────────

// Connected records a successful lazy dial.
func (c *Collector) Connected() {
	if c == nil {
		return
	}
	c.connects.Add(1)
}

// ChannelFailed records a channel entering its terminal failed state.
func (c *Collector) ChannelFailed() {
	if c == nil {
		return
	}
	c.channelFailed.Add(1)
}

// Call records one wire call for command and the bytes it moved.
func (c *Collector) Call(command string, sent, received int) {
	if c == nil {
		return
	}
	c.bytesOut.Add(int64(sent))
	c.bytesIn.Add(int64(received))
	c.mu.Lock()
	c.calls[command]++
	c.mu.Unlock()
}

// Timeout records a call whose send or receive phase expired.
func (c *Collector) Timeout() {
	if c == nil {
		return
	}
	c.timeouts.Add(1)
}

// Calls returns the number of calls recorded for command.
func (c *Collector) Calls(command string) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[command]
}

// Timeouts returns the number of timed-out calls.
func (c *Collector) Timeouts() int64 {
	if c == nil {
		return 0
	}
	return c.timeouts.Load()
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Protocol metrics ─────────────────────────────────────────────────

// DiffAcknowledged records a DIFFOK (ok=true) or DIFFKO acknowledgement.
func (c *Collector) DiffAcknowledged(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.diffOK.Add(1)
	} else {
		c.diffKO.Add(1)
	}
}

// Malformed records a response that matched no known tag.
func (c *Collector) Malformed() {
	if c == nil {
		return
	}
	c.malformed.Add(1)
}

// StepFinished records the outcome of one invocation.
func (c *Collector) StepFinished(o Outcome) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.outcomes[o]++
	c.mu.Unlock()
}

// Outcomes returns the count recorded for o.
func (c *Collector) Outcomes(o Outcome) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.outcomes[o]
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.lastErrorNanos.Store(time.Now().UnixNano())
	c.mu.Lock()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string            `json:"uptime"`
	Connects         int64             `json:"connects"`
	ChannelFailures  int64             `json:"channel_failures"`
	Calls            map[string]int64  `json:"calls"`
	Commands         []string          `json:"-"`
	Timeouts         int64             `json:"timeouts"`
	BytesIn          int64             `json:"bytes_in"`
	BytesOut         int64             `json:"bytes_out"`
	DiffOK           int64             `json:"diff_ok"`
	DiffKO           int64             `json:"diff_ko"`
	Malformed        int64             `json:"malformed"`
	Outcomes         map[Outcome]int64 `json:"outcomes"`
	ErrorsTotal      int64             `json:"errors_total"`
	LastError        string            `json:"last_error,omitempty"`
	LastErrorMessage string            `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:          time.Since(c.startTime).Truncate(time.Second).String(),
		Connects:        c.connects.Load(),
		ChannelFailures: c.channelFailed.Load(),
		Calls:           make(map[string]int64, len(c.calls)),
		Timeouts:        c.timeouts.Load(),
		BytesIn:         c.bytesIn.Load(),
		BytesOut:        c.bytesOut.Load(),
		DiffOK:          c.diffOK.Load(),
		DiffKO:          c.diffKO.Load(),
		Malformed:       c.malformed.Load(),
		Outcomes:        make(map[Outcome]int64, len(c.outcomes)),
		ErrorsTotal:     c.errorsTotal.Load(),
	}
	for k, v := range c.calls {
		s.Calls[k] = v
		s.Commands = append(s.Commands, k)
	}
	sort.Strings(s.Commands)
	for k, v := range c.outcomes {
		s.Outcomes[k] = v
	}
	if ns := c.lastErrorNanos.Load(); ns != 0 {
		s.LastError = time.Unix(0, ns).Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
