package metrics

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Calls(t *testing.T) {
	c := New()

	c.Call("invoke", 30, 3)
	c.Call("invoke", 30, 3)
	c.Call("DIFFOK", 7, 3)

	assert.EqualValues(t, 2, c.Calls("invoke"))
	assert.EqualValues(t, 1, c.Calls("DIFFOK"))
	assert.EqualValues(t, 0, c.Calls("DIFFKO"))
	assert.EqualValues(t, 67, c.TotalBytesOut())
	assert.EqualValues(t, 9, c.TotalBytesIn())
}

func TestCollector_Protocol(t *testing.T) {
	c := New()

	c.Connected()
	c.Timeout()
	c.DiffAcknowledged(true)
	c.DiffAcknowledged(false)
	c.DiffAcknowledged(false)
	c.Malformed()
	c.ChannelFailed()

	s := c.Snapshot()
	assert.EqualValues(t, 1, s.Connects)
	assert.EqualValues(t, 1, s.Timeouts)
	assert.EqualValues(t, 1, s.DiffOK)
	assert.EqualValues(t, 2, s.DiffKO)
	assert.EqualValues(t, 1, s.Malformed)
	assert.EqualValues(t, 1, s.ChannelFailures)
	assert.EqualValues(t, 1, c.Timeouts())
}

func TestCollector_Outcomes(t *testing.T) {
	c := New()

	c.StepFinished(OutcomePassed)
	c.StepFinished(OutcomePassed)
	c.StepFinished(OutcomeMismatch)

	assert.EqualValues(t, 2, c.Outcomes(OutcomePassed))
	assert.EqualValues(t, 1, c.Outcomes(OutcomeMismatch))
	assert.EqualValues(t, 0, c.Outcomes(OutcomeFailed))
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	assert.EqualValues(t, 2, c.ErrorCount())
	s := c.Snapshot()
	assert.Equal(t, "second error", s.LastErrorMessage)
	assert.NotEmpty(t, s.LastError)
}

func TestCollector_SnapshotCommandsSorted(t *testing.T) {
	c := New()
	c.Call("list_step_definitions", 1, 1)
	c.Call("DIFFKO", 1, 1)
	c.Call("invoke", 1, 1)

	assert.Equal(t, []string{"DIFFKO", "invoke", "list_step_definitions"}, c.Snapshot().Commands)
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.Call("invoke", 10, 2)
	c.StepFinished(OutcomeFailed)

	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.JSON()), &s))
	assert.Contains(t, s, "uptime")
	assert.Contains(t, s, "calls")
	assert.Contains(t, s, "outcomes")
	assert.NotContains(t, s, "Commands")
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.Connected()
	c.ChannelFailed()
	c.Call("invoke", 1, 1)
	c.Timeout()
	c.DiffAcknowledged(true)
	c.Malformed()
	c.StepFinished(OutcomePassed)
	c.RecordError("x")

	assert.Zero(t, c.Calls("invoke"))
	assert.Zero(t, c.Timeouts())
	assert.Zero(t, c.TotalBytesIn())
	assert.Zero(t, c.TotalBytesOut())
	assert.Zero(t, c.Outcomes(OutcomePassed))
	assert.Zero(t, c.ErrorCount())
	assert.Equal(t, Snapshot{}, c.Snapshot())
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Call("invoke", 1, 1)
			c.StepFinished(OutcomePassed)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 50, c.Calls("invoke"))
	assert.EqualValues(t, 50, c.Outcomes(OutcomePassed))
}
