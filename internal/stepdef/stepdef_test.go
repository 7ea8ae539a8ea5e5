package stepdef

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wberr "wirebridge/internal/errors"
	"wirebridge/internal/metrics"
	"wirebridge/internal/table"
	"wirebridge/internal/transport"
	"wirebridge/internal/wire"
	"wirebridge/internal/wiretest"
)

type collector struct{ defs []*Definition }

func (c *collector) Register(d *Definition) error {
	c.defs = append(c.defs, d)
	return nil
}

func newClient(t *testing.T, stub *wiretest.Stub, timeout time.Duration) (*wire.Client, *wiretest.Server) {
	t.Helper()
	srv := wiretest.NewServer(t, stub.Handle)
	ch := transport.NewChannel(&transport.TCPDialer{Timeout: time.Second}, srv.Addr())
	t.Cleanup(func() { ch.Close() })
	return wire.NewClient(ch, wire.WithDefaultTimeout(timeout)), srv
}

func newDefinition(t *testing.T, client *wire.Client, opts ...Option) *Definition {
	t.Helper()
	d, err := New(nil, client, wire.StepDefinition{ID: "1", Regexp: "^we're all (\\w+)$"}, opts...)
	require.NoError(t, err)
	return d
}

func fruitTable(qty string) *table.Table {
	return table.New([][]string{{"name", "qty"}, {"apple", qty}})
}

func TestNew_Registers(t *testing.T) {
	reg := &collector{}
	d, err := New(reg, nil, wire.StepDefinition{ID: "42", Regexp: `(\d+) cukes`})
	require.NoError(t, err)

	require.Len(t, reg.defs, 1)
	assert.Same(t, d, reg.defs[0])
	assert.Equal(t, "42", d.ID())
	assert.Equal(t, `(\d+) cukes`, d.PatternSource())
	assert.Equal(t, `42 /(\d+) cukes/`, d.String())
}

func TestNew_BadPatternNotRegistered(t *testing.T) {
	reg := &collector{}
	_, err := New(reg, nil, wire.StepDefinition{ID: "9", Regexp: `(unclosed`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step definition 9")
	assert.Empty(t, reg.defs)
}

func TestMatches(t *testing.T) {
	d, err := New(nil, nil, wire.StepDefinition{ID: "1", Regexp: `(\d+) cukes( please)?`})
	require.NoError(t, err)

	args, ok := d.Matches("I have 3 cukes")
	require.True(t, ok)
	assert.Equal(t, []Argument{{Value: "3", Position: 7}, {Position: -1}}, args)

	args, ok = d.Matches("ünïcödé 42 cukes please")
	require.True(t, ok)
	assert.Equal(t, []Argument{{Value: "42", Position: 8}, {Value: " please", Position: 16}}, args)

	_, ok = d.Matches("no cucumbers")
	assert.False(t, ok)
}

func TestArgumentsFrom(t *testing.T) {
	client, srv := newClient(t, wiretest.NewStub().On("ARGUMENTS_FROM:", `ARGUMENTS:[{"val":"3","pos":6}]`), time.Second)
	d := newDefinition(t, client)

	args, err := d.ArgumentsFrom(context.Background(), "I ate 3 cukes")
	require.NoError(t, err)
	assert.Equal(t, []Argument{{Value: "3", Position: 6}}, args)
	assert.Equal(t, []string{`ARGUMENTS_FROM:{"id":"1","step_name":"I ate 3 cukes"}`}, srv.Received())
}

func TestArgumentsFrom_Failures(t *testing.T) {
	client, _ := newClient(t, wiretest.NewStub().
		On("ARGUMENTS_FROM:", `FAIL:{"message":"nope"}`, "garbage"), time.Second)
	d := newDefinition(t, client)

	_, err := d.ArgumentsFrom(context.Background(), "x")
	var rf *wberr.RemoteFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "nope", rf.Message)

	_, err = d.ArgumentsFrom(context.Background(), "x")
	var me *wberr.MalformedResponseError
	require.ErrorAs(t, err, &me)
}

func TestInvoke_OK(t *testing.T) {
	m := metrics.New()
	client, srv := newClient(t, wiretest.NewStub().On("invoke:", "OK"), time.Second)
	d := newDefinition(t, client, WithMetrics(m))

	err := d.Invoke(context.Background(), []Arg{String("wired")})
	require.NoError(t, err)
	assert.Equal(t, Success, OutcomeOf(err))
	assert.Equal(t, []string{`invoke:{"id":"1","args":["wired"]}`}, srv.Received(), "no further calls after OK")
	assert.EqualValues(t, 1, m.Outcomes(metrics.OutcomePassed))
}

func TestInvoke_DiffEqualTables(t *testing.T) {
	m := metrics.New()
	client, srv := newClient(t, wiretest.NewStub().
		On("invoke:", `DIFF:[["name","qty"],["apple","1"]]`).
		On("DIFFOK", "OK"), time.Second)
	d := newDefinition(t, client, WithMetrics(m))

	err := d.Invoke(context.Background(), []Arg{String("wired"), TableArg(fruitTable("1"))})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Count("DIFFOK"))
	assert.Equal(t, 0, srv.Count("DIFFKO"))
	assert.Equal(t, `invoke:{"id":"1","args":["wired",[["name","qty"],["apple","1"]]]}`, srv.Received()[0])
	assert.EqualValues(t, 1, m.Snapshot().DiffOK)
}

func TestInvoke_DiffDifferentTables(t *testing.T) {
	client, srv := newClient(t, wiretest.NewStub().
		On("invoke:", `DIFF:[["name","qty"],["apple","2"]]`).
		On("DIFFKO", `FAIL:{"message":"not same","backtrace":["remote.rb:1","remote.rb:2"]}`), time.Second)
	d := newDefinition(t, client)

	err := d.Invoke(context.Background(), []Arg{TableArg(fruitTable("1"))})
	var tm *wberr.TableMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, TableMismatch, OutcomeOf(err))
	assert.True(t, tm.Diff.Different())
	assert.Equal(t, 1, srv.Count("DIFFKO"))
	assert.Equal(t, 0, srv.Count("DIFFOK"))

	require.GreaterOrEqual(t, len(tm.Backtrace), 3)
	assert.Equal(t, []string{"remote.rb:1", "remote.rb:2"}, tm.Backtrace[1:3])
	assert.NotContains(t, tm.Backtrace[0], "remote.rb", "local frame stays first")
}

func TestInvoke_DiffUsesLastTableArg(t *testing.T) {
	client, srv := newClient(t, wiretest.NewStub().
		On("invoke:", `DIFF:[["name","qty"],["apple","2"]]`).
		On("DIFFOK", "OK"), time.Second)
	d := newDefinition(t, client)

	err := d.Invoke(context.Background(), []Arg{
		TableArg(fruitTable("1")),
		TableArg(fruitTable("2")),
		String("trailing text"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Count("DIFFOK"))
}

func TestInvoke_DiffWithoutTableArg(t *testing.T) {
	client, srv := newClient(t, wiretest.NewStub().
		On("invoke:", `DIFF:[["a"]]`).
		On("DIFFKO", "OK"), time.Second)
	d := newDefinition(t, client)

	err := d.Invoke(context.Background(), []Arg{String("wired")})
	var me *wberr.MalformedResponseError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, Failure, OutcomeOf(err))
	assert.Equal(t, 1, srv.Count("DIFFKO"), "remote is kept in step")
}

func TestInvoke_Fail(t *testing.T) {
	m := metrics.New()
	client, _ := newClient(t, wiretest.NewStub().On("invoke:", `FAIL:{"message":"eek"}`), time.Second)
	d := newDefinition(t, client, WithMetrics(m))

	err := d.Invoke(context.Background(), nil)
	var rf *wberr.RemoteFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "eek", rf.Message)
	assert.Empty(t, rf.Backtrace)
	assert.Equal(t, Failure, OutcomeOf(err))
	assert.EqualValues(t, 1, m.Outcomes(metrics.OutcomeFailed))
	assert.EqualValues(t, 1, m.ErrorCount())
}

func TestInvoke_Malformed(t *testing.T) {
	client, _ := newClient(t, wiretest.NewStub().On("invoke:", "HUH"), time.Second)
	d := newDefinition(t, client)

	err := d.Invoke(context.Background(), nil)
	var me *wberr.MalformedResponseError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "HUH", me.Response)
}

func TestInvoke_TimeoutKeepsChannelCallable(t *testing.T) {
	client, _ := newClient(t, wiretest.NewStub().
		On("invoke:", wiretest.NoReply).
		On("ARGUMENTS_FROM:", `ARGUMENTS:[]`), 100*time.Millisecond)
	d := newDefinition(t, client)

	err := d.Invoke(context.Background(), []Arg{String("wired")})
	var te *wberr.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, `invoke:{"id":"1","args":["wired"]}`, te.Message)
	assert.Contains(t, err.Error(), `calling server with message invoke:{"id":"1","args":["wired"]}`)

	args, err := d.ArgumentsFrom(context.Background(), "we're all wired")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestOutcomeOf_WrappedMismatch(t *testing.T) {
	mismatch := wberr.NewTableMismatch(&table.Diff{}, nil)
	assert.Equal(t, TableMismatch, OutcomeOf(wberr.Join(mismatch, wberr.ErrChannelFailed)))
	assert.Equal(t, "table mismatch", TableMismatch.String())
}

func TestArgKind_String(t *testing.T) {
	assert.Equal(t, "string", ArgString.String())
	assert.Equal(t, "table", ArgTable.String())
	assert.Equal(t, "unknown", ArgKind(9).String())
}
