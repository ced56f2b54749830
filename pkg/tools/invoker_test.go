package tools

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecouncil/tradecouncil/pkg/metrics"
	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// fakeTool is a scriptable tool for invoker tests.
type fakeTool struct {
	name      string
	calls     atomic.Int32
	invoke    func(ctx context.Context, args map[string]any) (*Result, error)
	transient func(err error) bool
}

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "fake" }
func (f *fakeTool) ArgsSchema() map[string]any { return map[string]any{"type": "object"} }

func (f *fakeTool) Invoke(ctx context.Context, args map[string]any) (*Result, error) {
	f.calls.Add(1)
	return f.invoke(ctx, args)
}

func (f *fakeTool) IsTransientError(err error) bool {
	if f.transient != nil {
		return f.transient(err)
	}
	return false
}

func newTestInvoker(t *testing.T, reg *Registry, maxCalls, retries int) *Invoker {
	t.Helper()
	inv := NewInvoker(reg, NewCache(time.Minute), NewLedger(maxCalls), metrics.NewNop(),
		time.Second, retries)
	inv.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return inv
}

func TestInvoke_SuccessRecordsLedgerAndCache(t *testing.T) {
	reg := NewRegistry()
	ft := &fakeTool{name: "t", invoke: func(ctx context.Context, args map[string]any) (*Result, error) {
		return &Result{Text: "data"}, nil
	}}
	reg.Register(ft)
	inv := newTestInvoker(t, reg, 3, 2)

	args := map[string]any{"ticker": "AAPL"}
	res, err := inv.Invoke(context.Background(), models.AnalystMarket, "t", args)
	require.NoError(t, err)
	assert.Equal(t, "data", res.Text)
	assert.Equal(t, 1, inv.Total(models.AnalystMarket))

	// Second identical invocation is served from cache: no new tool call,
	// no budget debit.
	res, err = inv.Invoke(context.Background(), models.AnalystMarket, "t", args)
	require.NoError(t, err)
	assert.Equal(t, "data", res.Text)
	assert.Equal(t, int32(1), ft.calls.Load())
	assert.Equal(t, 1, inv.Total(models.AnalystMarket))
}

func TestInvoke_CacheSharedAcrossSessions(t *testing.T) {
	reg := NewRegistry()
	ft := &fakeTool{name: "t", invoke: func(ctx context.Context, args map[string]any) (*Result, error) {
		return &Result{Text: "data"}, nil
	}}
	reg.Register(ft)

	cache := NewCache(time.Minute)
	m := metrics.NewNop()
	first := NewInvoker(reg, cache, NewLedger(3), m, time.Second, 0)
	second := NewInvoker(reg, cache, NewLedger(3), m, time.Second, 0)

	args := map[string]any{"ticker": "AAPL"}
	_, err := first.Invoke(context.Background(), models.AnalystMarket, "t", args)
	require.NoError(t, err)
	_, err = second.Invoke(context.Background(), models.AnalystMarket, "t", args)
	require.NoError(t, err)

	assert.Equal(t, int32(1), ft.calls.Load(), "second session should hit the cache")
	assert.Equal(t, 0, second.Total(models.AnalystMarket))
}

func TestInvoke_TransientRetriesThenSucceeds(t *testing.T) {
	reg := NewRegistry()
	var n atomic.Int32
	ft := &fakeTool{
		name: "t",
		invoke: func(ctx context.Context, args map[string]any) (*Result, error) {
			if n.Add(1) < 3 {
				return nil, errors.New("connection reset")
			}
			return &Result{Text: "ok"}, nil
		},
		transient: func(err error) bool { return true },
	}
	reg.Register(ft)
	inv := newTestInvoker(t, reg, 3, 2)

	res, err := inv.Invoke(context.Background(), models.AnalystNews, "t", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, int32(3), ft.calls.Load())
}

func TestInvoke_TransientExhausted(t *testing.T) {
	reg := NewRegistry()
	ft := &fakeTool{
		name: "t",
		invoke: func(ctx context.Context, args map[string]any) (*Result, error) {
			return nil, errors.New("connection reset")
		},
		transient: func(err error) bool { return true },
	}
	reg.Register(ft)
	inv := newTestInvoker(t, reg, 3, 2)

	_, err := inv.Invoke(context.Background(), models.AnalystNews, "t", nil)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindTransientExhausted, te.Kind)
	assert.Equal(t, int32(3), ft.calls.Load(), "initial attempt plus two retries")
	assert.Equal(t, 0, inv.Total(models.AnalystNews), "failed calls are not recorded")
}

func TestInvoke_PermanentErrorNoRetry(t *testing.T) {
	reg := NewRegistry()
	ft := &fakeTool{
		name: "t",
		invoke: func(ctx context.Context, args map[string]any) (*Result, error) {
			return nil, &PermanentError{Cause: errors.New("schema rejected")}
		},
	}
	reg.Register(ft)
	inv := newTestInvoker(t, reg, 3, 2)

	_, err := inv.Invoke(context.Background(), models.AnalystNews, "t", nil)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindPermanent, te.Kind)
	assert.Equal(t, int32(1), ft.calls.Load())
}

func TestInvoke_UnknownTool(t *testing.T) {
	inv := newTestInvoker(t, NewRegistry(), 3, 0)
	_, err := inv.Invoke(context.Background(), models.AnalystNews, "nope", nil)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindUnknownTool, te.Kind)
}

func TestInvoke_EmptyEnvelopePassedThrough(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "t", invoke: func(ctx context.Context, args map[string]any) (*Result, error) {
		return EmptyResult("no posts found"), nil
	}})
	inv := newTestInvoker(t, reg, 3, 0)

	res, err := inv.Invoke(context.Background(), models.AnalystSocial, "t", nil)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Contains(t, res.Text, "No data available")
	assert.Equal(t, false, res.Meta["data_available"])
}

func TestExecuteParallel_ResultsInRequestOrder(t *testing.T) {
	reg := NewRegistry()
	mk := func(name string, delay time.Duration) *fakeTool {
		return &fakeTool{name: name, invoke: func(ctx context.Context, args map[string]any) (*Result, error) {
			time.Sleep(delay)
			return &Result{Text: name + " data"}, nil
		}}
	}
	reg.Register(mk("slow", 50*time.Millisecond))
	reg.Register(mk("fast", 0))
	inv := newTestInvoker(t, reg, 10, 0)

	calls := []models.ToolCall{
		{ID: "c1", Name: "slow"},
		{ID: "c2", Name: "fast"},
	}
	msgs := inv.ExecuteParallel(context.Background(), models.AnalystMarket, calls)
	require.Len(t, msgs, 2)
	assert.Equal(t, "c1", msgs[0].ToolCallID)
	assert.Equal(t, "slow data", msgs[0].Content)
	assert.Equal(t, "c2", msgs[1].ToolCallID)
	assert.Equal(t, "fast data", msgs[1].Content)
}

func TestExecuteParallel_FailureIsolated(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "good", invoke: func(ctx context.Context, args map[string]any) (*Result, error) {
		return &Result{Text: "ok"}, nil
	}})
	reg.Register(&fakeTool{name: "bad", invoke: func(ctx context.Context, args map[string]any) (*Result, error) {
		return nil, &PermanentError{Cause: errors.New("boom")}
	}})
	inv := newTestInvoker(t, reg, 10, 0)

	msgs := inv.ExecuteParallel(context.Background(), models.AnalystMarket, []models.ToolCall{
		{ID: "c1", Name: "bad"},
		{ID: "c2", Name: "good"},
	})
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "Error:")
	assert.Equal(t, "ok", msgs[1].Content)
}
