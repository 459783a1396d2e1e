package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	commonerrors "customer-insights/internal/common/errors"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/insights/chart"
	"customer-insights/internal/insights/fallback"
	"customer-insights/internal/insights/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	general func(ctx context.Context, question string) (response.Raw, error)
	scoped  func(ctx context.Context, question, customerID string) (response.Raw, error)

	generalCalls atomic.Int32
	scopedCalls  atomic.Int32
	lastCustomer atomic.Value
}

func (f *fakeUpstream) CallGeneral(ctx context.Context, question string) (response.Raw, error) {
	f.generalCalls.Add(1)
	return f.general(ctx, question)
}

func (f *fakeUpstream) CallScoped(ctx context.Context, question, customerID string) (response.Raw, error) {
	f.scopedCalls.Add(1)
	f.lastCustomer.Store(customerID)
	return f.scoped(ctx, question, customerID)
}

func failing(err error) *fakeUpstream {
	fn := func(context.Context, string) (response.Raw, error) { return response.Empty(), err }
	return &fakeUpstream{
		general: fn,
		scoped: func(ctx context.Context, q, _ string) (response.Raw, error) {
			return fn(ctx, q)
		},
	}
}

func returning(raw response.Raw) *fakeUpstream {
	fn := func(context.Context, string) (response.Raw, error) { return raw, nil }
	return &fakeUpstream{
		general: fn,
		scoped: func(ctx context.Context, q, _ string) (response.Raw, error) {
			return fn(ctx, q)
		},
	}
}

func newTestDispatcher(t *testing.T, up Upstream, timeout time.Duration) *Dispatcher {
	return NewDispatcher(up, fallback.NewKnowledgeBase(), Config{Timeout: timeout}, logger.NewTestLogger(t))
}

func TestResolve_TransportFailureServesSupportFallback(t *testing.T) {
	up := failing(fmt.Errorf("%w: connection refused", ErrTransportFailure))
	d := newTestDispatcher(t, up, time.Second)

	res := d.Resolve(context.Background(), "What are the most common support issues?", "")

	assert.Equal(t, StateFallbackHit, res.State)
	assert.Equal(t, "support", res.Topic)
	assert.Equal(t, "fallback", res.Source())
	assert.Equal(t, "TRANSPORT_FAILURE", res.Code())
	assert.Equal(t, []State{StateIdle, StateDispatching, StateFailed, StateFallbackLookup, StateFallbackHit, StateIdle}, res.Trail)

	require.NotNil(t, res.Response.Data)
	assert.Equal(t, 3, res.Response.Data.Rows())
	for i, issue := range []string{"Billing", "Shipping", "Technical"} {
		assert.Equal(t, issue, res.Response.Data.Cell(i, "Issue Type").String())
	}
	assert.Nil(t, res.Response.Chart)
	assert.Equal(t, int32(1), up.generalCalls.Load())
}

func TestResolve_SuccessNormalizes(t *testing.T) {
	up := returning(response.Text(`{
		"message": "Revenue by tier",
		"data": [{"tier":"Gold","revenue":10},{"tier":"Gold","revenue":5},{"tier":"Silver","revenue":3},{"tier":"Silver","revenue":2}]
	}`))
	d := newTestDispatcher(t, up, time.Second)

	res := d.Resolve(context.Background(), "Create a chart of revenue by customer tier", "")

	assert.Equal(t, StateSuccess, res.State)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Code())
	assert.Equal(t, "upstream", res.Source())
	assert.Equal(t, response.OutcomeStructured, res.Outcome)
	assert.Equal(t, []State{StateIdle, StateDispatching, StateSuccess, StateIdle}, res.Trail)
	assert.Equal(t, "Revenue by tier", res.Response.Message)
	require.NotNil(t, res.Response.Chart)
	assert.Equal(t, chart.CategoricalDistribution, res.Response.Chart.Archetype)
}

func TestResolve_ScopedVariant(t *testing.T) {
	up := returning(response.Text("Acme is a healthy account."))
	d := newTestDispatcher(t, up, time.Second)

	got := d.Ask(context.Background(), "How is this customer doing?", "CUST-042")

	assert.Equal(t, "Acme is a healthy account.", got.Message)
	assert.Equal(t, int32(1), up.scopedCalls.Load())
	assert.Equal(t, int32(0), up.generalCalls.Load())
	assert.Equal(t, "CUST-042", up.lastCustomer.Load())
}

func TestResolve_EmptyResultFallsBack(t *testing.T) {
	tests := []struct {
		name string
		raw  response.Raw
	}{
		{"empty", response.Empty()},
		{"blank text", response.Text("  ")},
		{"blank message no data", response.Structured(map[string]any{"message": ""})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, returning(tt.raw), time.Second)
			res := d.Resolve(context.Background(), "Which customers are at risk of churning?", "")

			assert.Equal(t, StateFallbackHit, res.State)
			assert.Equal(t, "churn", res.Topic)
			assert.True(t, errors.Is(res.Err, ErrEmptyResult))
			assert.Equal(t, "EMPTY_RESULT", res.Code())
			assert.Equal(t, 3, res.Response.Data.Rows())
		})
	}
}

func TestResolve_FallbackMiss(t *testing.T) {
	d := newTestDispatcher(t, failing(errors.New("dial tcp: refused")), time.Second)

	res := d.Resolve(context.Background(), "weather today", "")

	assert.Equal(t, StateFallbackMiss, res.State)
	assert.Equal(t, NoAnswerMessage, res.Response.Message)
	assert.Nil(t, res.Response.Data)
	assert.Nil(t, res.Response.Chart)
	assert.Equal(t, "apology", res.Source())
	assert.Equal(t, "NO_FALLBACK_AVAILABLE", res.Code())
	assert.True(t, errors.Is(res.Err, ErrTransportFailure))
	assert.Equal(t, StateIdle, res.Trail[len(res.Trail)-1])
}

func TestResolve_TimeoutIsTransportFailure(t *testing.T) {
	up := &fakeUpstream{
		general: func(ctx context.Context, _ string) (response.Raw, error) {
			<-ctx.Done()
			return response.Empty(), ctx.Err()
		},
	}
	d := newTestDispatcher(t, up, 20*time.Millisecond)

	res := d.Resolve(context.Background(), "Show me upsell ideas", "")

	assert.Equal(t, StateFallbackHit, res.State)
	assert.Equal(t, "revenue", res.Topic)
	assert.True(t, errors.Is(res.Err, ErrTransportFailure))
	assert.True(t, errors.Is(res.Err, ErrUpstreamTimeout))
	assert.Equal(t, "UPSTREAM_TIMEOUT", res.Code())
	assert.Less(t, res.Duration, 2*time.Second)
}

func TestResolve_NoRetries(t *testing.T) {
	up := failing(errors.New("503 service unavailable"))
	d := newTestDispatcher(t, up, time.Second)

	d.Ask(context.Background(), "support tickets", "")
	d.Ask(context.Background(), "support tickets", "")

	assert.Equal(t, int32(2), up.generalCalls.Load())
}

func TestResolve_UpstreamPanicIsRecovered(t *testing.T) {
	up := &fakeUpstream{
		general: func(context.Context, string) (response.Raw, error) { panic("driver bug") },
	}
	d := newTestDispatcher(t, up, time.Second)

	res := d.Resolve(context.Background(), "churn", "")
	assert.Equal(t, StateFallbackHit, res.State)
	assert.True(t, errors.Is(res.Err, ErrTransportFailure))
}

func TestResolve_NilUpstream(t *testing.T) {
	d := NewDispatcher(nil, nil, Config{}, logger.NewNoOpLogger())
	res := d.Resolve(context.Background(), "support", "")
	assert.Equal(t, StateFallbackHit, res.State)
}

func TestResolve_UnparsablePayloadIsStillAnAnswer(t *testing.T) {
	d := newTestDispatcher(t, returning(response.Text(`{"message": "trunc`)), time.Second)

	res := d.Resolve(context.Background(), "churn risk", "")
	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, response.OutcomeUnparsable, res.Outcome)
	assert.Equal(t, `{"message": "trunc`, res.Response.Message)
}

func TestAsk_Concurrent(t *testing.T) {
	d := newTestDispatcher(t, failing(errors.New("down")), time.Second)
	questions := []string{"churn", "revenue", "support", "weather"}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			assert.NotEmpty(t, d.Ask(context.Background(), q, "").Message)
		}(questions[i%len(questions)])
	}
	wg.Wait()
}

func TestAsk_FallbackAnswersAreIndependent(t *testing.T) {
	up := failing(fmt.Errorf("%w: connection refused", ErrTransportFailure))
	d := newTestDispatcher(t, up, time.Second)
	ctx := context.Background()

	first := d.Ask(ctx, "What are the most common support issues?", "")
	require.NotNil(t, first.Data)
	col, ok := first.Data.Column("Issue Type")
	require.True(t, ok)
	col.Values[0] = col.Values[1]
	first.Message = "edited"

	second := d.Ask(ctx, "What are the most common support issues?", "")
	require.NotNil(t, second.Data)
	assert.Equal(t, "Billing", second.Data.Cell(0, "Issue Type").String())
	assert.NotEqual(t, "edited", second.Message)
	assert.NotSame(t, first.Data, second.Data)
}

func TestResult_StandardError(t *testing.T) {
	ctx := context.Background()

	t.Run("success has none", func(t *testing.T) {
		res := newTestDispatcher(t, returning(response.Text("All good.")), time.Second).Resolve(ctx, "churn", "")
		assert.Nil(t, res.StandardError())
	})

	t.Run("unparsable payload is informational", func(t *testing.T) {
		res := newTestDispatcher(t, returning(response.Text(`{"message": "trunc`)), time.Second).Resolve(ctx, "churn", "C1")
		stdErr := res.StandardError()
		require.NotNil(t, stdErr)
		assert.Equal(t, commonerrors.ErrCodeUnparsablePayload, stdErr.Code)
		assert.Equal(t, "variant: scoped", stdErr.Details)
		assert.False(t, stdErr.Retryable)
	})

	t.Run("transport failure keeps the cause", func(t *testing.T) {
		cause := fmt.Errorf("%w: connection refused", ErrTransportFailure)
		res := newTestDispatcher(t, failing(cause), time.Second).Resolve(ctx, "support", "")
		stdErr := res.StandardError()
		require.NotNil(t, stdErr)
		assert.Equal(t, commonerrors.ErrCodeTransportFailure, stdErr.Code)
		assert.True(t, errors.Is(stdErr, ErrTransportFailure))
		assert.Contains(t, stdErr.Details, "variant: general")
	})

	t.Run("timeout reports the bound", func(t *testing.T) {
		up := &fakeUpstream{
			general: func(ctx context.Context, _ string) (response.Raw, error) {
				<-ctx.Done()
				return response.Empty(), ctx.Err()
			},
		}
		res := newTestDispatcher(t, up, 20*time.Millisecond).Resolve(ctx, "upsell", "")
		stdErr := res.StandardError()
		require.NotNil(t, stdErr)
		assert.Equal(t, commonerrors.ErrCodeUpstreamTimeout, stdErr.Code)
		assert.Equal(t, "variant: general, timeout: 20ms", stdErr.Details)
	})

	t.Run("empty result", func(t *testing.T) {
		res := newTestDispatcher(t, returning(response.Empty()), time.Second).Resolve(ctx, "churn", "")
		stdErr := res.StandardError()
		require.NotNil(t, stdErr)
		assert.Equal(t, commonerrors.ErrCodeEmptyResult, stdErr.Code)
	})

	t.Run("no fallback names the question", func(t *testing.T) {
		res := newTestDispatcher(t, failing(errors.New("refused")), time.Second).Resolve(ctx, "weather today", "")
		stdErr := res.StandardError()
		require.NotNil(t, stdErr)
		assert.Equal(t, commonerrors.ErrCodeNoFallbackAvailable, stdErr.Code)
		assert.Equal(t, "question: weather today", stdErr.Details)
		assert.Contains(t, stdErr.Metadata["cause"], "refused")
		assert.Equal(t, res.Code(), string(stdErr.Code))
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "fallback_hit", StateFallbackHit.String())
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "unknown", State(99).String())
}
