package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	commonerrors "customer-insights/internal/common/errors"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/common/metrics"
	"customer-insights/internal/common/observability"
	"customer-insights/internal/insights/fallback"
	"customer-insights/internal/insights/response"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoAnswerMessage is returned when the backend failed and no offline answer matches.
const NoAnswerMessage = "I'm sorry, I don't have this information right now. " +
	"Please try again later or rephrase your question."

var (
	ErrTransportFailure    = errors.New("TRANSPORT_FAILURE")
	ErrUpstreamTimeout     = errors.New("UPSTREAM_TIMEOUT")
	ErrEmptyResult         = errors.New("EMPTY_RESULT")
	ErrNoFallbackAvailable = errors.New("NO_FALLBACK_AVAILABLE")
)

// Upstream is the analytics backend. Implementations must honour ctx cancellation
// and return ErrTransportFailure (or ErrUpstreamTimeout) wrapped for failed calls.
type Upstream interface {
	CallGeneral(ctx context.Context, question string) (response.Raw, error)
	CallScoped(ctx context.Context, question, customerID string) (response.Raw, error)
}

type Config struct {
	// Timeout bounds a single upstream call. Zero leaves the caller's deadline alone.
	Timeout time.Duration
}

type Option func(*Dispatcher)

func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

func WithObservability(o *observability.Observability) Option {
	return func(d *Dispatcher) { d.obs = o }
}

// Dispatcher sends a question to the backend and turns whatever comes back, or the
// lack of it, into a response. It never retries: the backend is metered.
type Dispatcher struct {
	upstream Upstream
	kb       *fallback.KnowledgeBase
	config   Config
	logger   logger.Logger
	tracer   trace.Tracer
	obs      *observability.Observability
}

func NewDispatcher(upstream Upstream, kb *fallback.KnowledgeBase, config Config, log logger.Logger, opts ...Option) *Dispatcher {
	if kb == nil {
		kb = fallback.NewKnowledgeBase()
	}
	d := &Dispatcher{
		upstream: upstream,
		kb:       kb,
		config:   config,
		logger:   log.With(map[string]interface{}{"component": "dispatcher"}),
		tracer:   noop.NewTracerProvider().Tracer("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result is the full account of one dispatch.
type Result struct {
	Response response.Response
	// State is the terminal state: StateSuccess, StateFallbackHit or StateFallbackMiss.
	State State
	// Trail lists every state visited, starting and ending with StateIdle.
	Trail   []State
	Outcome response.Outcome
	// Topic is the matched knowledge base topic on StateFallbackHit.
	Topic string
	// Err is the recovered upstream failure. It is nil on StateSuccess.
	Err      error
	Duration time.Duration

	Question string
	// Variant is "general" or "scoped".
	Variant string
	// Timeout is the per-call bound that was applied, zero when none.
	Timeout time.Duration
}

// Source says where the answer came from: "upstream", "fallback" or "apology".
func (r Result) Source() string {
	switch r.State {
	case StateSuccess:
		return "upstream"
	case StateFallbackHit:
		return "fallback"
	default:
		return "apology"
	}
}

// Code is the error code describing the dispatch, empty on success.
func (r Result) Code() string {
	switch {
	case r.State == StateSuccess:
		return ""
	case r.State == StateFallbackMiss:
		return ErrNoFallbackAvailable.Error()
	case errors.Is(r.Err, ErrEmptyResult):
		return ErrEmptyResult.Error()
	case errors.Is(r.Err, ErrUpstreamTimeout):
		return ErrUpstreamTimeout.Error()
	default:
		return ErrTransportFailure.Error()
	}
}

// StandardError describes what went wrong during the dispatch. It is nil for a
// clean answer and informational for an unparsable one.
func (r Result) StandardError() *commonerrors.StandardError {
	switch {
	case r.State == StateSuccess && r.Outcome == response.OutcomeUnparsable:
		return commonerrors.NewUnparsablePayloadError(fmt.Sprintf("variant: %s", r.Variant))
	case r.State == StateSuccess:
		return nil
	case r.State == StateFallbackMiss:
		stdErr := commonerrors.NewNoFallbackAvailableError(r.Question)
		if r.Err != nil {
			stdErr.Metadata = map[string]interface{}{"cause": r.Err.Error()}
		}
		return stdErr
	case errors.Is(r.Err, ErrEmptyResult):
		return commonerrors.NewEmptyResultError()
	case errors.Is(r.Err, ErrUpstreamTimeout):
		return commonerrors.NewUpstreamTimeoutError(r.Variant, r.Timeout)
	default:
		return commonerrors.NewTransportFailureError(r.Variant, r.Err)
	}
}

// Ask answers the question. customerScope selects the scoped backend call when non-empty.
func (d *Dispatcher) Ask(ctx context.Context, question, customerScope string) response.Response {
	return d.Resolve(ctx, question, customerScope).Response
}

// Resolve is Ask with the state trail and the recovered error.
func (d *Dispatcher) Resolve(ctx context.Context, question, customerScope string) Result {
	start := time.Now()
	variant := "general"
	if customerScope != "" {
		variant = "scoped"
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.ask", trace.WithAttributes(
		attribute.String("insights.variant", variant),
	))
	defer span.End()

	res := Result{
		Trail:    []State{StateIdle, StateDispatching},
		Question: question,
		Variant:  variant,
		Timeout:  d.config.Timeout,
	}

	raw, err := d.call(ctx, question, customerScope, variant)
	if err == nil {
		resp, outcome := response.Interpret(raw, question)
		res.Outcome = outcome
		if outcome != response.OutcomeEmpty {
			res.Response = resp
			res.finish(StateSuccess, start)
			d.report(ctx, span, variant, res)
			return res
		}
		err = ErrEmptyResult
	}

	res.Err = err
	res.Trail = append(res.Trail, StateFailed, StateFallbackLookup)

	entry, ok := d.kb.Match(question)
	if ok {
		res.Topic = entry.Topic
		res.Response = entry.Response
		res.finish(StateFallbackHit, start)
	} else {
		res.Response = response.Response{Message: NoAnswerMessage}
		res.finish(StateFallbackMiss, start)
	}

	span.RecordError(err)
	d.report(ctx, span, variant, res)
	return res
}

func (d *Dispatcher) call(ctx context.Context, question, customerScope, variant string) (raw response.Raw, err error) {
	if d.upstream == nil {
		return response.Empty(), fmt.Errorf("%w: no upstream configured", ErrTransportFailure)
	}

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			raw = response.Empty()
			err = fmt.Errorf("%w: upstream panic: %v", ErrTransportFailure, r)
		}
	}()

	callStart := time.Now()
	if customerScope != "" {
		raw, err = d.upstream.CallScoped(ctx, question, customerScope)
	} else {
		raw, err = d.upstream.CallGeneral(ctx, question)
	}
	metrics.UpstreamDuration.WithLabelValues(variant).Observe(time.Since(callStart).Seconds())

	return raw, classify(ctx, err)
}

// classify makes every failure match ErrTransportFailure; deadlines also match ErrUpstreamTimeout.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	timedOut := errors.Is(err, ErrUpstreamTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded)

	switch {
	case timedOut && errors.Is(err, ErrTransportFailure):
		if errors.Is(err, ErrUpstreamTimeout) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	case timedOut:
		return fmt.Errorf("%w: %w: %v", ErrTransportFailure, ErrUpstreamTimeout, err)
	case errors.Is(err, ErrTransportFailure):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
}

func (r *Result) finish(terminal State, start time.Time) {
	r.State = terminal
	r.Trail = append(r.Trail, terminal, StateIdle)
	r.Duration = time.Since(start)
}

func (d *Dispatcher) report(ctx context.Context, span trace.Span, variant string, res Result) {
	fields := map[string]interface{}{
		"variant":    variant,
		"state":      res.State.String(),
		"source":     res.Source(),
		"outcome":    string(res.Outcome),
		"durationMs": res.Duration.Milliseconds(),
	}

	span.SetAttributes(
		attribute.String("insights.state", res.State.String()),
		attribute.String("insights.source", res.Source()),
	)

	metrics.DispatchTotal.WithLabelValues(res.State.String(), string(res.Outcome)).Inc()
	d.obs.RecordAnswer(ctx, res.Source())

	stdErr := res.StandardError()
	if stdErr != nil {
		fields["errorCode"] = string(stdErr.Code)
		fields["errorDetails"] = stdErr.Details
	}

	switch res.State {
	case StateSuccess:
		if stdErr != nil {
			d.logger.Warn("upstream payload not parseable, using raw text", fields)
		} else {
			d.logger.Info("question answered", fields)
		}
	default:
		fields["error"] = res.Err.Error()
		fields["topic"] = res.Topic
		metrics.FallbackLookups.WithLabelValues(res.Topic).Inc()
		d.obs.RecordFallback(ctx, res.Topic)
		if res.State == StateFallbackMiss {
			span.SetStatus(codes.Error, res.Code())
			d.logger.Warn("upstream failed and no fallback matched", fields)
		} else {
			d.logger.Warn("upstream failed, served fallback answer", fields)
		}
	}
}
