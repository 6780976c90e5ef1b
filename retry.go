package structout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/reoring/structout/classify"
	"github.com/reoring/structout/internal/logging"
	"github.com/reoring/structout/metrics"
)

// ValidationRetryDelay is the pause before re-asking after a validation
// failure.
const ValidationRetryDelay = 500 * time.Millisecond

const tracerName = "github.com/reoring/structout"

// Reply is the raw backend output of one attempt.
type Reply struct {
	Text  string
	Usage *TokenUsage
}

// CallFunc performs one backend call with the given conversation. Failed
// responses should be reported as *TransportError.
type CallFunc func(ctx context.Context, msgs []Message) (Reply, error)

// ParseFunc turns raw backend text into T. Failures should be reported as
// *ValidationError; other errors are wrapped into one.
type ParseFunc[T any] func(raw string) (T, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Result is the outcome of MaterializeWithRetry. On failure Value is the
// zero value but the other fields still describe what happened.
type Result[T any] struct {
	Value T
	// Raw is the backend text that produced Value.
	Raw   string
	Usage TokenUsage
	// Attempts is the number of backend calls made.
	Attempts int
	// History is the final conversation, including retry turns.
	History []Message
	CallID  string
}

type retryConfig struct {
	logger          *zap.Logger
	metrics         *metrics.Collectors
	tracer          trace.Tracer
	sleep           SleepFunc
	validationDelay time.Duration
	maxBackoff      time.Duration
	feedback        FeedbackFunc
	callID          string
}

// RetryOption configures MaterializeWithRetry.
type RetryOption func(*retryConfig)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) RetryOption {
	return func(c *retryConfig) { c.logger = logging.OrNop(l) }
}

// WithMetrics records attempts, retries and results.
func WithMetrics(m *metrics.Collectors) RetryOption {
	return func(c *retryConfig) { c.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) RetryOption {
	return func(c *retryConfig) { c.tracer = t }
}

// WithSleep replaces the context-aware timer used between attempts.
func WithSleep(fn SleepFunc) RetryOption {
	return func(c *retryConfig) { c.sleep = fn }
}

// WithValidationDelay overrides ValidationRetryDelay.
func WithValidationDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) { c.validationDelay = d }
}

// WithMaxBackoff caps server-suggested delays. Zero means no cap.
func WithMaxBackoff(d time.Duration) RetryOption {
	return func(c *retryConfig) { c.maxBackoff = d }
}

// WithFeedback replaces the retry feedback text.
func WithFeedback(fn FeedbackFunc) RetryOption {
	return func(c *retryConfig) { c.feedback = fn }
}

// WithCallID sets the identifier attached to logs and spans. By default a
// random UUID is generated per call.
func WithCallID(id string) RetryOption {
	return func(c *retryConfig) { c.callID = id }
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MaterializeWithRetry drives call and parse until a response validates or
// the attempt budget is spent. maxRetries extra attempts follow the first;
// zero means exactly one attempt whose error is returned verbatim.
//
// After a validation failure the failed response and a correction request
// are appended to the conversation so the backend sees what it did wrong.
// Retryable transport errors are retried after their backoff with the
// conversation unchanged. Any other error ends the loop immediately.
func MaterializeWithRetry[T any](ctx context.Context, initial []Message, maxRetries int, call CallFunc, parse ParseFunc[T], opts ...RetryOption) (Result[T], error) {
	cfg := retryConfig{
		logger:          zap.NewNop(),
		sleep:           sleepContext,
		validationDelay: ValidationRetryDelay,
		feedback:        DefaultFeedback,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}
	if cfg.callID == "" {
		cfg.callID = uuid.NewString()
	}

	res := Result[T]{CallID: cfg.callID, History: append([]Message(nil), initial...)}
	if call == nil || parse == nil {
		return res, ErrNoAttempts
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	maxAttempts := maxRetries + 1
	log := cfg.logger.With(zap.String("call_id", cfg.callID))

	ctx, span := cfg.tracer.Start(ctx, "structout.materialize", trace.WithAttributes(
		attribute.String("structout.call_id", cfg.callID),
		attribute.Int("structout.max_attempts", maxAttempts),
	))
	defer span.End()

	finish := func(err error) (Result[T], error) {
		span.SetAttributes(attribute.Int("structout.attempts", res.Attempts))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			cfg.metrics.Result(outcomeOf(err))
			return res, err
		}
		span.SetStatus(codes.Ok, "")
		cfg.metrics.Result(metrics.OutcomeSuccess)
		return res, nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		last := attempt == maxAttempts-1
		log.Info("generation attempt",
			zap.Int("attempt", attempt+1),
			zap.Int("total_attempts", maxAttempts),
			zap.Int("history_len", len(res.History)))

		value, raw, err := runAttempt(ctx, cfg, &res, attempt, call, parse)
		if err == nil {
			res.Value, res.Raw = value, raw
			if attempt > 0 {
				log.Info("generated after retries", zap.Int("attempts_used", attempt+1))
			} else {
				log.Debug("generated on first attempt")
			}
			return finish(nil)
		}

		if maxRetries == 0 {
			return finish(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Error("generation cancelled", zap.Error(err))
			return finish(fmt.Errorf("structout: %w", ctxErr))
		}

		var ve *ValidationError
		var te *TransportError
		switch {
		case errors.As(err, &ve):
			if last {
				log.Error("failed after maximum retry attempts with validation errors",
					zap.Int("attempts", maxAttempts), zap.String("error", ve.Message))
				return finish(&ExhaustedError{Attempts: res.Attempts, Last: err})
			}
			log.Warn("validation error in generation attempt",
				zap.Int("attempt", attempt+1), zap.String("error", ve.Message))
			res.History = appendFeedback(log, res.History, ve, cfg.feedback)
			cfg.metrics.Retry(metrics.OutcomeValidation)
			if err := cfg.sleep(ctx, cfg.validationDelay); err != nil {
				return finish(fmt.Errorf("structout: %w", err))
			}

		case errors.As(err, &te) && te.Retryable():
			if last {
				log.Error("failed after maximum retry attempts",
					zap.Int("attempts", maxAttempts), zap.Error(err))
				return finish(&ExhaustedError{Attempts: res.Attempts, Last: err})
			}
			delay := te.Backoff()
			if cfg.maxBackoff > 0 && delay > cfg.maxBackoff {
				delay = cfg.maxBackoff
			}
			log.Warn("retryable backend error, waiting before retry",
				zap.Int("attempt", attempt+1),
				zap.Stringer("kind", te.Kind.Kind),
				zap.Duration("delay", delay),
				zap.Error(err))
			cfg.metrics.Retry(te.Kind.Kind.String())
			if err := cfg.sleep(ctx, delay); err != nil {
				return finish(fmt.Errorf("structout: %w", err))
			}

		default:
			log.Error("non-retryable error during generation", zap.Error(err))
			return finish(err)
		}
	}
	// unreachable: the last attempt always returns
	return finish(ErrNoAttempts)
}

// runAttempt performs one call plus parse inside its own span.
func runAttempt[T any](ctx context.Context, cfg retryConfig, res *Result[T], attempt int, call CallFunc, parse ParseFunc[T]) (T, string, error) {
	var zero T
	ctx, span := cfg.tracer.Start(ctx, "structout.attempt", trace.WithAttributes(
		attribute.Int("structout.attempt", attempt+1),
		attribute.Int("structout.history_len", len(res.History)),
	))
	defer span.End()
	start := time.Now()

	res.Attempts++
	reply, err := call(ctx, append([]Message(nil), res.History...))
	if reply.Usage != nil {
		res.Usage = res.Usage.Add(*reply.Usage)
	}
	if err != nil {
		err = normalizeCallError(ctx, err)
		recordAttempt(cfg, span, start, err)
		return zero, "", err
	}

	v, err := parse(reply.Text)
	if err != nil {
		if _, ok := AsValidationError(err); !ok {
			err = &ValidationError{Message: err.Error(), RawResponse: reply.Text, Cause: err}
		}
		recordAttempt(cfg, span, start, err)
		return zero, reply.Text, err
	}
	recordAttempt(cfg, span, start, nil)
	return v, reply.Text, nil
}

// normalizeCallError classifies plain timeout errors so they are retried
// like any other transient failure.
func normalizeCallError(ctx context.Context, err error) error {
	if _, ok := AsTransportError(err); ok {
		return err
	}
	if _, ok := AsValidationError(err); ok {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	if k := classify.FromError(err); k.Kind == classify.Timeout {
		return &TransportError{Kind: k, Cause: err}
	}
	return err
}

func recordAttempt(cfg retryConfig, span trace.Span, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = outcomeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("structout.outcome", outcome))
	cfg.metrics.ObserveAttempt(outcome, time.Since(start))
}

func outcomeOf(err error) string {
	if _, ok := AsValidationError(err); ok {
		return metrics.OutcomeValidation
	}
	if _, ok := AsTransportError(err); ok {
		return metrics.OutcomeTransport
	}
	return metrics.OutcomeOther
}

// appendFeedback adds the failed response and a correction request. The
// history is left unchanged when the raw response is unknown or the last
// turn is not a user turn, since either would break role alternation.
func appendFeedback(log *zap.Logger, history []Message, ve *ValidationError, feedback FeedbackFunc) []Message {
	if ve.RawResponse == "" {
		log.Warn("validation error without raw response; retrying without feedback")
		return history
	}
	if n := len(history); n == 0 || history[n-1].Role != RoleUser {
		log.Warn("conversation does not end with a user turn; retrying without feedback")
		return history
	}
	history = append(history, AssistantMessage(ve.RawResponse), UserMessage(feedback(ve.Message)))
	log.Debug("updated conversation history for retry", zap.Int("history_len", len(history)))
	return history
}
