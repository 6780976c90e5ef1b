package structout_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reoring/structout"
	"github.com/reoring/structout/classify"
	"github.com/reoring/structout/metrics"
)

type movie struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
}

// recorder is a scripted backend that remembers every conversation it saw.
type recorder struct {
	replies []func() (structout.Reply, error)
	seen    [][]structout.Message
}

func (r *recorder) call(_ context.Context, msgs []structout.Message) (structout.Reply, error) {
	r.seen = append(r.seen, msgs)
	i := len(r.seen) - 1
	if i >= len(r.replies) {
		i = len(r.replies) - 1
	}
	return r.replies[i]()
}

func text(s string) func() (structout.Reply, error) {
	return func() (structout.Reply, error) {
		return structout.Reply{Text: s, Usage: &structout.TokenUsage{InputTokens: 10, OutputTokens: 5}}, nil
	}
}

func fail(err error) func() (structout.Reply, error) {
	return func() (structout.Reply, error) { return structout.Reply{}, err }
}

type sleeps struct{ got []time.Duration }

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.got = append(s.got, d)
	return nil
}

func parseMovie(raw string) (movie, error) {
	return structout.NewValidator[movie]().WithHook(func(m *movie) error {
		if m.Year < 1888 {
			return errors.New("year must be 1888 or later")
		}
		return nil
	}).Parse(raw)
}

func TestMaterialize_ValidationRetriesGrowHistory(t *testing.T) {
	rec := &recorder{replies: []func() (structout.Reply, error){text(`{"title":"x","year":1}`)}}
	sl := &sleeps{}
	initial := []structout.Message{structout.UserMessage("give me a movie")}

	res, err := structout.MaterializeWithRetry(context.Background(), initial, 2, rec.call, parseMovie,
		structout.WithSleep(sl.sleep), structout.WithLogger(zaptest.NewLogger(t)))

	var ex *structout.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	ve, ok := structout.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, `{"title":"x","year":1}`, ve.RawResponse)

	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, res.History, 1+2*2)
	assert.True(t, structout.Alternates(res.History))
	assert.Equal(t, structout.RoleAssistant, res.History[1].Role)
	assert.Equal(t, `{"title":"x","year":1}`, res.History[1].Text)
	assert.True(t, strings.HasPrefix(res.History[2].Text, "Your previous response contained validation errors."))
	assert.Contains(t, res.History[2].Text, "year must be 1888 or later")
	assert.Equal(t, []time.Duration{structout.ValidationRetryDelay, structout.ValidationRetryDelay}, sl.got)
	assert.Equal(t, 30, res.Usage.InputTokens)

	// each attempt saw the history as it was at that point
	require.Len(t, rec.seen, 3)
	assert.Len(t, rec.seen[0], 1)
	assert.Len(t, rec.seen[1], 3)
	assert.Len(t, rec.seen[2], 5)
}

func TestMaterialize_SucceedsAfterValidationFailure(t *testing.T) {
	rec := &recorder{replies: []func() (structout.Reply, error){
		text(`not json`),
		text("```json\n{\"title\":\"Inception\",\"year\":2010}\n```"),
	}}
	sl := &sleeps{}
	res, err := structout.MaterializeWithRetry(context.Background(),
		[]structout.Message{structout.UserMessage("movie")}, 3, rec.call, parseMovie, structout.WithSleep(sl.sleep))
	require.NoError(t, err)
	assert.Equal(t, movie{Title: "Inception", Year: 2010}, res.Value)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, res.History, 3)
	assert.Contains(t, res.History[2].Text, "Failed to parse response as JSON")
	assert.NotEmpty(t, res.CallID)
}

func TestMaterialize_NoRetriesSurfacesErrorVerbatim(t *testing.T) {
	transport := structout.NewTransportError(503, "down", "")
	rec := &recorder{replies: []func() (structout.Reply, error){fail(transport)}}
	sl := &sleeps{}

	res, err := structout.MaterializeWithRetry(context.Background(),
		[]structout.Message{structout.UserMessage("movie")}, 0, rec.call, parseMovie, structout.WithSleep(sl.sleep))
	require.Same(t, transport, err)
	assert.Empty(t, sl.got)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, res.History, 1)

	// validation failures are verbatim too
	rec = &recorder{replies: []func() (structout.Reply, error){text(`{}`)}}
	_, err = structout.MaterializeWithRetry(context.Background(),
		[]structout.Message{structout.UserMessage("movie")}, 0, rec.call, parseMovie, structout.WithSleep(sl.sleep))
	var ex *structout.ExhaustedError
	assert.False(t, errors.As(err, &ex))
	_, ok := structout.AsValidationError(err)
	assert.True(t, ok)
	assert.Empty(t, sl.got)
}

func TestMaterialize_RetryableTransportKeepsHistory(t *testing.T) {
	rec := &recorder{replies: []func() (structout.Reply, error){
		fail(structout.NewTransportError(429, "slow down", "5")),
		fail(structout.NewTransportError(502, "bad gateway", "")),
		text(`{"title":"Alien","year":1979}`),
	}}
	sl := &sleeps{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	res, err := structout.MaterializeWithRetry(context.Background(),
		[]structout.Message{structout.UserMessage("movie")}, 2, rec.call, parseMovie,
		structout.WithSleep(sl.sleep), structout.WithMetrics(m))
	require.NoError(t, err)
	assert.Equal(t, "Alien", res.Value.Title)
	assert.Len(t, res.History, 1)
	for _, seen := range rec.seen {
		assert.Len(t, seen, 1)
	}
	assert.Equal(t, []time.Duration{5 * time.Second, classify.DefaultBackoff}, sl.got)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Attempts.WithLabelValues(metrics.OutcomeTransport)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Results.WithLabelValues(metrics.OutcomeSuccess)))
}

func TestMaterialize_MaxBackoffCapsRetryAfter(t *testing.T) {
	rec := &recorder{replies: []func() (structout.Reply, error){
		fail(structout.NewTransportError(429, "", "120")),
		text(`{"title":"Heat","year":1995}`),
	}}
	sl := &sleeps{}
	_, err := structout.MaterializeWithRetry(context.Background(),
		[]structout.Message{structout.UserMessage("movie")}, 1, rec.call, parseMovie,
		structout.WithSleep(sl.sleep), structout.WithMaxBackoff(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Second}, sl.got)
}

func TestMaterialize_NonRetryableStopsImmediately(t *testing.T) {
	auth := structout.NewTransportError(401, "", "")
	rec := &recorder{replies: []func() (structout.Reply, error){fail(auth)}}
	sl := &sleeps{}
	res, err := structout.MaterializeWithRetry(context.Background(),
		[]structout.Message{structout.UserMessage("movie")}, 3, rec.call, parseMovie, structout.WithSleep(sl.sleep))
	require.Same(t, auth, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, sl.got)
}

func TestMaterialize_RetryableAtLastAttemptIsExhausted(t *testing.T) {
	rec := &recorder{replies: []func() (structout.Reply, error){fail(structout.NewTransportError(500, "", ""))}}
	sl := &sleeps{}
	_, err := structout.MaterializeWithRetry(context.Background(),
		[]structout.Message{structout.UserMessage("movie")}, 1, rec.call, parseMovie, structout.WithSleep(sl.sleep))
	var ex *structout.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 2, ex.Attempts)
	te, ok := structout.AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, classify.ServerError, te.Kind.Kind)
	assert.Len(t, sl.got, 1)
}

func TestMaterialize_ValidationWithoutRawKeepsHistory(t *testing.T) {
	rec := &recorder{replies: []func() (structout.Reply, error){
		text(``),
		text(`{"title":"Up","year":2009}`),
	}}
	parse := func(raw string) (movie, error) {
		if raw == "" {
			return movie{}, &structout.ValidationError{Message: "empty"}
		}
		return parseMovie(raw)
	}
	res, err := structout.MaterializeWithRetry(context.Background(),
		[]structout.Message{structout.UserMessage("movie")}, 1, rec.call, parse,
		structout.WithSleep((&sleeps{}).sleep))
	require.NoError(t, err)
	assert.Len(t, res.History, 1)
}

func TestMaterialize_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{replies: []func() (structout.Reply, error){text(`{}`)}}
	_, err := structout.MaterializeWithRetry(ctx,
		[]structout.Message{structout.UserMessage("movie")}, 2, rec.call, parseMovie,
		structout.WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.seen, 1)
}

func TestMaterialize_TimeoutErrorsAreRetried(t *testing.T) {
	rec := &recorder{replies: []func() (structout.Reply, error){
		fail(context.DeadlineExceeded),
		text(`{"title":"Jaws","year":1975}`),
	}}
	sl := &sleeps{}
	res, err := structout.MaterializeWithRetry(context.Background(),
		[]structout.Message{structout.UserMessage("movie")}, 1, rec.call, parseMovie, structout.WithSleep(sl.sleep))
	require.NoError(t, err)
	assert.Equal(t, "Jaws", res.Value.Title)
	assert.Equal(t, []time.Duration{classify.DefaultBackoff}, sl.got)
}

func TestMaterialize_NilCall(t *testing.T) {
	_, err := structout.MaterializeWithRetry[movie](context.Background(), nil, 1, nil, parseMovie)
	require.ErrorIs(t, err, structout.ErrNoAttempts)
}
