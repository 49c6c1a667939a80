package sink

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsche/edureg/pkg/forms"
	"github.com/hsche/edureg/pkg/retry"
)

func sampleSubmission() Submission {
	return Submission{
		ID:          "sub-1",
		Form:        "college-programs",
		SessionID:   "sess-1",
		Values:      forms.Values{"college": "GJU", "totalPrograms": 10.0, "bVocList": []string{"Retail"}},
		SubmittedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func fastRetry() *retry.Config {
	return &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Contains(t, Message(Unavailable(errors.New("dial"))), "unavailable")
	assert.Contains(t, Message(ErrCircuitOpen), "unavailable")
	assert.Contains(t, Message(&ValidationError{Fields: map[string]string{"college": "unknown"}}), "rejected")
	assert.Contains(t, Message(context.DeadlineExceeded), "timed out")
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "two", "a": "one"}}
	assert.Equal(t, "sink: submission rejected: a: one, b: two", err.Error())
	assert.Equal(t, err.Fields, FieldErrors(errors.Join(errors.New("x"), err)))
	assert.Nil(t, FieldErrors(errors.New("plain")))
}

func TestFanout(t *testing.T) {
	var got atomic.Int32
	ok := Func(func(context.Context, Submission) error { got.Add(1); return nil })
	bad := Func(func(context.Context, Submission) error { return Unavailable(errors.New("down")) })

	f := NewFanout(Named{Name: "a", Sink: ok})
	f.Add("b", ok)
	require.NoError(t, f.Submit(context.Background(), sampleSubmission()))
	assert.Equal(t, int32(2), got.Load())

	f.Add("c", bad)
	err := f.Submit(context.Background(), sampleSubmission())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "c:")
	assert.Equal(t, 3, f.Len())
}

func TestReliable_RetriesUnavailable(t *testing.T) {
	calls := 0
	next := Func(func(context.Context, Submission) error {
		calls++
		if calls == 1 {
			return Unavailable(errors.New("reset by peer"))
		}
		return nil
	})

	r := NewReliable("test", next, WithRetry(fastRetry()))
	require.NoError(t, r.Submit(context.Background(), sampleSubmission()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, BreakerClosed, r.Breaker().State())
}

func TestReliable_ValidationNotRetried(t *testing.T) {
	calls := 0
	next := Func(func(context.Context, Submission) error {
		calls++
		return &ValidationError{Fields: map[string]string{"college": "unknown institution"}}
	})

	r := NewReliable("test", next, WithRetry(fastRetry()))
	err := r.Submit(context.Background(), sampleSubmission())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, calls)
}

func TestReliable_OpensCircuit(t *testing.T) {
	calls := 0
	next := Func(func(context.Context, Submission) error {
		calls++
		return Unavailable(errors.New("down"))
	})

	breaker := NewBreaker(&BreakerConfig{MaxErrors: 2, ResetTimeout: time.Hour, SuccessThreshold: 1})
	r := NewReliable("test", next, WithRetry(&retry.Config{MaxRetries: 0}), WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, r.Submit(context.Background(), sampleSubmission()), ErrUnavailable)
	}
	assert.ErrorIs(t, r.Submit(context.Background(), sampleSubmission()), ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []string

	b := NewBreaker(&BreakerConfig{
		MaxErrors:        1,
		ResetTimeout:     time.Minute,
		SuccessThreshold: 2,
		OnStateChange: func(from, to BreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	b.now = func() time.Time { return now }

	b.RecordError()
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, BreakerHalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(&BreakerConfig{MaxErrors: 1, ResetTimeout: time.Second, SuccessThreshold: 1})
	b.now = func() time.Time { return now }

	b.RecordError()
	now = now.Add(2 * time.Second)
	require.NoError(t, b.Allow())

	b.RecordError()
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestLogSink(t *testing.T) {
	s := NewLogSink(nil)
	assert.NoError(t, s.Submit(context.Background(), sampleSubmission()))
}
