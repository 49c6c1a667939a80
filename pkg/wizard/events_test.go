package wizard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSink{}
	c := New(threeStepSchema(t), WithSink(rec), WithScheduler(&fakeScheduler{}))

	require.NoError(t, c.HandleEvent(ctx, EventNext, nil))
	assert.Equal(t, "Name please", c.Errors()["name"])

	require.NoError(t, c.HandleEvent(ctx, EventUpdateField, map[string]any{"field": "name", "value": "Ada"}))
	require.NoError(t, c.HandleEvent(ctx, EventNext, nil))
	assert.Equal(t, 1, c.Current())

	require.NoError(t, c.HandleEvent(ctx, EventPrevious, nil))
	assert.Equal(t, 0, c.Current())

	require.NoError(t, c.HandleEvent(ctx, EventGoto, map[string]any{"step": float64(1)}))
	assert.Equal(t, 1, c.Current())

	require.NoError(t, c.HandleEvent(ctx, EventValidate, nil))
	assert.Contains(t, c.Errors(), "count")

	require.NoError(t, c.HandleEvent(ctx, EventUpdateField, map[string]any{"field": "count", "value": "4"}))
	require.NoError(t, c.HandleEvent(ctx, EventNext, nil))
	require.NoError(t, c.HandleEvent(ctx, EventSubmit, nil))
	assert.True(t, c.Submitted())
	assert.Equal(t, 1, rec.count())

	require.NoError(t, c.HandleEvent(ctx, EventReset, nil))
	assert.False(t, c.Submitted())
	assert.Equal(t, 0, c.Current())
}

func TestHandleEventErrors(t *testing.T) {
	ctx := context.Background()
	c := New(threeStepSchema(t))

	assert.ErrorIs(t, c.HandleEvent(ctx, "explode", nil), ErrUnknownEvent)
	assert.Error(t, c.HandleEvent(ctx, EventUpdateField, map[string]any{"value": "x"}))
	assert.Error(t, c.HandleEvent(ctx, EventGoto, map[string]any{"step": "two"}))
	assert.Error(t, c.HandleEvent(ctx, EventGoto, map[string]any{"step": 1.5}))
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{3, 3, true},
		{int64(2), 2, true},
		{float64(4), 4, true},
		{" 5 ", 5, true},
		{2.5, 0, false},
		{nil, 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		got, ok := intArg(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if ok {
			assert.Equal(t, tt.want, got, "%v", tt.in)
		}
	}
}
