package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveSink(t *testing.T) {
	ctx := context.Background()
	a, err := OpenArchive(filepath.Join(t.TempDir(), "archive", "submissions.db"))
	require.NoError(t, err)
	defer a.Close()

	first := sampleSubmission()
	second := sampleSubmission()
	second.ID = "sub-2"
	second.Form = "faculty"
	second.Values = map[string]any{"facultyName": "Engineering"}
	second.SubmittedAt = first.SubmittedAt.Add(time.Minute)

	require.NoError(t, a.Submit(ctx, first))
	require.NoError(t, a.Submit(ctx, second))
	require.NoError(t, a.Submit(ctx, first), "duplicate IDs are ignored")

	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := a.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "sub-2", all[0].ID)

	only, err := a.List(ctx, "college-programs", 10)
	require.NoError(t, err)
	require.Len(t, only, 1)
	if diff := cmp.Diff(first, only[0]); diff != "" {
		t.Errorf("stored submission mismatch (-want +got):\n%s", diff)
	}

	assert.NoError(t, a.Ping(ctx))
}

func TestJetStreamSink(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	emb, err := StartEmbedded(t.TempDir())
	require.NoError(t, err)

	s, err := NewJetStreamSink(ctx, emb.Conn)
	require.NoError(t, err)

	sub := sampleSubmission()
	require.NoError(t, s.Submit(ctx, sub))
	// Same ID is de-duplicated by the stream.
	require.NoError(t, s.Submit(ctx, sub))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	assert.Equal(t, "edureg.submissions.college-programs", Subject("College Programs"))
	require.NoError(t, emb.Close())
}
