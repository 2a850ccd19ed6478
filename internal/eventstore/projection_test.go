package eventstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

func record(t *testing.T, s Store, ev Event, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NoError(t, AppendEvent(t.Context(), s, ev))
}

func TestRunHistoryProjection_CompletedRun(t *testing.T) {
	store := newTestStore(t)
	ev1, err1 := NewRunStarted("r1", "home composting", 12, "stub", "")
	record(t, store, ev1, err1)
	ev2, err2 := NewProgressUpdated("r1", 3, 19, "cluster_topics")
	record(t, store, ev2, err2)

	p := NewRunHistoryProjection(store, 10)
	require.NoError(t, p.Rebuild(t.Context()))

	active, ok := p.Active()
	require.True(t, ok)
	assert.Equal(t, "home composting", active.Keyword)
	assert.Equal(t, 3, active.Current)
	assert.Equal(t, 19, active.Total)
	assert.Empty(t, p.History())

	done, err := NewRunCompleted("r1", 17, 1, 12, 9, 0)
	require.NoError(t, err)
	p.Apply(done)

	history := p.History()
	require.Len(t, history, 1)
	assert.Equal(t, RunStatusCompleted, history[0].Status)
	assert.Equal(t, 17, history[0].Files)
	assert.Equal(t, 9, history[0].Placeholders)
	assert.NotNil(t, history[0].CompletedAt)
	_, ok = p.Active()
	assert.False(t, ok)
}

func TestRunHistoryProjection_FailedRun(t *testing.T) {
	p := NewRunHistoryProjection(newTestStore(t), 10)
	started, err := NewRunStarted("r2", "k", 10, "stub", "")
	require.NoError(t, err)
	p.Apply(started)
	failed, err := NewRunFailed("r2", "pillar_bodies", errors.GenerationError("upstream returned 500").Build())
	require.NoError(t, err)
	p.Apply(failed)

	run, ok := p.Run("r2")
	require.True(t, ok)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "pillar_bodies", run.Stage)
	assert.Contains(t, run.ErrorMessage, "upstream returned 500")
}

func TestRunHistoryProjection_HistoryLimit(t *testing.T) {
	p := NewRunHistoryProjection(newTestStore(t), 3)
	for i := range 5 {
		id := fmt.Sprintf("run-%d", i)
		started, err := NewRunStarted(id, "k", 10, "stub", "")
		require.NoError(t, err)
		p.Apply(started)
		done, err := NewRunCompleted(id, 1, 1, 1, 0, 0)
		require.NoError(t, err)
		p.Apply(done)
	}
	assert.Len(t, p.History(), 3)
}
