package trace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/capinvoke/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestRecordAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := Run{
		Scenario:     "irq.yaml",
		ScenarioHash: "abc",
		Cores:        1,
		MaxIRQ:       31,
		Steps: []Step{
			{Seq: 0, Thread: "driver", Op: "call", CPtr: 3, Label: "IRQIssueIRQHandler", Result: ResultOK, State: "running", RegDigest: "d0"},
			{
				Seq: 1, Thread: "driver", Op: "call", CPtr: 3, Label: "IRQIssueIRQHandler",
				Result: "RevokeFirst", MsgInfo: 9 << 12, Badge: ^uint64(0), MRs: []uint64{1 << 63, 2},
				State: "running", RegDigest: "d1",
			},
		},
	}

	id, err := store.RecordRun(ctx, run)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "irq.yaml", got.Scenario)
	assert.Equal(t, 2, got.StepCount)
	assert.Equal(t, 1, got.ErrorCount)
	assert.NotNil(t, got.CompletedAt)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, []uint64{}, got.Steps[0].MRs)
	assert.Equal(t, ^uint64(0), got.Steps[1].Badge)
	assert.Equal(t, []uint64{1 << 63, 2}, got.Steps[1].MRs)
	assert.Equal(t, uint64(9<<12), got.Steps[1].MsgInfo)
	assert.Equal(t, "RevokeFirst", got.Steps[1].Result)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"first", "second", "third"} {
		_, err := store.RecordRun(ctx, Run{ID: name, Scenario: name, Cores: 1, StartedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "second", runs[1].ID)
	assert.Empty(t, runs[0].Steps)
}

func TestRecordRunRejectsDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.RecordRun(ctx, Run{ID: "x", Scenario: "s", Cores: 1})
	require.NoError(t, err)
	_, err = store.RecordRun(ctx, Run{ID: "x", Scenario: "s", Cores: 1})
	assert.Error(t, err)
}

func TestRegisterDigest(t *testing.T) {
	a := RegisterDigest([]uint64{1, 2, 3})
	assert.Len(t, a, 64)
	assert.Equal(t, a, RegisterDigest([]uint64{1, 2, 3}))
	assert.NotEqual(t, a, RegisterDigest([]uint64{1, 2, 4}))
	assert.NotEqual(t, a, RegisterDigest([]uint64{3, 2, 1}))
}
