package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, migrated bool) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	if migrated {
		require.NoError(t, db.MigrateUp())
	}
	return db
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestMigrations_UpDown(t *testing.T) {
	db := openTestDB(t, false)

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp(), "second MigrateUp should be a no-op")
	v, dirty, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)
	assert.True(t, tableExists(t, db, "runs"))
	assert.True(t, tableExists(t, db, "run_predictors"))

	require.NoError(t, db.MigrateDown())
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, tableExists(t, db, "run_predictors"))
	assert.True(t, tableExists(t, db, "runs"))

	require.NoError(t, db.MigrateDown())
	assert.False(t, tableExists(t, db, "runs"))
}

func TestRecordRun_RoundTrip(t *testing.T) {
	db := openTestDB(t, true)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := Run{
		Reference:           "ref.ply",
		Test:                "test.ply",
		SearchSize:          81,
		ReferencePoints:     1000,
		TestPoints:          990,
		DegenerateReference: 2,
		Duration:            1500 * time.Millisecond,
		CreatedAt:           created,
	}
	id, err := db.RecordRun(run, []string{"a_mean", "a_std"}, []float64{0.25, 0.5})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "run id should be a UUID")

	runs, err := db.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "ref.ply", got.Reference)
	assert.Equal(t, 81, got.SearchSize)
	assert.Equal(t, 990, got.TestPoints)
	assert.Equal(t, 2, got.DegenerateReference)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, created.Equal(got.CreatedAt))

	preds, err := db.RunPredictors(id)
	require.NoError(t, err)
	assert.Equal(t, []Predictor{{0, "a_mean", 0.25}, {1, "a_std", 0.5}}, preds)
}

func TestRuns_NewestFirstWithLimit(t *testing.T) {
	db := openTestDB(t, true)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := db.RecordRun(Run{
			ID:        []string{"r0", "r1", "r2"}[i],
			Reference: "ref", Test: "test",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}, nil, nil)
		require.NoError(t, err)
	}
	runs, err := db.Runs(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, "r1", runs[1].ID)
}

func TestRecordRun_Errors(t *testing.T) {
	db := openTestDB(t, true)
	_, err := db.RecordRun(Run{}, []string{"a"}, nil)
	assert.Error(t, err)

	_, err = db.RecordRun(Run{ID: "dup"}, nil, nil)
	require.NoError(t, err)
	_, err = db.RecordRun(Run{ID: "dup"}, nil, nil)
	assert.Error(t, err, "duplicate run id")

	unmigrated := openTestDB(t, false)
	_, err = unmigrated.RecordRun(Run{}, nil, nil)
	assert.Error(t, err)
}

func TestRecordRun_RollsBackOnFailure(t *testing.T) {
	db := openTestDB(t, true)
	// Without the predictor table the second insert fails after the run row
	// has been written.
	_, err := db.Exec(`DROP TABLE run_predictors`)
	require.NoError(t, err)
	_, err = db.RecordRun(Run{ID: "x"}, []string{"a"}, []float64{1})
	require.Error(t, err)

	runs, err := db.Runs(0)
	require.NoError(t, err)
	assert.Empty(t, runs, "failed run must not be stored")
}

func TestDeleteRun_Cascades(t *testing.T) {
	db := openTestDB(t, true)
	id, err := db.RecordRun(Run{}, []string{"a", "b"}, []float64{1, 2})
	require.NoError(t, err)

	require.NoError(t, db.DeleteRun(id))
	preds, err := db.RunPredictors(id)
	require.NoError(t, err)
	assert.Empty(t, preds)
	assert.Error(t, db.DeleteRun(id))
}
