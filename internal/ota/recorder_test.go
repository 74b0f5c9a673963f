package ota

import (
	"testing"
	"time"

	"flint/internal/models"
	"flint/internal/statuscfg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAppendsToSameUnit(t *testing.T) {
	rec := NewRecorder(testDB(t))
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	u1, err := rec.Record("dev-1", "pic-7", "1.0", "2.0", "0",
		statuscfg.Resolved{Message: "flash failed", Badge: models.BadgeFailure}, ts)
	require.NoError(t, err)
	assert.Equal(t, models.UnitFailed, u1.FinalStatus)
	assert.Equal(t, 1, u1.TotalAttempts)
	assert.Equal(t, 1, u1.FailureAttempts)

	// повторный ingest той же пары (unit, version) — append, не новый юнит
	u2, err := rec.Record("dev-1", "pic-7", "1.0", "2.0", "2",
		statuscfg.Resolved{Message: "flash ok", Badge: models.BadgeSuccess}, ts.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, models.UnitSuccess, u2.FinalStatus)
	assert.Equal(t, 2, u2.TotalAttempts)
	assert.Equal(t, 1, u2.SuccessAttempts)
	assert.Equal(t, 1, u2.FailureAttempts)
	require.Len(t, u2.Attempts, 2)
	assert.Equal(t, 1, u2.Attempts[0].Seq)
	assert.Equal(t, 2, u2.Attempts[1].Seq)
}

func TestRecordOtherKeepsFinalStatus(t *testing.T) {
	rec := NewRecorder(testDB(t))
	ts := time.Now()

	u, err := rec.Record("dev-1", "pic-1", "1.0", "2.0", "7",
		statuscfg.Resolved{Message: "rebooting", Badge: models.BadgeOther}, ts)
	require.NoError(t, err)
	assert.Equal(t, models.UnitPending, u.FinalStatus)

	_, err = rec.Record("dev-1", "pic-1", "1.0", "2.0", "2",
		statuscfg.Resolved{Badge: models.BadgeSuccess}, ts)
	require.NoError(t, err)

	u, err = rec.Record("dev-1", "pic-1", "1.0", "2.0", "7",
		statuscfg.Resolved{Message: "rebooting", Badge: models.BadgeOther}, ts)
	require.NoError(t, err)
	// other не затирает успех
	assert.Equal(t, models.UnitSuccess, u.FinalStatus)
}

func TestRecordSeparateUnitPerVersion(t *testing.T) {
	rec := NewRecorder(testDB(t))
	ts := time.Now()

	u1, err := rec.Record("dev-1", "pic-1", "1.0", "2.0", "2",
		statuscfg.Resolved{Badge: models.BadgeSuccess}, ts)
	require.NoError(t, err)
	u2, err := rec.Record("dev-1", "pic-1", "2.0", "3.0", "2",
		statuscfg.Resolved{Badge: models.BadgeSuccess}, ts)
	require.NoError(t, err)
	assert.NotEqual(t, u1.ID, u2.ID)

	units, err := rec.UnitsForDevice("dev-1")
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func TestRecordConcurrentSameUnit(t *testing.T) {
	rec := NewRecorder(testDB(t))
	ts := time.Now()

	const n = 8
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := rec.Record("dev-1", "pic-9", "1.0", "2.0", "2",
				statuscfg.Resolved{Badge: models.BadgeSuccess}, ts)
			done <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}

	units, err := rec.UnitsForDevice("dev-1")
	require.NoError(t, err)
	require.Len(t, units, 1)
	// ни одна попытка не потеряна
	assert.Equal(t, n, units[0].TotalAttempts)
	assert.Len(t, units[0].Attempts, n)
}
