package ota

import (
	"testing"
	"time"

	"flint/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var utc = time.UTC

func TestApplyRecoveryFailureThenSuccess(t *testing.T) {
	agg := NewAggregator(testDB(t), utc)
	ts := time.Date(2026, 8, 30, 9, 0, 0, 0, utc)

	_, c, err := agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeFailure, ts)
	require.NoError(t, err)
	assert.Equal(t, models.Counts{Failure: 1, Total: 1}, c)

	_, c, err = agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeSuccess, ts.Add(time.Hour))
	require.NoError(t, err)
	// отказ погашен, но запись осталась
	assert.Equal(t, 1, c.Success)
	assert.Equal(t, 0, c.Failure)
	assert.Equal(t, 1, c.Total)

	var recs []models.StatsRecord
	require.NoError(t, agg.db.Where("bucket = ?", models.BadgeFailure).Find(&recs).Error)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Recovered)
}

func TestApplyRecoveryOrderDoesNotMatter(t *testing.T) {
	agg := NewAggregator(testDB(t), utc)
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, utc)

	// успех наблюдён раньше отказа (ретрансляция) — позже увиденный успех
	// всё равно гасит любой неустранённый отказ юнита
	_, _, err := agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeSuccess, day.Add(10*time.Hour))
	require.NoError(t, err)
	_, c, err := agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeFailure, day.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Failure)

	_, c, err = agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeSuccess, day.Add(11*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Success)
	assert.Equal(t, 0, c.Failure)
}

func TestApplyFailureIdempotent(t *testing.T) {
	agg := NewAggregator(testDB(t), utc)
	ts := time.Date(2026, 8, 30, 9, 0, 0, 0, utc)

	for i := 0; i < 3; i++ {
		_, c, err := agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeFailure, ts)
		require.NoError(t, err)
		// идентичный повтор отчёта не растит ведро
		assert.Equal(t, 1, c.Failure)
		assert.Equal(t, 1, c.Total)
	}

	// другой момент времени — уже новый отказ
	_, c, err := agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeFailure, ts.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Failure)
}

func TestApplyOtherNoDedup(t *testing.T) {
	agg := NewAggregator(testDB(t), utc)
	ts := time.Date(2026, 8, 30, 9, 0, 0, 0, utc)

	for i := 0; i < 3; i++ {
		_, c, err := agg.Apply("dev-1", "pic-1", "2.0", "2.0", models.BadgeOther, ts)
		require.NoError(t, err)
		assert.Equal(t, i+1, c.Other)
	}
}

func TestApplyRecoveryIsPerUnitAndPerDay(t *testing.T) {
	agg := NewAggregator(testDB(t), utc)
	day1 := time.Date(2026, 8, 30, 9, 0, 0, 0, utc)
	day2 := day1.AddDate(0, 0, 1)

	_, _, err := agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeFailure, day1)
	require.NoError(t, err)
	_, _, err = agg.Apply("dev-1", "pic-2", "1.0", "2.0", models.BadgeFailure, day1)
	require.NoError(t, err)

	// успех другого юнита не гасит чужой отказ
	_, c, err := agg.Apply("dev-1", "pic-2", "1.0", "2.0", models.BadgeSuccess, day1.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Failure)
	assert.Equal(t, 1, c.Success)

	// успех на следующий день не гасит вчерашний отказ pic-1
	_, c, err = agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeSuccess, day2)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Success)
	assert.Equal(t, 0, c.Failure) // день 2 отказов не имеет

	c1, err := dayCounts(agg, "dev-1", "2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, 1, c1.Failure) // вчерашний отказ pic-1 всё ещё активен
}

func TestApplyDayBoundaryUsesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	agg := NewAggregator(testDB(t), tokyo)

	// 2026-08-30 23:30 UTC = 2026-08-31 08:30 в Токио
	ts := time.Date(2026, 8, 30, 23, 30, 0, 0, time.UTC)
	day, _, err := agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeSuccess, ts)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-31", day)
}

func TestNormalizeCorruptBucket(t *testing.T) {
	d := testDB(t)
	agg := NewAggregator(d, utc)
	ts := time.Date(2026, 8, 30, 9, 0, 0, 0, utc)

	_, _, err := agg.Apply("dev-1", "pic-1", "1.0", "2.0", models.BadgeSuccess, ts)
	require.NoError(t, err)

	// эмулируем запись с кривой формы после миграции
	var st models.DailyStats
	require.NoError(t, d.Where("device_uuid = ?", "dev-1").First(&st).Error)
	require.NoError(t, d.Create(&models.StatsRecord{
		StatsID: st.ID, Bucket: "SUCCESS??", UnitID: "pic-2", ReportedAt: ts,
	}).Error)

	// следующий Apply самопочинит форму: кривое ведро уходит в other
	_, c, err := agg.Apply("dev-1", "pic-3", "1.0", "2.0", models.BadgeOther, ts)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Success)
	assert.Equal(t, 2, c.Other)
}

func dayCounts(a *Aggregator, deviceUUID, day string) (models.Counts, error) {
	var st models.DailyStats
	if err := a.db.Where("device_uuid = ? AND day = ?", deviceUUID, day).First(&st).Error; err != nil {
		return models.Counts{}, err
	}
	var recs []models.StatsRecord
	if err := a.db.Where("stats_id = ?", st.ID).Find(&recs).Error; err != nil {
		return models.Counts{}, err
	}
	return models.CountRecords(recs), nil
}
