package ota

import (
	"errors"
	"time"

	"flint/internal/logs"
	"flint/internal/models"

	"gorm.io/gorm"
)

// Aggregator ведёт дневные агрегаты устройства: три ведра записей
// (success/failure/other) за локальный календарный день.
//
// Правило восстановления: успех юнита гасит его же неустранённые отказы
// того же дня (recovered=true, запись остаётся для истории). Правило
// коммутативно к порядку прихода внутри дня: любой позже увиденный успех
// гасит любой ранее увиденный отказ юнита.
type Aggregator struct {
	db    *gorm.DB
	loc   *time.Location
	locks *keyedLocks
}

// NewAggregator. loc — зона границ календарного дня (см. stats.timezone);
// nil — локальная зона сервера.
func NewAggregator(db *gorm.DB, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{db: db, loc: loc, locks: newKeyedLocks()}
}

func (a *Aggregator) DayKey(ts time.Time) string {
	return ts.In(a.loc).Format("2006-01-02")
}

// Apply вносит одну попытку с эффективным бейджем в агрегат её дня.
// Возвращает день и пересчитанные счётчики.
func (a *Aggregator) Apply(deviceUUID, unitID, prev, upd, effective string, ts time.Time) (string, models.Counts, error) {
	day := a.DayKey(ts)

	unlock := a.locks.lock(deviceUUID + "|" + day)
	defer unlock()

	stats, err := a.loadOrCreate(deviceUUID, day)
	if err != nil {
		return day, models.Counts{}, err
	}
	a.normalize(stats)

	err = a.db.Transaction(func(tx *gorm.DB) error {
		switch effective {
		case models.BadgeSuccess:
			// гасим неустранённые отказы юнита за этот день
			if err := tx.Model(&models.StatsRecord{}).
				Where("stats_id = ? AND bucket = ? AND unit_id = ? AND recovered = ?",
					stats.ID, models.BadgeFailure, unitID, false).
				Update("recovered", true).Error; err != nil {
				return err
			}
			return tx.Create(&models.StatsRecord{
				StatsID: stats.ID, Bucket: models.BadgeSuccess,
				UnitID: unitID, PreviousVersion: prev, UpdatedVersion: upd,
				ReportedAt: ts,
			}).Error

		case models.BadgeFailure:
			// идемпотентность: идентичный повтор отчёта не плодит записи
			var n int64
			if err := tx.Model(&models.StatsRecord{}).
				Where("stats_id = ? AND bucket = ? AND unit_id = ? AND previous_version = ? AND updated_version = ? AND reported_at = ? AND recovered = ?",
					stats.ID, models.BadgeFailure, unitID, prev, upd, ts, false).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return nil
			}
			return tx.Create(&models.StatsRecord{
				StatsID: stats.ID, Bucket: models.BadgeFailure,
				UnitID: unitID, PreviousVersion: prev, UpdatedVersion: upd,
				ReportedAt: ts, Recovered: false,
			}).Error

		default:
			return tx.Create(&models.StatsRecord{
				StatsID: stats.ID, Bucket: models.BadgeOther,
				UnitID: unitID, PreviousVersion: prev, UpdatedVersion: upd,
				ReportedAt: ts,
			}).Error
		}
	})
	if err != nil {
		return day, models.Counts{}, err
	}

	var recs []models.StatsRecord
	if err := a.db.Where("stats_id = ?", stats.ID).Find(&recs).Error; err != nil {
		return day, models.Counts{}, err
	}
	return day, models.CountRecords(recs), nil
}

func (a *Aggregator) loadOrCreate(deviceUUID, day string) (*models.DailyStats, error) {
	var st models.DailyStats
	tx := a.db.Where("device_uuid = ? AND day = ?", deviceUUID, day).First(&st)
	if tx.Error == nil {
		return &st, nil
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, tx.Error
	}

	st = models.DailyStats{DeviceUUID: deviceUUID, Day: day}
	if err := a.db.Create(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var again models.DailyStats
			if e := a.db.Where("device_uuid = ? AND day = ?", deviceUUID, day).First(&again).Error; e != nil {
				return nil, e
			}
			return &again, nil
		}
		return nil, err
	}
	return &st, nil
}

// normalize — самопочинка формы при загрузке: записи с неизвестным ведром
// уводятся в "other". Документ никогда не теряется из-за кривой схемы.
func (a *Aggregator) normalize(st *models.DailyStats) {
	res := a.db.Model(&models.StatsRecord{}).
		Where("stats_id = ? AND bucket NOT IN ?", st.ID,
			[]string{models.BadgeSuccess, models.BadgeFailure, models.BadgeOther}).
		Update("bucket", models.BadgeOther)
	if res.Error != nil {
		logs.Logger.Warnf("stats normalize %s/%s: %v", st.DeviceUUID, st.Day, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		logs.Logger.Warnf("stats normalize %s/%s: %d records coerced to other", st.DeviceUUID, st.Day, res.RowsAffected)
	}
}
