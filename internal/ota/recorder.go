package ota

import (
	"errors"
	"time"

	"flint/internal/models"
	"flint/internal/statuscfg"

	"gorm.io/gorm"
)

// Recorder ведёт историю попыток юнита и его счётчики.
// Append + пересчёт атомарны в пределах ключа (device, unit, target version):
// per-key лок поверх транзакции, гонка создания юнита (duplicate key)
// повторяется как append к уже созданному.
type Recorder struct {
	db    *gorm.DB
	locks *keyedLocks
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, locks: newKeyedLocks()}
}

// Record добавляет попытку и возвращает юнит с пересчитанными счётчиками.
// В попытке хранится разрешённый (не эффективный) бейдж — счётчики юнита
// и finalStatus отражают фактический исход, а не агрегационную поправку.
func (r *Recorder) Record(deviceUUID, unitID, prev, target, rawCode string, res statuscfg.Resolved, ts time.Time) (*models.Unit, error) {
	unlock := r.locks.lock(deviceUUID + "|" + unitID + "|" + target)
	defer unlock()

	unit, err := r.findOrCreate(deviceUUID, unitID, target)
	if err != nil {
		return nil, err
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		att := models.Attempt{
			UnitRef:         unit.ID,
			Seq:             unit.TotalAttempts + 1,
			StatusCode:      rawCode,
			Message:         res.Message,
			Badge:           res.Badge,
			PreviousVersion: prev,
			TargetVersion:   target,
			ReportedAt:      ts,
		}
		if err := tx.Create(&att).Error; err != nil {
			return err
		}

		unit.TotalAttempts++
		switch res.Badge {
		case models.BadgeSuccess:
			unit.SuccessAttempts++
			unit.FinalStatus = models.UnitSuccess
		case models.BadgeFailure:
			unit.FailureAttempts++
			unit.FinalStatus = models.UnitFailed
		default:
			// other не трогает финальный статус
			if unit.FinalStatus == "" {
				unit.FinalStatus = models.UnitPending
			}
		}
		return tx.Save(unit).Error
	})
	if err != nil {
		return nil, err
	}

	if err := r.db.Preload("Attempts", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq ASC") }).
		First(unit, unit.ID).Error; err != nil {
		return nil, err
	}
	return unit, nil
}

func (r *Recorder) findOrCreate(deviceUUID, unitID, target string) (*models.Unit, error) {
	var u models.Unit
	tx := r.db.Where("device_uuid = ? AND unit_id = ? AND target_version = ?",
		deviceUUID, unitID, target).First(&u)
	if tx.Error == nil {
		return &u, nil
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, tx.Error
	}

	u = models.Unit{
		DeviceUUID:    deviceUUID,
		UnitID:        unitID,
		TargetVersion: target,
		FinalStatus:   models.UnitPending,
	}
	if err := r.db.Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// проиграли гонку создания — читаем чужой юнит и продолжаем как append
			var again models.Unit
			if e := r.db.Where("device_uuid = ? AND unit_id = ? AND target_version = ?",
				deviceUUID, unitID, target).First(&again).Error; e != nil {
				return nil, e
			}
			return &again, nil
		}
		return nil, err
	}
	return &u, nil
}

// UnitsForDevice — юниты устройства с попытками (для версионного среза).
func (r *Recorder) UnitsForDevice(deviceUUID string) ([]models.Unit, error) {
	var out []models.Unit
	err := r.db.Preload("Attempts", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq ASC") }).
		Where("device_uuid = ?", deviceUUID).
		Order("unit_id ASC, target_version ASC").
		Find(&out).Error
	return out, err
}
