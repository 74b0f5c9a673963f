package statuscfg

import (
	"errors"
	"fmt"

	"flint/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicateCode — код уже есть в таблице устройства.
var ErrDuplicateCode = errors.New("duplicate status code")

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ── Config document ─────────────────────────────────────────

// GetConfig возвращает собственную конфигурацию устройства (с кодами).
func (r *Repo) GetConfig(deviceUUID string) (*models.StatusConfig, error) {
	var cfg models.StatusConfig
	err := r.db.Preload("Codes", func(tx *gorm.DB) *gorm.DB { return tx.Order("code ASC") }).
		Where("device_uuid = ?", deviceUUID).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Repo) ensureConfig(deviceUUID string) (*models.StatusConfig, error) {
	var cfg models.StatusConfig
	tx := r.db.Where("device_uuid = ?", deviceUUID).First(&cfg)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			cfg = models.StatusConfig{DeviceUUID: deviceUUID}
			if err := r.db.Create(&cfg).Error; err != nil {
				return nil, err
			}
			return &cfg, nil
		}
		return nil, tx.Error
	}
	return &cfg, nil
}

// SetBasedOn — включает/выключает наследование от базового устройства.
// Эффективная конфигурация резолвится по ссылке при чтении, копий нет.
func (r *Repo) SetBasedOn(deviceUUID, baseUUID string) error {
	if baseUUID == deviceUUID {
		return fmt.Errorf("config cannot be based on the device itself")
	}
	cfg, err := r.ensureConfig(deviceUUID)
	if err != nil {
		return err
	}
	cfg.BasedOn = baseUUID
	return r.db.Save(cfg).Error
}

// DeleteForDevice — каскад при удалении устройства.
func (r *Repo) DeleteForDevice(deviceUUID string) error {
	var cfg models.StatusConfig
	tx := r.db.Where("device_uuid = ?", deviceUUID).First(&cfg)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		return tx.Error
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status_config_id = ?", cfg.ID).Delete(&models.StatusCode{}).Error; err != nil {
			return err
		}
		return tx.Delete(&cfg).Error
	})
}

// ── Codes ───────────────────────────────────────────────────

func (r *Repo) AddCode(deviceUUID string, code int, message, color, badge string) (*models.StatusCode, error) {
	cfg, err := r.ensureConfig(deviceUUID)
	if err != nil {
		return nil, err
	}
	var n int64
	if err := r.db.Model(&models.StatusCode{}).
		Where("status_config_id = ? AND code = ?", cfg.ID, code).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrDuplicateCode
	}
	sc := models.StatusCode{StatusConfigID: cfg.ID, Code: code, Message: message, Color: color, Badge: badge}
	if err := r.db.Create(&sc).Error; err != nil {
		return nil, err
	}
	return &sc, nil
}

func (r *Repo) UpdateCode(deviceUUID string, code int, message, color, badge *string) (*models.StatusCode, error) {
	cfg, err := r.GetConfig(deviceUUID)
	if err != nil {
		return nil, err
	}
	var sc models.StatusCode
	if err := r.db.Where("status_config_id = ? AND code = ?", cfg.ID, code).First(&sc).Error; err != nil {
		return nil, err
	}
	if message != nil {
		sc.Message = *message
	}
	if color != nil {
		sc.Color = *color
	}
	if badge != nil {
		sc.Badge = *badge
	}
	if err := r.db.Save(&sc).Error; err != nil {
		return nil, err
	}
	return &sc, nil
}

func (r *Repo) DeleteCode(deviceUUID string, code int) error {
	cfg, err := r.GetConfig(deviceUUID)
	if err != nil {
		return err
	}
	return r.db.Where("status_config_id = ? AND code = ?", cfg.ID, code).Delete(&models.StatusCode{}).Error
}

// ── Effective config resolution ─────────────────────────────

// EffectiveCodes — таблица кодов с учётом наследования: собственные коды,
// если они есть, иначе резолв по цепочке based_on. Цепочка ограничена,
// чтобы не зациклиться на кривых данных.
func (r *Repo) EffectiveCodes(deviceUUID string) ([]models.StatusCode, error) {
	const maxDepth = 8
	seen := map[string]bool{}
	cur := deviceUUID
	for depth := 0; depth < maxDepth; depth++ {
		if seen[cur] {
			break
		}
		seen[cur] = true

		cfg, err := r.GetConfig(cur)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrConfigNotFound
			}
			return nil, err
		}
		if len(cfg.Codes) > 0 {
			return cfg.Codes, nil
		}
		if cfg.BasedOn == "" {
			return nil, ErrConfigNotFound
		}
		cur = cfg.BasedOn
	}
	return nil, ErrConfigNotFound
}
