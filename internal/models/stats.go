package models

import (
	"time"

	"gorm.io/gorm"
)

// DailyStats — агрегат попыток устройства за один локальный календарный день.
// Создаётся лениво при первом ingest за день.
type DailyStats struct {
	gorm.Model
	DeviceUUID string `gorm:"type:char(36);uniqueIndex:ux_dev_day,priority:1"`
	Day        string `gorm:"type:char(10);uniqueIndex:ux_dev_day,priority:2"` // YYYY-MM-DD

	Records []StatsRecord `gorm:"foreignKey:StatsID"`
}

// StatsRecord — одна запись в ведре success/failure/other.
// Recovered осмыслен только для failure: true, когда юнит в тот же день
// успешно прошился позже. Запись при этом не удаляется — история остаётся,
// но из счётчика активных отказов она исключена.
type StatsRecord struct {
	gorm.Model
	StatsID uint   `gorm:"index"`
	Bucket  string `gorm:"type:varchar(16);index"` // success | failure | other

	UnitID          string `gorm:"index"`
	PreviousVersion string
	UpdatedVersion  string
	ReportedAt      time.Time
	Recovered       bool
}

// Counts — производные счётчики дня. Никогда не хранятся: всегда считаются
// от записей, failure — только неустранённые.
type Counts struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Other   int `json:"other"`
	Total   int `json:"total"`
}

func CountRecords(recs []StatsRecord) Counts {
	var c Counts
	for _, r := range recs {
		switch r.Bucket {
		case BadgeSuccess:
			c.Success++
		case BadgeFailure:
			if !r.Recovered {
				c.Failure++
			}
		default:
			c.Other++
		}
	}
	c.Total = c.Success + c.Failure + c.Other
	return c
}
