package models

import (
	"time"

	"gorm.io/gorm"
)

// Badge — трёхзначная классификация исхода попытки.
const (
	BadgeSuccess = "success"
	BadgeFailure = "failure"
	BadgeOther   = "other"
)

// Финальный статус юнита по последней попытке.
const (
	UnitPending = "pending"
	UnitSuccess = "success"
	UnitFailed  = "failed"
)

// Unit — PIC-модуль в контексте одной целевой версии прошивки.
// Пара (unit_id, target_version) в пределах устройства уникальна:
// повторный ingest для той же версии добавляет попытку, а не новый юнит.
type Unit struct {
	gorm.Model
	DeviceUUID    string `gorm:"type:char(36);index;uniqueIndex:ux_unit_ver,priority:1"`
	UnitID        string `gorm:"uniqueIndex:ux_unit_ver,priority:2"`
	TargetVersion string `gorm:"uniqueIndex:ux_unit_ver,priority:3"`

	FinalStatus     string `gorm:"type:varchar(16);default:pending"`
	TotalAttempts   int
	SuccessAttempts int
	FailureAttempts int

	// UnitRef, не UnitID: UnitID занят идентификатором самого PIC
	Attempts []Attempt `gorm:"foreignKey:UnitRef"`
}

// Attempt — одна попытка прошивки, в порядке наблюдения (Seq).
type Attempt struct {
	gorm.Model
	UnitRef uint `gorm:"column:unit_ref;index"`
	Seq     int

	StatusCode      string
	Message         string
	Badge           string `gorm:"type:varchar(16)"`
	PreviousVersion string
	TargetVersion   string
	ReportedAt      time.Time
}
