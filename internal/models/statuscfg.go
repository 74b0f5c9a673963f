package models

import "gorm.io/gorm"

// StatusConfig — таблица статус-кодов устройства. Не более одной на устройство.
// BasedOn — опциональная ссылка на базовое устройство: эффективная конфигурация
// резолвится по ссылке, а не копируется (иначе копия устаревает).
type StatusConfig struct {
	gorm.Model
	DeviceUUID string `gorm:"type:char(36);uniqueIndex"`
	BasedOn    string `gorm:"column:based_on;type:char(36)"` // uuid базового устройства или ""
	Codes      []StatusCode
}

// StatusCode — одна строка таблицы: код прошивки -> сообщение/бейдж/цвет.
// Код уникален внутри конфигурации.
type StatusCode struct {
	gorm.Model
	StatusConfigID uint `gorm:"index:idx_cfg_code,priority:1"`
	Code           int  `gorm:"index:idx_cfg_code,priority:2"`
	Message        string
	Color          string `gorm:"type:varchar(32)"`
	Badge          string `gorm:"type:varchar(16)"` // success | failure | other
}
