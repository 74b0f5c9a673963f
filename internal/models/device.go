package models

import "gorm.io/gorm"

// Device — управляемое OTA-устройство (шлюз для своих PIC-модулей).
type Device struct {
	gorm.Model
	UUID      string `gorm:"column:uuid;uniqueIndex"`
	Name      string
	Status    string
	ProjectID *uint `gorm:"index"` // nullable: устройство может быть вне проекта
}

type Project struct {
	gorm.Model
	Name string `gorm:"uniqueIndex"`
	Note string `gorm:"type:varchar(255)"`
}
