package models

import "gorm.io/gorm"

// ActivityEntry — запись журнала действий. Пишется fire-and-forget.
type ActivityEntry struct {
	gorm.Model
	Actor   string `gorm:"index"` // uuid пользователя или "system"
	Action  string `gorm:"index"`
	Subject string `gorm:"index"` // uuid устройства/проекта и т.п.
	Detail  string
}
