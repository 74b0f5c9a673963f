package db

import (
	"fmt"

	"gorm.io/gorm"
)

// MigrateLegacyStatsShapes — одноразовая починка агрегатов со старых схем:
//   - stats_records.type -> stats_records.bucket (зарезервированное/старое имя)
//   - NULL в recovered читается как false
//   - неизвестные значения bucket уводятся в "other"
//
// Канонический вид записи — см. models.StatsRecord. Нормализация значений
// bucket при чтении живёт в ota (Aggregator.normalize); здесь только то,
// что чинится на уровне колонок.
func MigrateLegacyStatsShapes(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	dialect := db.Dialector.Name()

	if db.Migrator().HasTable("stats_records") {
		hasOld := db.Migrator().HasColumn("stats_records", "type")
		hasNew := db.Migrator().HasColumn("stats_records", "bucket")
		if hasOld && !hasNew {
			if err := db.Migrator().RenameColumn("stats_records", "type", "bucket"); err != nil {
				var e error
				switch dialect {
				case "mysql":
					e = db.Exec("ALTER TABLE `stats_records` CHANGE COLUMN `type` `bucket` varchar(16) NOT NULL").Error
				case "postgres":
					e = db.Exec(`ALTER TABLE "stats_records" RENAME COLUMN "type" TO "bucket"`).Error
				case "sqlite":
					e = db.Exec(`ALTER TABLE stats_records RENAME COLUMN type TO bucket`).Error
				default:
					e = err
				}
				if e != nil {
					return fmt.Errorf("rename stats_records.type -> bucket: %w", e)
				}
			}
		}
		if db.Migrator().HasColumn("stats_records", "recovered") {
			_ = db.Exec("UPDATE stats_records SET recovered = ? WHERE recovered IS NULL", false).Error
		}
	}

	return nil
}
