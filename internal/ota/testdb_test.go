package ota

import (
	"strings"
	"testing"

	"flint/internal/db"
	"flint/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	d, err := db.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(
		&models.Unit{}, &models.Attempt{},
		&models.DailyStats{}, &models.StatsRecord{},
	))
	return d
}
