package statuscfg

import (
	"strings"
	"testing"

	"flint/internal/db"
	"flint/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testRepo(t *testing.T) *Repo {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	d, err := db.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(&models.StatusConfig{}, &models.StatusCode{}))
	return NewRepo(d)
}

func TestAddCodeRejectsDuplicate(t *testing.T) {
	r := testRepo(t)
	_, err := r.AddCode("dev-1", 2, "ok", "", models.BadgeSuccess)
	require.NoError(t, err)

	_, err = r.AddCode("dev-1", 2, "ok again", "", models.BadgeSuccess)
	require.ErrorIs(t, err, ErrDuplicateCode)

	// тот же код у другого устройства — не дубликат
	_, err = r.AddCode("dev-2", 2, "ok", "", models.BadgeSuccess)
	require.NoError(t, err)
}

func TestEffectiveCodesOwnConfig(t *testing.T) {
	r := testRepo(t)
	_, err := r.AddCode("dev-1", 0, "failed", "", models.BadgeFailure)
	require.NoError(t, err)

	codes, err := r.EffectiveCodes("dev-1")
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, 0, codes[0].Code)
}

func TestEffectiveCodesInheritance(t *testing.T) {
	r := testRepo(t)
	_, err := r.AddCode("base", 2, "ok", "", models.BadgeSuccess)
	require.NoError(t, err)
	require.NoError(t, r.SetBasedOn("child", "base"))

	codes, err := r.EffectiveCodes("child")
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "ok", codes[0].Message)

	// изменение базы видно наследнику сразу — копий нет
	_, err = r.AddCode("base", 0, "failed", "", models.BadgeFailure)
	require.NoError(t, err)
	codes, err = r.EffectiveCodes("child")
	require.NoError(t, err)
	assert.Len(t, codes, 2)
}

func TestEffectiveCodesMissing(t *testing.T) {
	r := testRepo(t)
	_, err := r.EffectiveCodes("ghost")
	require.ErrorIs(t, err, ErrConfigNotFound)

	// пустая конфигурация без базы — тоже не конфигурация
	require.NoError(t, r.SetBasedOn("loner", ""))
	_, err = r.EffectiveCodes("loner")
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestEffectiveCodesInheritanceLoop(t *testing.T) {
	r := testRepo(t)
	require.NoError(t, r.SetBasedOn("a", "b"))
	require.NoError(t, r.SetBasedOn("b", "a"))
	_, err := r.EffectiveCodes("a")
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestDeleteForDevice(t *testing.T) {
	r := testRepo(t)
	_, err := r.AddCode("dev-1", 2, "ok", "", models.BadgeSuccess)
	require.NoError(t, err)
	require.NoError(t, r.DeleteForDevice("dev-1"))

	_, err = r.GetConfig("dev-1")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// повторное удаление безопасно
	require.NoError(t, r.DeleteForDevice("dev-1"))
}
