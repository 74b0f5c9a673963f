package ota

import (
	"flint/internal/models"
	"flint/internal/vercmp"
)

// noVersion — конвенция прошивальщика: updatedVersion "0.0" означает
// "валидной версии не осталось", безусловный отказ.
const noVersion = "0.0"

// EffectiveBadge — бейдж, который реально идёт в дневную агрегацию,
// после поправки на сравнение версий и флаг перепрошивки.
//
// Правила:
//   - updated "0.0"                        -> failure всегда
//   - failure                              -> failure (никогда не понижается до other)
//   - reprogramming: success               -> other ("already updated", не свежий успех)
//   - версии равны: success/other          -> other ("already up to date")
//   - updated ниже previous                -> failure (регресс, заявленному успеху не верим)
//   - updated выше previous                -> бейдж как есть
func EffectiveBadge(badge string, previous, updated string, reprogramming bool) string {
	if updated == noVersion {
		return models.BadgeFailure
	}
	if badge == models.BadgeFailure {
		return models.BadgeFailure
	}
	if reprogramming {
		// успех при намеренной перепрошивке текущей версии — не свежий успех
		return models.BadgeOther
	}
	switch vercmp.Compare(updated, previous) {
	case vercmp.Lower:
		return models.BadgeFailure
	case vercmp.Equal:
		return models.BadgeOther
	default:
		return badge
	}
}
