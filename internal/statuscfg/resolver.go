package statuscfg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"flint/internal/models"
)

// ErrConfigNotFound — у устройства нет эффективной конфигурации статусов,
// классификация невозможна, ingest отклоняется.
var ErrConfigNotFound = errors.New("status configuration not found")

// Resolved — результат классификации сырого статуса.
type Resolved struct {
	Message string `json:"message"`
	Badge   string `json:"badge"`
	Color   string `json:"color,omitempty"`
}

// Исторические целочисленные коды прошивальщика, означающие успех,
// когда ни таблица, ни текст ничего не дали.
var knownSuccessCodes = map[int]bool{2: true, 3: true}

var (
	successPhrases = []string{"already updated", "up to date", "update complete", "success"}
	failurePhrases = []string{"failed", "error"}
	pendingPhrases = []string{"in progress", "pending", "downloading"}
)

// Resolve классифицирует сырой статус по таблице кодов устройства.
// Политика разрешения (permissive): текстовая эвристика даёт значение
// по умолчанию, запись таблицы с совпавшим кодом его перекрывает; если код
// не числовой и текст ни на что не похож — badge "other". Отклоняется только
// устройство совсем без конфигурации (ErrConfigNotFound) — это решает
// вызывающая сторона через EffectiveCodes.
func Resolve(codes []models.StatusCode, raw string) Resolved {
	raw = strings.TrimSpace(raw)
	heuristic := heuristicBadge(raw)

	if n, err := strconv.Atoi(raw); err == nil {
		for _, c := range codes {
			if c.Code == n {
				return Resolved{Message: c.Message, Badge: c.Badge, Color: c.Color}
			}
		}
		// кода нет в таблице: эвристика, затем известные success-коды
		if heuristic != "" {
			return Resolved{Message: raw, Badge: heuristic}
		}
		if knownSuccessCodes[n] {
			return Resolved{Message: fmt.Sprintf("status code %d", n), Badge: models.BadgeSuccess}
		}
		return Resolved{Message: fmt.Sprintf("status code %d", n), Badge: models.BadgeFailure}
	}

	if heuristic != "" {
		return Resolved{Message: raw, Badge: heuristic}
	}
	return Resolved{Message: raw, Badge: models.BadgeOther}
}

func heuristicBadge(raw string) string {
	s := strings.ToLower(raw)
	if s == "" {
		return ""
	}
	for _, p := range successPhrases {
		if strings.Contains(s, p) {
			return models.BadgeSuccess
		}
	}
	for _, p := range failurePhrases {
		if strings.Contains(s, p) {
			return models.BadgeFailure
		}
	}
	for _, p := range pendingPhrases {
		if strings.Contains(s, p) {
			return models.BadgeOther
		}
	}
	return ""
}
