package stats

import (
	"fmt"
	"sort"
	"time"

	"flint/internal/models"

	"gorm.io/gorm"
)

const dayLayout = "2006-01-02"

// Repo — read-side срезы по дневным агрегатам и истории юнитов.
// Все запросы — чистые функции от сохранённого состояния, побочных
// эффектов нет (кроме явного Purge).
type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ── range / day stats ───────────────────────────────────────

// DayRange перечисляет дни [from..to] включительно.
func DayRange(from, to string) ([]string, error) {
	f, err := time.Parse(dayLayout, from)
	if err != nil {
		return nil, fmt.Errorf("bad from date: %w", err)
	}
	t, err := time.Parse(dayLayout, to)
	if err != nil {
		return nil, fmt.Errorf("bad to date: %w", err)
	}
	if t.Before(f) {
		return nil, fmt.Errorf("to before from")
	}
	var days []string
	for d := f; !d.After(t); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dayLayout))
	}
	return days, nil
}

func (r *Repo) recordsFor(deviceUUIDs []string, days []string) (map[string][]models.StatsRecord, error) {
	out := make(map[string][]models.StatsRecord, len(days))
	for _, d := range days {
		out[d] = nil // zero-fill: день присутствует даже без документов
	}
	if len(deviceUUIDs) == 0 || len(days) == 0 {
		return out, nil
	}

	var stats []models.DailyStats
	if err := r.db.Where("device_uuid IN ? AND day IN ?", deviceUUIDs, days).Find(&stats).Error; err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(stats))
	byID := make(map[uint]models.DailyStats, len(stats))
	for _, st := range stats {
		ids = append(ids, st.ID)
		byID[st.ID] = st
	}
	var recs []models.StatsRecord
	if err := r.db.Where("stats_id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, err
	}
	for _, rec := range recs {
		st := byID[rec.StatsID]
		out[st.Day] = append(out[st.Day], rec)
	}
	return out, nil
}

// RangeStats — счётчики по дням диапазона, нулевые дни заполнены.
func (r *Repo) RangeStats(deviceUUIDs []string, from, to string) (map[string]models.Counts, error) {
	days, err := DayRange(from, to)
	if err != nil {
		return nil, err
	}
	recs, err := r.recordsFor(deviceUUIDs, days)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Counts, len(days))
	for d, rr := range recs {
		out[d] = models.CountRecords(rr)
	}
	return out, nil
}

// DeviceDayStats — счётчики одного устройства за один день.
func (r *Repo) DeviceDayStats(deviceUUID, day string) (models.Counts, error) {
	m, err := r.RangeStats([]string{deviceUUID}, day, day)
	if err != nil {
		return models.Counts{}, err
	}
	return m[day], nil
}

// PerDeviceOnDate — разбивка по устройствам за день (пустые включены).
func (r *Repo) PerDeviceOnDate(deviceUUIDs []string, day string) (map[string]models.Counts, error) {
	out := make(map[string]models.Counts, len(deviceUUIDs))
	for _, id := range deviceUUIDs {
		c, err := r.DeviceDayStats(id, day)
		if err != nil {
			return nil, err
		}
		out[id] = c
	}
	return out, nil
}

// ── chart ───────────────────────────────────────────────────

type ChartPoint struct {
	Day    string        `json:"day"`
	Counts models.Counts `json:"counts"`
}

type ChartData struct {
	Points []ChartPoint  `json:"points"`
	Totals models.Counts `json:"totals"`
}

// Chart — данные за days дней, заканчивая endDay включительно.
func (r *Repo) Chart(deviceUUIDs []string, endDay string, days int) (*ChartData, error) {
	end, err := time.Parse(dayLayout, endDay)
	if err != nil {
		return nil, fmt.Errorf("bad end date: %w", err)
	}
	if days < 1 {
		days = 1
	}
	from := end.AddDate(0, 0, -(days - 1)).Format(dayLayout)
	perDay, err := r.RangeStats(deviceUUIDs, from, endDay)
	if err != nil {
		return nil, err
	}

	daysList, _ := DayRange(from, endDay)
	out := &ChartData{Points: make([]ChartPoint, 0, len(daysList))}
	for _, d := range daysList {
		c := perDay[d]
		out.Points = append(out.Points, ChartPoint{Day: d, Counts: c})
		out.Totals.Success += c.Success
		out.Totals.Failure += c.Failure
		out.Totals.Other += c.Other
	}
	out.Totals.Total = out.Totals.Success + out.Totals.Failure + out.Totals.Other
	return out, nil
}

// ── export ──────────────────────────────────────────────────

type ExportRow struct {
	Day             string    `json:"day"`
	DeviceUUID      string    `json:"deviceId"`
	UnitID          string    `json:"unitId"`
	Bucket          string    `json:"bucket"`
	PreviousVersion string    `json:"previousVersion"`
	UpdatedVersion  string    `json:"updatedVersion"`
	ReportedAt      time.Time `json:"reportedAt"`
	Recovered       bool      `json:"recovered"`
}

// ExportRows — денормализованная строка на каждую запись диапазона,
// сортировка (день, устройство, время).
func (r *Repo) ExportRows(deviceUUIDs []string, from, to string) ([]ExportRow, error) {
	days, err := DayRange(from, to)
	if err != nil {
		return nil, err
	}
	if len(deviceUUIDs) == 0 {
		return []ExportRow{}, nil
	}

	var stats []models.DailyStats
	if err := r.db.Where("device_uuid IN ? AND day IN ?", deviceUUIDs, days).Find(&stats).Error; err != nil {
		return nil, err
	}
	rows := []ExportRow{}
	for _, st := range stats {
		var recs []models.StatsRecord
		if err := r.db.Where("stats_id = ?", st.ID).Find(&recs).Error; err != nil {
			return nil, err
		}
		for _, rec := range recs {
			rows = append(rows, ExportRow{
				Day:             st.Day,
				DeviceUUID:      st.DeviceUUID,
				UnitID:          rec.UnitID,
				Bucket:          rec.Bucket,
				PreviousVersion: rec.PreviousVersion,
				UpdatedVersion:  rec.UpdatedVersion,
				ReportedAt:      rec.ReportedAt,
				Recovered:       rec.Recovered,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		if rows[i].DeviceUUID != rows[j].DeviceUUID {
			return rows[i].DeviceUUID < rows[j].DeviceUUID
		}
		return rows[i].ReportedAt.Before(rows[j].ReportedAt)
	})
	return rows, nil
}

// ── version breakdown (per-unit firmware versions) ──────────

type VersionStats struct {
	Version      string   `json:"version"`
	SuccessUnits []string `json:"successUnits"` // юниты с >=1 успешной попыткой на этой версии
	FailureUnits []string `json:"failureUnits"` // юниты с >=1 неуспешной попыткой
}

// VersionBreakdown группирует юниты устройства по целевой версии. Юнит может
// попасть и в success, и в failure одной версии, и независимо — в разные версии.
func (r *Repo) VersionBreakdown(deviceUUID string) ([]VersionStats, error) {
	var units []models.Unit
	if err := r.db.Preload("Attempts").Where("device_uuid = ?", deviceUUID).Find(&units).Error; err != nil {
		return nil, err
	}

	byVersion := map[string]*VersionStats{}
	for _, u := range units {
		vs, ok := byVersion[u.TargetVersion]
		if !ok {
			vs = &VersionStats{Version: u.TargetVersion}
			byVersion[u.TargetVersion] = vs
		}
		hasSuccess, hasFailure := false, false
		for _, a := range u.Attempts {
			switch a.Badge {
			case models.BadgeSuccess:
				hasSuccess = true
			case models.BadgeFailure:
				hasFailure = true
			}
		}
		if hasSuccess {
			vs.SuccessUnits = append(vs.SuccessUnits, u.UnitID)
		}
		if hasFailure {
			vs.FailureUnits = append(vs.FailureUnits, u.UnitID)
		}
	}

	out := make([]VersionStats, 0, len(byVersion))
	for _, vs := range byVersion {
		sort.Strings(vs.SuccessUnits)
		sort.Strings(vs.FailureUnits)
		out = append(out, *vs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ── purge ───────────────────────────────────────────────────

// Purge удаляет дневные агрегаты диапазона (история юнитов не трогается).
// Возвращает число удалённых документов.
func (r *Repo) Purge(deviceUUIDs []string, from, to string) (int64, error) {
	days, err := DayRange(from, to)
	if err != nil {
		return 0, err
	}
	q := r.db.Where("day IN ?", days)
	if len(deviceUUIDs) > 0 {
		q = q.Where("device_uuid IN ?", deviceUUIDs)
	}
	var stats []models.DailyStats
	if err := q.Find(&stats).Error; err != nil {
		return 0, err
	}
	if len(stats) == 0 {
		return 0, nil
	}
	ids := make([]uint, 0, len(stats))
	for _, st := range stats {
		ids = append(ids, st.ID)
	}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("stats_id IN ?", ids).Delete(&models.StatsRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.DailyStats{}).Error
	})
	if err != nil {
		return 0, err
	}
	return int64(len(stats)), nil
}
