package ota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flint/internal/logs"
	"flint/internal/models"
	"flint/internal/statuscfg"
)

// ErrValidation — запрос отвергнут до любых мутаций.
var ErrValidation = errors.New("validation error")

// ErrDeviceNotFound — deviceId не известен директории устройств.
var ErrDeviceNotFound = errors.New("device not found")

// ErrConflict — конфликт записи пережил все повторы; ingest можно повторить целиком.
var ErrConflict = errors.New("storage conflict")

// DeviceInfo — минимум, который ядру нужно знать об устройстве.
type DeviceInfo struct {
	UUID      string
	Name      string
	ProjectID *uint
}

// DeviceDirectory — внешний справочник устройств.
type DeviceDirectory interface {
	FindDevice(uuid string) (DeviceInfo, bool)
}

// ConfigSource — источник эффективной таблицы статус-кодов.
type ConfigSource interface {
	EffectiveCodes(deviceUUID string) ([]models.StatusCode, error)
}

// ActivitySink — журнал действий; ошибки записи не валят ingest.
type ActivitySink interface {
	Log(ctx context.Context, action, subject, detail string)
}

// Service — конвейер ingest: классификация -> поправка по версиям ->
// история юнита -> дневной агрегат.
type Service struct {
	devices    DeviceDirectory
	configs    ConfigSource
	recorder   *Recorder
	agg        *Aggregator
	activity   ActivitySink
	maxRetries int
}

func NewService(devices DeviceDirectory, configs ConfigSource, rec *Recorder, agg *Aggregator, activity ActivitySink, maxRetries int) *Service {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Service{
		devices: devices, configs: configs,
		recorder: rec, agg: agg,
		activity: activity, maxRetries: maxRetries,
	}
}

type IngestInput struct {
	UnitID          string
	DeviceID        string
	Status          string
	PreviousVersion string
	UpdatedVersion  string
	Reprogramming   bool
	Timestamp       time.Time // нулевое — момент приёма
}

type IngestResult struct {
	Resolved       statuscfg.Resolved `json:"resolved"`
	EffectiveBadge string             `json:"effectiveBadge"`
	Unit           *models.Unit       `json:"unit"`
	Day            string             `json:"day"`
	DayCounts      models.Counts      `json:"dayCounts"`
}

func (in *IngestInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.UnitID) == "" {
		missing = append(missing, "unitId")
	}
	if strings.TrimSpace(in.DeviceID) == "" {
		missing = append(missing, "deviceId")
	}
	if strings.TrimSpace(in.Status) == "" {
		missing = append(missing, "status")
	}
	if strings.TrimSpace(in.UpdatedVersion) == "" {
		missing = append(missing, "updatedVersion")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	dev, ok := s.devices.FindDevice(in.DeviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, in.DeviceID)
	}
	codes, err := s.configs.EffectiveCodes(dev.UUID)
	if err != nil {
		return nil, err // statuscfg.ErrConfigNotFound либо ошибка хранилища
	}

	res := statuscfg.Resolve(codes, in.Status)
	effective := EffectiveBadge(res.Badge, in.PreviousVersion, in.UpdatedVersion, in.Reprogramming)

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var unit *models.Unit
	if err := s.retry(ctx, func() error {
		u, err := s.recorder.Record(dev.UUID, in.UnitID, in.PreviousVersion, in.UpdatedVersion, in.Status, res, ts)
		if err != nil {
			return err
		}
		unit = u
		return nil
	}); err != nil {
		return nil, err
	}

	var (
		day    string
		counts models.Counts
	)
	if err := s.retry(ctx, func() error {
		d, c, err := s.agg.Apply(dev.UUID, in.UnitID, in.PreviousVersion, in.UpdatedVersion, effective, ts)
		if err != nil {
			return err
		}
		day, counts = d, c
		return nil
	}); err != nil {
		return nil, err
	}

	if s.activity != nil {
		s.activity.Log(ctx, "ota.ingest", dev.UUID,
			fmt.Sprintf("unit=%s status=%s badge=%s effective=%s", in.UnitID, in.Status, res.Badge, effective))
	}

	return &IngestResult{
		Resolved:       res,
		EffectiveBadge: effective,
		Unit:           unit,
		Day:            day,
		DayCounts:      counts,
	}, nil
}

// retry — ограниченные повторы read-modify-write с коротким бэкоффом.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	var last error
	for i := 0; i < s.maxRetries; i++ {
		if last = fn(); last == nil {
			return nil
		}
		logs.Logger.Warnf("ingest write retry %d/%d: %v", i+1, s.maxRetries, last)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 25 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %v", ErrConflict, last)
}
