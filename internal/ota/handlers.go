package ota

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"flint/internal/models"
	"flint/internal/statuscfg"

	"github.com/gorilla/mux"
)

type HTTP struct{ svc *Service }

func NewHTTP(svc *Service) *HTTP { return &HTTP{svc: svc} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/ingest", h.ingest).Methods(http.MethodPost)
}

// POST /api/v1/ingest
// {unitId, deviceId, status, previousVersion, updatedVersion, reprogramming?, timestamp?}
func (h *HTTP) ingest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UnitID          string `json:"unitId"`
		DeviceID        string `json:"deviceId"`
		Status          string `json:"status"`
		PreviousVersion string `json:"previousVersion"`
		UpdatedVersion  string `json:"updatedVersion"`
		Reprogramming   bool   `json:"reprogramming"`
		Timestamp       string `json:"timestamp"` // RFC3339, опционально
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad JSON", err.Error(), nil)
		return
	}

	// кривой timestamp не валит запрос — берём момент приёма
	var ts time.Time
	if in.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, in.Timestamp); err == nil {
			ts = t
		}
	}

	out, err := h.svc.Ingest(r.Context(), IngestInput{
		UnitID:          in.UnitID,
		DeviceID:        in.DeviceID,
		Status:          in.Status,
		PreviousVersion: in.PreviousVersion,
		UpdatedVersion:  in.UpdatedVersion,
		Reprogramming:   in.Reprogramming,
		Timestamp:       ts,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			models.WriteProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), nil)
		case errors.Is(err, ErrDeviceNotFound):
			models.WriteProblem(w, http.StatusNotFound, "Not found", err.Error(), map[string]string{"deviceId": in.DeviceID})
		case errors.Is(err, statuscfg.ErrConfigNotFound):
			models.WriteProblem(w, http.StatusConflict, "Unconfigured device",
				"device has no status configuration; configure it before ingesting", map[string]string{"deviceId": in.DeviceID})
		case errors.Is(err, ErrConflict):
			models.WriteProblem(w, http.StatusServiceUnavailable, "Transient conflict",
				"concurrent writes exhausted retries; retry the ingest", nil)
		default:
			models.WriteProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(out)
}
