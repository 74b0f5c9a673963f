package statuscfg

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"flint/internal/models"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type HTTP struct{ repo *Repo }

func NewHTTP(r *Repo) *HTTP { return &HTTP{repo: r} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/devices/{uuid}/status-config", h.getConfig).Methods(http.MethodGet)
	api.HandleFunc("/devices/{uuid}/status-config/effective", h.getEffective).Methods(http.MethodGet)
	api.HandleFunc("/devices/{uuid}/status-config/based-on", h.setBasedOn).Methods(http.MethodPut)
	api.HandleFunc("/devices/{uuid}/status-config/based-on", h.clearBasedOn).Methods(http.MethodDelete)

	api.HandleFunc("/devices/{uuid}/status-config/codes", h.addCode).Methods(http.MethodPost)
	api.HandleFunc("/devices/{uuid}/status-config/codes/{code}", h.updateCode).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/devices/{uuid}/status-config/codes/{code}", h.deleteCode).Methods(http.MethodDelete)
}

func validBadge(b string) bool {
	return b == models.BadgeSuccess || b == models.BadgeFailure || b == models.BadgeOther
}

func (h *HTTP) getConfig(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	cfg, err := h.repo.GetConfig(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not found", "no status configuration", map[string]string{"uuid": uuid})
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(cfg)
}

func (h *HTTP) getEffective(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	codes, err := h.repo.EffectiveCodes(uuid)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not found", "no effective status configuration", map[string]string{"uuid": uuid})
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(codes)
}

func (h *HTTP) setBasedOn(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	var in struct {
		BaseDeviceID string `json:"baseDeviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.BaseDeviceID == "" {
		http.Error(w, "invalid body (need {baseDeviceId})", 400)
		return
	}
	if err := h.repo.SetBasedOn(uuid, in.BaseDeviceID); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) clearBasedOn(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	if err := h.repo.SetBasedOn(uuid, ""); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) addCode(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	var in struct {
		Code    *int   `json:"code"`
		Message string `json:"message"`
		Color   string `json:"color"`
		Badge   string `json:"badge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Code == nil {
		http.Error(w, "invalid body (need {code, message, badge})", 400)
		return
	}
	if !validBadge(in.Badge) {
		http.Error(w, "badge must be success|failure|other", 400)
		return
	}
	sc, err := h.repo.AddCode(uuid, *in.Code, in.Message, in.Color, in.Badge)
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			models.WriteProblem(w, http.StatusConflict, "Conflict", "status code already configured", map[string]string{"code": strconv.Itoa(*in.Code)})
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sc)
}

func (h *HTTP) updateCode(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	code, err := strconv.Atoi(mux.Vars(r)["code"])
	if err != nil {
		http.Error(w, "invalid code", 400)
		return
	}
	var in struct {
		Message *string `json:"message"`
		Color   *string `json:"color"`
		Badge   *string `json:"badge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json", 400)
		return
	}
	if in.Badge != nil && !validBadge(*in.Badge) {
		http.Error(w, "badge must be success|failure|other", 400)
		return
	}
	sc, err := h.repo.UpdateCode(uuid, code, in.Message, in.Color, in.Badge)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not found", "status code not configured", map[string]string{"code": strconv.Itoa(code)})
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(sc)
}

func (h *HTTP) deleteCode(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	code, err := strconv.Atoi(mux.Vars(r)["code"])
	if err != nil {
		http.Error(w, "invalid code", 400)
		return
	}
	if err := h.repo.DeleteCode(uuid, code); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not found", "no status configuration", map[string]string{"uuid": uuid})
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
