package stats

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"flint/internal/models"

	"github.com/gorilla/mux"
)

// Directory — справочник устройств для фильтрации по проекту.
type Directory interface {
	// DeviceUUIDs: nil projectID — все устройства.
	DeviceUUIDs(projectID *uint) ([]string, error)
}

type HTTP struct {
	repo *Repo
	dir  Directory
	loc  *time.Location
}

func NewHTTP(repo *Repo, dir Directory, loc *time.Location) *HTTP {
	if loc == nil {
		loc = time.Local
	}
	return &HTTP{repo: repo, dir: dir, loc: loc}
}

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/stats", h.allOnDate).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.purge).Methods(http.MethodDelete)
	api.HandleFunc("/stats/range", h.rangeStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/chart", h.chart).Methods(http.MethodGet)
	api.HandleFunc("/stats/export", h.export).Methods(http.MethodGet)
	api.HandleFunc("/stats/devices/{uuid}", h.deviceOnDate).Methods(http.MethodGet)
	api.HandleFunc("/devices/{uuid}/version-stats", h.versionStats).Methods(http.MethodGet)
}

func (h *HTTP) today() string { return time.Now().In(h.loc).Format(dayLayout) }

// scope резолвит фильтры device/project в список uuid.
// При ошибке сам пишет ответ и возвращает ok=false.
func (h *HTTP) scope(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	if dev := r.URL.Query().Get("device"); dev != "" {
		return []string{dev}, true
	}
	var projectID *uint
	if p := r.URL.Query().Get("project"); p != "" {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			models.WriteProblem(w, http.StatusBadRequest, "Bad project",
				"project must be a numeric id, got "+p, nil)
			return nil, false
		}
		id := uint(n)
		projectID = &id
	}
	ids, err := h.dir.DeviceUUIDs(projectID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return nil, false
	}
	return ids, true
}

// GET /api/v1/stats/devices/{uuid}?date=YYYY-MM-DD
func (h *HTTP) deviceOnDate(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	day := r.URL.Query().Get("date")
	if day == "" {
		day = h.today()
	}
	c, err := h.repo.DeviceDayStats(uuid, day)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"deviceId": uuid, "day": day, "counts": c})
}

// GET /api/v1/stats?date=YYYY-MM-DD&project=N — разбивка по устройствам.
func (h *HTTP) allOnDate(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("date")
	if day == "" {
		day = h.today()
	}
	ids, ok := h.scope(w, r)
	if !ok {
		return
	}
	per, err := h.repo.PerDeviceOnDate(ids, day)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"day": day, "devices": per})
}

// GET /api/v1/stats/range?from=&to=&device=&project= — суммы + проценты.
func (h *HTTP) rangeStats(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	ids, ok := h.scope(w, r)
	if !ok {
		return
	}
	perDay, err := h.repo.RangeStats(ids, from, to)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	var total models.Counts
	for _, c := range perDay {
		total.Success += c.Success
		total.Failure += c.Failure
		total.Other += c.Other
	}
	total.Total = total.Success + total.Failure + total.Other

	rate := func(n int) float64 {
		if total.Total == 0 {
			return 0
		}
		return float64(n) / float64(total.Total) * 100
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"days":        perDay,
		"totals":      total,
		"successRate": rate(total.Success),
		"failureRate": rate(total.Failure),
	})
}

// GET /api/v1/stats/chart?days=N&end=&device=&project=
func (h *HTTP) chart(w http.ResponseWriter, r *http.Request) {
	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			days = n
		}
	}
	end := r.URL.Query().Get("end")
	if end == "" {
		end = h.today()
	}
	ids, ok := h.scope(w, r)
	if !ok {
		return
	}
	data, err := h.repo.Chart(ids, end, days)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// GET /api/v1/stats/export?from=&to=&device=&project=
func (h *HTTP) export(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	ids, ok := h.scope(w, r)
	if !ok {
		return
	}
	rows, err := h.repo.ExportRows(ids, from, to)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

// GET /api/v1/devices/{uuid}/version-stats
func (h *HTTP) versionStats(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	out, err := h.repo.VersionBreakdown(uuid)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

// DELETE /api/v1/stats?from=&to=&confirm=true&device=&project=
// История юнитов не каскадится.
func (h *HTTP) purge(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		models.WriteProblem(w, http.StatusBadRequest, "Confirmation required",
			"bulk purge requires confirm=true", nil)
		return
	}
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")

	var (
		ids    []string
		scoped bool
	)
	if dev := r.URL.Query().Get("device"); dev != "" {
		ids, scoped = []string{dev}, true
	} else if p := r.URL.Query().Get("project"); p != "" {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			models.WriteProblem(w, http.StatusBadRequest, "Bad project",
				"project must be a numeric id, got "+p, nil)
			return
		}
		id := uint(n)
		ids, err = h.dir.DeviceUUIDs(&id)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		scoped = true
	}
	// скоуп задан, но устройств в нём нет — удалять нечего;
	// фильтр не расширяется до всех устройств
	if scoped && len(ids) == 0 {
		_ = json.NewEncoder(w).Encode(map[string]any{"deleted": int64(0)})
		return
	}
	n, err := h.repo.Purge(ids, from, to)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"deleted": n})
}
