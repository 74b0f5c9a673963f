package fleet

import (
	"encoding/json"
	"net/http"
	"strconv"

	"flint/internal/activity"
	"flint/internal/models"

	"github.com/gorilla/mux"
)

// ConfigCascade — зависимые документы, удаляемые вместе с устройством.
type ConfigCascade interface {
	DeleteForDevice(deviceUUID string) error
}

type HTTP struct {
	repo    *Repo
	cascade ConfigCascade
	act     *activity.Sink
}

func NewHTTP(repo *Repo, cascade ConfigCascade, act *activity.Sink) *HTTP {
	return &HTTP{repo: repo, cascade: cascade, act: act}
}

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/devices", h.createDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices", h.listDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{uuid}", h.getDevice).Methods(http.MethodGet)
	api.HandleFunc("/devices/{uuid}", h.updateDevice).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/devices/{uuid}", h.deleteDevice).Methods(http.MethodDelete)

	api.HandleFunc("/projects", h.createProject).Methods(http.MethodPost)
	api.HandleFunc("/projects", h.listProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", h.deleteProject).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/devices", h.projectDevices).Methods(http.MethodGet)
}

func (h *HTTP) createDevice(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		http.Error(w, "invalid body (need {name})", 400)
		return
	}
	d, err := h.repo.CreateDevice(in.Name)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	h.act.Log(r.Context(), "device.create", d.UUID, d.Name)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(d)
}

func (h *HTTP) listDevices(w http.ResponseWriter, r *http.Request) {
	var projectID *uint
	if p := r.URL.Query().Get("project"); p != "" {
		if n, err := strconv.ParseUint(p, 10, 64); err == nil {
			id := uint(n)
			projectID = &id
		}
	}
	ds, err := h.repo.ListDevices(projectID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(ds)
}

func (h *HTTP) getDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]
	d, err := h.repo.GetDevice(id)
	if err != nil {
		if IsNotFound(err) {
			models.WriteProblem(w, http.StatusNotFound, "Not found", "device not found", map[string]string{"uuid": id})
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(d)
}

func (h *HTTP) updateDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]
	var in struct {
		Name      *string `json:"name"`
		Status    *string `json:"status"`
		ProjectID *uint   `json:"projectId"`
		Detach    bool    `json:"detachProject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json", 400)
		return
	}
	var projectID **uint
	if in.Detach {
		var null *uint
		projectID = &null
	} else if in.ProjectID != nil {
		projectID = &in.ProjectID
	}
	d, err := h.repo.UpdateDevice(id, in.Name, in.Status, projectID)
	if err != nil {
		if IsNotFound(err) {
			models.WriteProblem(w, http.StatusNotFound, "Not found", "device not found", map[string]string{"uuid": id})
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(d)
}

func (h *HTTP) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]
	if err := h.repo.DeleteDevice(id); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	// каскад: конфигурация статусов устройства уходит вместе с ним
	if h.cascade != nil {
		if err := h.cascade.DeleteForDevice(id); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	}
	h.act.Log(r.Context(), "device.delete", id, "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) createProject(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		http.Error(w, "invalid body (need {name})", 400)
		return
	}
	p, err := h.repo.CreateProject(in.Name, in.Note)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	h.act.Log(r.Context(), "project.create", p.Name, "")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(p)
}

func (h *HTTP) listProjects(w http.ResponseWriter, _ *http.Request) {
	ps, err := h.repo.ListProjects()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(ps)
}

func (h *HTTP) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err := h.repo.DeleteProject(uint(id)); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) projectDevices(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	pid := uint(id)
	ds, err := h.repo.ListDevices(&pid)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	_ = json.NewEncoder(w).Encode(ds)
}
