package fleet

import (
	"errors"
	"strings"

	"flint/internal/models"
	"flint/internal/ota"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ── Devices ─────────────────────────────────────────────────

func (r *Repo) CreateDevice(name string) (*models.Device, error) {
	d := models.Device{UUID: uuid.NewString(), Name: strings.TrimSpace(name), Status: "registered"}
	if err := r.db.Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) GetDevice(id string) (*models.Device, error) {
	var d models.Device
	if err := r.db.Where("uuid = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) ListDevices(projectID *uint) ([]models.Device, error) {
	q := r.db.Order("id")
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	}
	var out []models.Device
	err := q.Find(&out).Error
	return out, err
}

func (r *Repo) UpdateDevice(id string, name, status *string, projectID **uint) (*models.Device, error) {
	d, err := r.GetDevice(id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		d.Name = strings.TrimSpace(*name)
	}
	if status != nil {
		d.Status = *status
	}
	if projectID != nil {
		d.ProjectID = *projectID // nil отвязывает от проекта
	}
	if err := r.db.Save(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Repo) DeleteDevice(id string) error {
	return r.db.Where("uuid = ?", id).Delete(&models.Device{}).Error
}

// ── Projects ────────────────────────────────────────────────

func (r *Repo) CreateProject(name, note string) (*models.Project, error) {
	p := models.Project{Name: strings.TrimSpace(name), Note: note}
	if err := r.db.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetProject(id uint) (*models.Project, error) {
	var p models.Project
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) ListProjects() ([]models.Project, error) {
	var out []models.Project
	err := r.db.Order("id").Find(&out).Error
	return out, err
}

func (r *Repo) DeleteProject(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// участники остаются, но отвязываются
		if err := tx.Model(&models.Device{}).Where("project_id = ?", id).
			Update("project_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, id).Error
	})
}

// ── Directory contracts ─────────────────────────────────────

// FindDevice реализует ota.DeviceDirectory.
func (r *Repo) FindDevice(id string) (ota.DeviceInfo, bool) {
	d, err := r.GetDevice(id)
	if err != nil {
		return ota.DeviceInfo{}, false
	}
	return ota.DeviceInfo{UUID: d.UUID, Name: d.Name, ProjectID: d.ProjectID}, true
}

// DeviceUUIDs реализует stats.Directory: nil — все устройства.
func (r *Repo) DeviceUUIDs(projectID *uint) ([]string, error) {
	devs, err := r.ListDevices(projectID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(devs))
	for _, d := range devs {
		out = append(out, d.UUID)
	}
	return out, nil
}

var ErrNotFound = gorm.ErrRecordNotFound

func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
