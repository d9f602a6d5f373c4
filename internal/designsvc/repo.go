package designsvc

import (
	"errors"

	"netweave/internal/models"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ── Designs ─────────────────────────────────────────────────

func (r *Repo) CreateDesign(d *models.NetworkDesign) error { return r.db.Create(d).Error }
func (r *Repo) SaveDesign(d *models.NetworkDesign) error   { return r.db.Save(d).Error }

func (r *Repo) GetDesign(id uint, owner string) (*models.NetworkDesign, error) {
	var d models.NetworkDesign
	if err := r.db.Where("owner_id = ?", owner).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ── Versions ────────────────────────────────────────────────

func (r *Repo) CreateVersion(v *models.DesignVersion) error { return r.db.Create(v).Error }
func (r *Repo) SaveVersion(v *models.DesignVersion) error   { return r.db.Save(v).Error }

func (r *Repo) GetVersion(id uint) (*models.DesignVersion, error) {
	var v models.DesignVersion
	if err := r.db.First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// VersionStrings returns every version number recorded for the design.
func (r *Repo) VersionStrings(designID uint) ([]string, error) {
	var out []string
	err := r.db.Model(&models.DesignVersion{}).
		Where("design_id = ?", designID).
		Pluck("version", &out).Error
	return out, err
}

type VersionFilter struct {
	DesignID      uint
	PublishedOnly bool
	Limit         int
}

func (r *Repo) ListVersions(f VersionFilter) ([]models.DesignVersion, error) {
	q := r.db.Where("design_id = ?", f.DesignID)
	if f.PublishedOnly {
		q = q.Where("is_published = ?", true)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.DesignVersion
	err := q.Order("id DESC").Find(&out).Error
	return out, err
}

// FindVersionRef resolves a compare query value scoped to the design: by
// numeric id first, then by version string. Multiple matches are impossible
// for ids and broken only by the unique (design_id, version) index for
// strings, so the first row by id is a stable pick.
func (r *Repo) FindVersionRef(designID uint, ref string, asID uint) (*models.DesignVersion, error) {
	var v models.DesignVersion
	if asID != 0 {
		err := r.db.Where("design_id = ?", designID).First(&v, asID).Error
		if err == nil {
			return &v, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	err := r.db.Where("design_id = ? AND version = ?", designID, ref).
		Order("id ASC").First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
