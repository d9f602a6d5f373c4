package configsvc

import (
	"errors"
	"time"

	"netweave/internal/models"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ── Templates ───────────────────────────────────────────────

func (r *Repo) CreateTemplate(t *models.ConfigurationTemplate) error {
	return r.db.Create(t).Error
}

// UpdateTemplate saves the template row and replaces its variable set
// wholesale; partial variable edits are not a thing at this layer.
func (r *Repo) UpdateTemplate(t *models.ConfigurationTemplate) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		vars := t.Variables
		t.Variables = nil
		if err := tx.Save(t).Error; err != nil {
			return err
		}
		// Hard delete: a soft-deleted row would still hold the
		// (template_id, name) unique index slot.
		if err := tx.Unscoped().Where("template_id = ?", t.ID).Delete(&models.TemplateVariable{}).Error; err != nil {
			return err
		}
		for i := range vars {
			vars[i].ID = 0
			vars[i].TemplateID = t.ID
			if err := tx.Create(&vars[i]).Error; err != nil {
				return err
			}
		}
		t.Variables = vars
		return nil
	})
}

func (r *Repo) GetTemplate(id uint, owner string) (*models.ConfigurationTemplate, error) {
	var t models.ConfigurationTemplate
	err := r.db.
		Preload("Variables", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC, id ASC") }).
		Where("owner_id = ?", owner).
		First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) ListTemplates(owner string) ([]models.ConfigurationTemplate, error) {
	var out []models.ConfigurationTemplate
	err := r.db.
		Preload("Variables", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC, id ASC") }).
		Where("owner_id = ?", owner).
		Order("id").
		Find(&out).Error
	return out, err
}

func (r *Repo) DeleteTemplate(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("template_id = ?", id).Delete(&models.TemplateVariable{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.ConfigurationTemplate{}, id).Error
	})
}

// DependentCount counts generated configurations plus deployments that still
// reference the template. The soft delete guard lives in the service.
func (r *Repo) DependentCount(templateID uint) (int64, error) {
	var configs, deps int64
	if err := r.db.Model(&models.GeneratedConfiguration{}).
		Where("template_id = ?", templateID).Count(&configs).Error; err != nil {
		return 0, err
	}
	if err := r.db.Model(&models.Deployment{}).
		Where("template_id = ?", templateID).Count(&deps).Error; err != nil {
		return 0, err
	}
	return configs + deps, nil
}

// ── Generated configurations ────────────────────────────────

func (r *Repo) CreateConfig(c *models.GeneratedConfiguration) error {
	return r.db.Create(c).Error
}

func (r *Repo) GetConfig(id uint) (*models.GeneratedConfiguration, error) {
	var c models.GeneratedConfiguration
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

type ConfigFilter struct {
	Owner      string
	DesignID   uint
	TemplateID uint
}

func (r *Repo) ListConfigs(f ConfigFilter) ([]models.GeneratedConfiguration, error) {
	q := r.db.Where("owner_id = ?", f.Owner)
	if f.DesignID != 0 {
		q = q.Where("design_id = ?", f.DesignID)
	}
	if f.TemplateID != 0 {
		q = q.Where("template_id = ?", f.TemplateID)
	}
	var out []models.GeneratedConfiguration
	err := q.Order("id").Find(&out).Error
	return out, err
}

// MarkApplied flips is_applied with a conditional write so a concurrent
// apply/delete pair resolves deterministically. Returns false when the
// record was already applied (the timestamp is then left alone).
func (r *Repo) MarkApplied(id uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.GeneratedConfiguration{}).
		Where("id = ? AND is_applied = ?", id, false).
		Updates(map[string]any{"is_applied": true, "applied_at": at})
	return res.RowsAffected > 0, res.Error
}

func (r *Repo) SetConfigNotes(id uint, notes string) error {
	return r.db.Model(&models.GeneratedConfiguration{}).
		Where("id = ?", id).
		Update("notes", notes).Error
}

// DeleteConfigIfNotApplied is delete-if-not-applied, not read-then-delete:
// a delete racing a concurrent apply affects zero rows and the caller
// reports Conflict.
func (r *Repo) DeleteConfigIfNotApplied(id uint) (bool, error) {
	res := r.db.Unscoped().
		Where("id = ? AND is_applied = ?", id, false).
		Delete(&models.GeneratedConfiguration{})
	return res.RowsAffected > 0, res.Error
}

// ── Deployments ─────────────────────────────────────────────

func (r *Repo) CreateDeployment(d *models.Deployment) error {
	return r.db.Create(d).Error
}

func (r *Repo) GetDeployment(templateID, id uint) (*models.Deployment, error) {
	var d models.Deployment
	err := r.db.Where("template_id = ?", templateID).First(&d, id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) SaveDeployment(d *models.Deployment) error {
	return r.db.Save(d).Error
}

// DeploymentsByTemplate feeds the template's embedded deployment view. The
// standalone table is the source of truth; the projection is rebuilt on
// every read, never dual-written.
func (r *Repo) DeploymentsByTemplate(templateID uint) ([]models.Deployment, error) {
	var out []models.Deployment
	err := r.db.Where("template_id = ?", templateID).Order("id").Find(&out).Error
	return out, err
}

// ── Designs (target existence only) ─────────────────────────

func (r *Repo) HasDesign(id uint, owner string) (bool, error) {
	var count int64
	err := r.db.Model(&models.NetworkDesign{}).
		Where("id = ? AND owner_id = ?", id, owner).
		Count(&count).Error
	return count > 0, err
}

// IsNotFound reports a missing-row error from any repo call.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports a unique-index violation (race loser).
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
