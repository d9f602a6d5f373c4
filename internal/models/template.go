package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Config source kinds for ConfigurationTemplate.
const (
	SourceTemplate = "template"
	SourceFile     = "file"
)

// Deployment statuses. Transitions are externally driven; any status may be
// overwritten with any other.
const (
	DeployPending    = "pending"
	DeployActive     = "active"
	DeployFailed     = "failed"
	DeployRolledBack = "rolled-back"
)

type ConfigurationTemplate struct {
	gorm.Model
	OwnerID           string `gorm:"size:64;index:idx_tpl_owner_name,unique,priority:1"`
	Name              string `gorm:"index:idx_tpl_owner_name,unique,priority:2"`
	Vendor            string
	DeviceModel       string `gorm:"column:device_model"`
	EquipmentCategory string
	ConfigType        string
	Version           string `gorm:"default:'1.0.0'"`
	SourceType        string `gorm:"column:source_type;default:'template'"` // template | file
	Body              string `gorm:"type:text"`
	FileRef           string

	Variables []TemplateVariable `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"variables"`

	// Denormalized read projection, rebuilt from the deployments table on
	// fetch. Never written through the template row.
	Deployments []Deployment `gorm:"-" json:"deployments,omitempty"`
}

type TemplateVariable struct {
	gorm.Model
	TemplateID      uint   `gorm:"index:idx_var_tpl_name,unique,priority:1"`
	Name            string `gorm:"index:idx_var_tpl_name,unique,priority:2"`
	Description     string
	Required        bool
	DefaultValue    *string
	DataType        string // string | int | bool | ipv4 | list
	ValidationRegex string
	Options         datatypes.JSONSlice[string]
	Scope           string
	Position        int `gorm:"default:100"`
}

// GeneratedConfiguration is one rendered instance of a template against a
// design/equipment target. Applied records are immutable.
type GeneratedConfiguration struct {
	gorm.Model
	TemplateID  uint   `gorm:"index"`
	DesignID    uint   `gorm:"index"`
	EquipmentID string `gorm:"index"`
	ConfigType  string
	OwnerID     string `gorm:"size:64;index"`

	VariableValues datatypes.JSONType[map[string]string]
	Configuration  string `gorm:"type:text"`

	IsApplied bool `gorm:"index"`
	AppliedAt *time.Time
	Notes     string `gorm:"type:text"`

	// Set by regenerate; points at the record this one was re-rendered from.
	ParentConfigID *uint `gorm:"index"`
}

// Deployment tracks a rendered configuration pushed to one device.
type Deployment struct {
	gorm.Model
	TemplateID uint   `gorm:"index"`
	DeviceID   string `gorm:"index"`
	DeployedBy string `gorm:"size:64"`
	Status     string `gorm:"default:'pending'"`

	Variables      datatypes.JSONType[map[string]string]
	RenderedConfig string `gorm:"type:text"`
	Notes          string `gorm:"type:text"`
}

func ValidDeploymentStatus(s string) bool {
	switch s {
	case DeployPending, DeployActive, DeployFailed, DeployRolledBack:
		return true
	}
	return false
}
