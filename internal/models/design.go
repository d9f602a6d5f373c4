package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NetworkDesign is the live design document. The document body is opaque JSON
// owned by the client; the server only snapshots, diffs and restores it.
type NetworkDesign struct {
	gorm.Model
	OwnerID  string `gorm:"size:64;index"`
	Name     string
	Document datatypes.JSON
}

// DesignVersion is an immutable snapshot of a NetworkDesign with a semantic
// version number, unique per design.
type DesignVersion struct {
	gorm.Model
	DesignID uint   `gorm:"index:idx_design_semver,unique,priority:1"`
	Version  string `gorm:"index:idx_design_semver,unique,priority:2"`

	Snapshot  datatypes.JSON
	CreatedBy string `gorm:"size:64"`
	Changes   string `gorm:"type:text"`
	Notes     string `gorm:"type:text"`
	Tags      datatypes.JSONSlice[string]

	ParentVersionID *uint `gorm:"index"`

	IsPublished bool `gorm:"index"`
	PublishedAt *time.Time
}
