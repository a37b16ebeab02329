// Package models contains domain models for wishare.
package models

import "time"

// SchemaVersion is one row of the schema_version table: a migration script
// that has been applied to the database.
type SchemaVersion struct {
	UpdateDate time.Time `gorm:"column:update_date;not null" json:"update_date"`
	FileName   string    `gorm:"column:file_name;not null" json:"file_name"`
	Version    int       `gorm:"column:version;primaryKey;autoIncrement:false" json:"version"`
}

// TableName returns the table the migration engine records versions in.
func (SchemaVersion) TableName() string { return "schema_version" }
