package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DataProfile is a user-defined table specification managed by this service.
// Version grows by one on every full update and guards concurrent edits.
// IsActive reflects downstream propagation status only; deletion is tracked by DeletedAt.
type DataProfile struct {
	ProfileID          int64                          `gorm:"primaryKey;column:profile_id" json:"profile_id"`
	ProfileName        string                         `gorm:"column:profile_name;uniqueIndex" json:"profile_name"`
	Table              string                         `gorm:"column:table_name;uniqueIndex" json:"table_name"`
	Schema             string                         `gorm:"column:schema" json:"schema"`
	ProfileDef         datatypes.JSONType[ProfileDef] `gorm:"column:profile_def" json:"profile_def"`
	TargetConnectionID int64                          `gorm:"column:target_connection_id" json:"target_connection_id"`
	CreatedBy          string                         `gorm:"column:created_by" json:"created_by"`
	UpdatedBy          *string                        `gorm:"column:updated_by" json:"updated_by"`
	CreatedAt          time.Time                      `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt          *time.Time                     `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
	LastSyncTime       *time.Time                     `gorm:"column:last_sync_time" json:"last_sync_time"`
	IsActive           bool                           `gorm:"column:is_active" json:"is_active"`
	HasValidationError bool                           `gorm:"column:has_validation_error" json:"has_validation_error"`
	Version            int                            `gorm:"column:version" json:"version"`
	DeletedAt          gorm.DeletedAt                 `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the static table name for GORM.
func (DataProfile) TableName() string {
	return "data_profile"
}

// ColumnDef returns the stored column definition.
func (p DataProfile) ColumnDef() ColumnDef {
	return p.ProfileDef.Data().ColumnDef
}
