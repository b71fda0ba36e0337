package dto

import (
	"dataprofileservice/models"
)

// ReferenceRequest is the optional foreign-key pointer of a column.
type ReferenceRequest struct {
	TableName  string `json:"tableName" validate:"required,safe_column_name"`
	ColumnName string `json:"columnName" validate:"required,safe_column_name"`
}

// IndexColumnRequest is an index column as submitted by the client.
type IndexColumnRequest struct {
	NotNull         *bool             `json:"notNull" validate:"required"`
	Regex           *string           `json:"regex"`
	DataType        string            `json:"dataType" validate:"required,data_type"`
	IsPrimary       *bool             `json:"isPrimary" validate:"required"`
	ColumnName      string            `json:"columnName" validate:"required,safe_column_name"`
	References      *ReferenceRequest `json:"references" validate:"omitempty"`
	DefaultValue    interface{}       `json:"defaultValue"`
	MaxAllowedChars *int              `json:"maxAllowedChars"`
}

// RegularColumnRequest is a regular column as submitted by the client.
type RegularColumnRequest struct {
	NotNull         *bool             `json:"notNull" validate:"required"`
	DataType        string            `json:"dataType" validate:"required,data_type"`
	Regex           *string           `json:"regex"`
	IsUnique        *bool             `json:"isUnique" validate:"required"`
	ColumnName      string            `json:"columnName" validate:"required,safe_column_name"`
	References      *ReferenceRequest `json:"references" validate:"omitempty"`
	DefaultValue    interface{}       `json:"defaultValue"`
	MaxAllowedChars *int              `json:"maxAllowedChars"`
}

// DerivedColumnRequest is a computed column as submitted by the client.
type DerivedColumnRequest struct {
	NotNull         *bool       `json:"notNull" validate:"required"`
	DataType        string      `json:"dataType" validate:"required,data_type"`
	ColumnName      string      `json:"columnName" validate:"required,safe_column_name"`
	MaxAllowedChars *int        `json:"maxAllowedChars"`
	Operation       *string     `json:"operation" validate:"required,profile_operation"`
	OnValue         interface{} `json:"onValue"`
	OnColumns       []string    `json:"onColumns" validate:"required,min=1,dive,required"`
}

// ColumnDefRequest groups the submitted columns.
type ColumnDefRequest struct {
	IndexColumns   []IndexColumnRequest   `json:"indexColumns" validate:"required,min=1,max=4,dive"`
	RegularColumns []RegularColumnRequest `json:"regularColumns" validate:"required,dive"`
	DerivedColumns []DerivedColumnRequest `json:"derivedColumns" validate:"required,dive"`
}

// ProfileDefRequest is the submitted profile definition.
type ProfileDefRequest struct {
	Schema    string            `json:"schema" validate:"omitempty,safe_column_name"`
	ColumnDef *ColumnDefRequest `json:"columnDef" validate:"required"`
}

// CreateProfileRequest is the body of POST /data-profile.
type CreateProfileRequest struct {
	ProfileName        string             `json:"profile_name" validate:"required,safe_name"`
	TableName          string             `json:"table_name" validate:"required,safe_column_name"`
	ProfileDef         *ProfileDefRequest `json:"profile_def" validate:"required"`
	TargetConnectionID *int64             `json:"target_connection_id" validate:"required"`
}

// UpdateProfileRequest is the body of PUT /data-profile.
type UpdateProfileRequest struct {
	ProfileID   *int64             `json:"profile_id" validate:"required"`
	ProfileName string             `json:"profile_name" validate:"required,safe_name"`
	ProfileDef  *ProfileDefRequest `json:"profile_def" validate:"required"`
	Version     *int               `json:"version" validate:"required"`
}

// LastSyncTimeRequest is the body of PUT /data-profile/update/last-sync-time.
type LastSyncTimeRequest struct {
	ProfileID    *int64 `json:"profile_id" validate:"required"`
	LastSyncTime string `json:"last_sync_time" validate:"required,iso_date"`
}

// ResolveColumnName returns the columnName at the given group position, or the
// operand name when onColumn is not negative. Empty when out of range.
func (r *ProfileDefRequest) ResolveColumnName(group string, index, onColumn int) string {
	if r == nil || r.ColumnDef == nil || index < 0 {
		return ""
	}
	def := r.ColumnDef
	switch group {
	case models.GroupIndexColumns:
		if index < len(def.IndexColumns) {
			return def.IndexColumns[index].ColumnName
		}
	case models.GroupRegularColumns:
		if index < len(def.RegularColumns) {
			return def.RegularColumns[index].ColumnName
		}
	case models.GroupDerivedColumns:
		if index >= len(def.DerivedColumns) {
			return ""
		}
		column := def.DerivedColumns[index]
		if onColumn >= 0 {
			if onColumn < len(column.OnColumns) {
				return column.OnColumns[onColumn]
			}
			return ""
		}
		return column.ColumnName
	}
	return ""
}

// ResolveColumnName delegates to the submitted profile definition.
func (r *CreateProfileRequest) ResolveColumnName(group string, index, onColumn int) string {
	return r.ProfileDef.ResolveColumnName(group, index, onColumn)
}

// ResolveColumnName delegates to the submitted profile definition.
func (r *UpdateProfileRequest) ResolveColumnName(group string, index, onColumn int) string {
	return r.ProfileDef.ResolveColumnName(group, index, onColumn)
}

// ToModel converts a shape-validated definition into the stored column model.
func (r *ColumnDefRequest) ToModel() models.ColumnDef {
	def := models.ColumnDef{
		IndexColumns:   make([]models.Column, 0, len(r.IndexColumns)),
		RegularColumns: make([]models.Column, 0, len(r.RegularColumns)),
		DerivedColumns: make([]models.Column, 0, len(r.DerivedColumns)),
	}
	for _, c := range r.IndexColumns {
		def.IndexColumns = append(def.IndexColumns, models.Column{
			ColumnName:      c.ColumnName,
			DataType:        models.DataType(c.DataType),
			NotNull:         deref(c.NotNull),
			Regex:           c.Regex,
			MaxAllowedChars: c.MaxAllowedChars,
			DefaultValue:    c.DefaultValue,
			References:      c.References.toModel(),
			IsPrimary:       c.IsPrimary,
		})
	}
	for _, c := range r.RegularColumns {
		def.RegularColumns = append(def.RegularColumns, models.Column{
			ColumnName:      c.ColumnName,
			DataType:        models.DataType(c.DataType),
			NotNull:         deref(c.NotNull),
			Regex:           c.Regex,
			MaxAllowedChars: c.MaxAllowedChars,
			DefaultValue:    c.DefaultValue,
			References:      c.References.toModel(),
			IsUnique:        c.IsUnique,
		})
	}
	for _, c := range r.DerivedColumns {
		var operation *models.Operation
		if c.Operation != nil {
			o := models.Operation(*c.Operation)
			operation = &o
		}
		def.DerivedColumns = append(def.DerivedColumns, models.Column{
			ColumnName:      c.ColumnName,
			DataType:        models.DataType(c.DataType),
			NotNull:         deref(c.NotNull),
			MaxAllowedChars: c.MaxAllowedChars,
			Operation:       operation,
			OnValue:         c.OnValue,
			OnColumns:       c.OnColumns,
		})
	}
	return def
}

func (r *ReferenceRequest) toModel() *models.Reference {
	if r == nil {
		return nil
	}
	return &models.Reference{TableName: r.TableName, ColumnName: r.ColumnName}
}

func deref(b *bool) bool {
	return b != nil && *b
}
