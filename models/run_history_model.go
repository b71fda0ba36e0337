package models

import "time"

// RunStatus is the lifecycle state of a propagation attempt.
type RunStatus string

// Run-history states. QUEUED is set on creation; the others are terminal.
const (
	RunStatusQueued  RunStatus = "QUEUED"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailure RunStatus = "FAILURE"
)

// Downstream event request and response values.
const (
	EventRequestCreateTable = "CREATE TABLE"
	EventRequestAlterTable  = "ALTER TABLE"

	EventResponseCreateTableSuccess = "CREATE TABLE SUCCESS"
	EventResponseAlterTableSuccess  = "ALTER TABLE SUCCESS"
	EventResponseValidationError    = "VALIDATION ERROR"
)

// RunHistory records one create/update propagation attempt of a data profile.
type RunHistory struct {
	CatalogExecutionID int64      `gorm:"primaryKey;column:catalog_execution_id" json:"catalog_execution_id"`
	EventID            string     `gorm:"column:event_id;uniqueIndex" json:"event_id"`
	DataProfileID      int64      `gorm:"column:data_profile_id;index" json:"data_profile_id"`
	TargetConnectionID int64      `gorm:"column:target_connection_id" json:"target_connection_id"`
	ExecutionStartTime time.Time  `gorm:"column:execution_start_time" json:"execution_start_time"`
	ExecutionEndTime   *time.Time `gorm:"column:execution_end_time" json:"execution_end_time"`
	Status             RunStatus  `gorm:"column:status" json:"status"`
	ErrorMessage       string     `gorm:"column:error_message" json:"error_message"`
}

// TableName specifies the static table name for GORM.
func (RunHistory) TableName() string {
	return "data_profile_run_history"
}

// StatusForResponse maps a downstream event response to the terminal run status.
func StatusForResponse(eventResponse string) RunStatus {
	switch eventResponse {
	case EventResponseCreateTableSuccess, EventResponseAlterTableSuccess:
		return RunStatusSuccess
	default:
		return RunStatusFailure
	}
}
