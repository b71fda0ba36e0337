package repository

import (
	"time"

	"dataprofileservice/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RunHistoryRepository provides data access operations for propagation run records.
type RunHistoryRepository interface {
	Create(tx *gorm.DB, record *models.RunHistory) error
	Complete(tx *gorm.DB, id int64, status models.RunStatus, message string, endTime time.Time) (*models.RunHistory, error)
}

type runHistoryRepository struct {
	db *gorm.DB
}

// NewRunHistoryRepositoryWithDB creates a repository bound to db.
func NewRunHistoryRepositoryWithDB(db *gorm.DB) RunHistoryRepository {
	return &runHistoryRepository{db: db}
}

func (r *runHistoryRepository) Create(tx *gorm.DB, record *models.RunHistory) error {
	db := tx
	if db == nil {
		db = r.db
	}
	return db.Create(record).Error
}

// Complete locks the record and writes its terminal state.
func (r *runHistoryRepository) Complete(tx *gorm.DB, id int64, status models.RunStatus, message string, endTime time.Time) (*models.RunHistory, error) {
	db := tx
	if db == nil {
		db = r.db
	}
	var record models.RunHistory
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("catalog_execution_id = ?", id).
		Take(&record).Error; err != nil {
		return nil, err
	}

	record.Status = status
	record.ErrorMessage = message
	record.ExecutionEndTime = &endTime
	if err := db.Model(&models.RunHistory{}).
		Where("catalog_execution_id = ?", id).
		Updates(map[string]interface{}{
			"status":             status,
			"error_message":      message,
			"execution_end_time": endTime,
		}).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
