package services

import (
	"fmt"
	"time"

	"dataprofileservice/models"
	"dataprofileservice/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunHistoryService appends propagation attempts and records their outcome.
// Both methods run inside the caller's transaction.
type RunHistoryService interface {
	// AddRunHistory inserts a QUEUED record with a fresh event id.
	AddRunHistory(tx *gorm.DB, profileID, targetConnectionID int64) (*models.RunHistory, error)

	// UpdateRunHistoryStatus locks the record and stores the terminal status derived
	// from eventResponse.
	UpdateRunHistoryStatus(tx *gorm.DB, catalogExecutionID int64, eventResponse, message string) (*models.RunHistory, error)
}

type runHistoryService struct {
	runHistoryRepo repository.RunHistoryRepository
	now            func() time.Time
}

// NewRunHistoryService creates a run history service backed by db.
func NewRunHistoryService(db *gorm.DB) RunHistoryService {
	return NewRunHistoryServiceWithDeps(repository.NewRunHistoryRepositoryWithDB(db))
}

// NewRunHistoryServiceWithDeps creates a service instance with injected dependencies.
func NewRunHistoryServiceWithDeps(runHistoryRepo repository.RunHistoryRepository) RunHistoryService {
	return &runHistoryService{
		runHistoryRepo: runHistoryRepo,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *runHistoryService) AddRunHistory(tx *gorm.DB, profileID, targetConnectionID int64) (*models.RunHistory, error) {
	record := &models.RunHistory{
		EventID:            uuid.NewString(),
		DataProfileID:      profileID,
		TargetConnectionID: targetConnectionID,
		ExecutionStartTime: s.now(),
		Status:             models.RunStatusQueued,
		ErrorMessage:       "",
	}
	if err := s.runHistoryRepo.Create(tx, record); err != nil {
		return nil, fmt.Errorf("add run history for profile %d: %w", profileID, err)
	}
	return record, nil
}

func (s *runHistoryService) UpdateRunHistoryStatus(tx *gorm.DB, catalogExecutionID int64, eventResponse, message string) (*models.RunHistory, error) {
	status := models.StatusForResponse(eventResponse)
	record, err := s.runHistoryRepo.Complete(tx, catalogExecutionID, status, message, s.now())
	if err != nil {
		return nil, fmt.Errorf("complete run history %d: %w", catalogExecutionID, err)
	}
	return record, nil
}
