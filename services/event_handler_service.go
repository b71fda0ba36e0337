package services

import (
	"context"
	"fmt"

	"dataprofileservice/models"
	"dataprofileservice/pkg/logger"
	"dataprofileservice/repository"
	"dataprofileservice/services/cache"
	"dataprofileservice/services/messaging"

	"gorm.io/gorm"
)

// EventHandlerService applies asynchronous downstream results to stored profiles.
// Handlers never return errors: every message is acknowledged and failures are
// written to the event log.
type EventHandlerService interface {
	// HandleCatalogUpdate completes the run named by the message and marks the
	// profile active when the table change succeeded.
	HandleCatalogUpdate(ctx context.Context, body []byte)

	// HandleProfileUpdate records whether downstream validation flagged the profile.
	HandleProfileUpdate(ctx context.Context, body []byte)
}

type eventHandlerService struct {
	baseRepo     repository.BaseRepository
	profileRepo  repository.DataProfileRepository
	runHistory   RunHistoryService
	cache        cache.Cache
	events       *logger.EventLogger
	catalogQueue string
	profileQueue string
}

// NewEventHandlerService creates handlers backed by db.
func NewEventHandlerService(
	db *gorm.DB,
	txCfg repository.TxConfig,
	resultCache cache.Cache,
	events *logger.EventLogger,
	catalogQueue, profileQueue string,
) EventHandlerService {
	return NewEventHandlerServiceWithDeps(
		repository.NewBaseRepositoryWithDB(db, txCfg),
		repository.NewDataProfileRepositoryWithDB(db),
		NewRunHistoryService(db),
		resultCache,
		events,
		catalogQueue,
		profileQueue,
	)
}

// NewEventHandlerServiceWithDeps creates a handler instance with injected dependencies.
func NewEventHandlerServiceWithDeps(
	baseRepo repository.BaseRepository,
	profileRepo repository.DataProfileRepository,
	runHistory RunHistoryService,
	resultCache cache.Cache,
	events *logger.EventLogger,
	catalogQueue, profileQueue string,
) EventHandlerService {
	return &eventHandlerService{
		baseRepo:     baseRepo,
		profileRepo:  profileRepo,
		runHistory:   runHistory,
		cache:        resultCache,
		events:       events,
		catalogQueue: catalogQueue,
		profileQueue: profileQueue,
	}
}

func (s *eventHandlerService) HandleCatalogUpdate(ctx context.Context, body []byte) {
	event, err := messaging.DecodeCatalogResult(body)
	if err != nil {
		logger.Errorf("Dropping catalog update: %v", err)
		s.events.Error(s.catalogQueue, "invalid catalog update", 0, body, err)
		return
	}

	succeeded := models.StatusForResponse(event.EventResponse) == models.RunStatusSuccess
	err = s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		if _, err := s.runHistory.UpdateRunHistoryStatus(tx, event.CatalogExecutionID, event.EventResponse, event.Message); err != nil {
			return err
		}
		if err := s.profileRepo.SetActive(tx, event.ProfileID, succeeded); err != nil {
			return fmt.Errorf("set profile %d active=%t: %w", event.ProfileID, succeeded, err)
		}
		return nil
	})
	if err != nil {
		logger.Errorf("Catalog update for run %d failed: %v", event.CatalogExecutionID, err)
		s.events.Error(s.catalogQueue, "catalog update not applied", event.ProfileID, body, err)
		return
	}

	s.cache.Clear()
	logger.Infof("Run %d of profile %d finished with %q", event.CatalogExecutionID, event.ProfileID, event.EventResponse)
	s.events.Info(s.catalogQueue, fmt.Sprintf("run %d completed: %s", event.CatalogExecutionID, event.EventResponse), event.ProfileID, body)
}

func (s *eventHandlerService) HandleProfileUpdate(ctx context.Context, body []byte) {
	event, err := messaging.DecodeProfileUpdate(body)
	if err != nil {
		logger.Errorf("Dropping profile update: %v", err)
		s.events.Error(s.profileQueue, "invalid profile update", 0, body, err)
		return
	}

	hasError := event.EventResponse == models.EventResponseValidationError
	err = s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		return s.profileRepo.SetValidationError(tx, event.ProfileID, hasError)
	})
	if err != nil {
		logger.Errorf("Profile update for %d failed: %v", event.ProfileID, err)
		s.events.Error(s.profileQueue, "profile update not applied", event.ProfileID, body, err)
		return
	}

	s.cache.Clear()
	s.events.Info(s.profileQueue, fmt.Sprintf("has_validation_error=%t", hasError), event.ProfileID, body)
}
