package services

import (
	"context"
	"fmt"
	"time"

	"dataprofileservice/models"
	"dataprofileservice/pkg/logger"
	"dataprofileservice/repository"
	"dataprofileservice/services/cache"
	"dataprofileservice/services/clients"
	"dataprofileservice/services/dto"
	"dataprofileservice/services/messaging"
	"dataprofileservice/services/validation"
	"dataprofileservice/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Result cache key layout.
const (
	profileCachePrefix = "data-profile-"
	listCachePrefix    = "all-data-profile-"
)

// publishTimeout bounds the post-commit publish, which outlives the request.
const publishTimeout = 10 * time.Second

func profileCacheKey(id int64) string {
	return fmt.Sprintf("%s%d", profileCachePrefix, id)
}

// DataProfileService provides business logic for data profile management.
// All methods accept context.Context for cancellation and timeout control.
// Returned errors are *utils.AppError values ready for the HTTP layer.
type DataProfileService interface {
	// Create validates the definition, checks name uniqueness and the target connection,
	// then stores the profile with a QUEUED run and requests CREATE TABLE downstream.
	Create(ctx context.Context, req *dto.CreateProfileRequest, caller string) (*models.DataProfile, error)

	// Update replaces the column definition of an existing profile. The caller's version
	// must equal the stored one; the stored version is then incremented.
	Update(ctx context.Context, req *dto.UpdateProfileRequest, caller string) (*models.DataProfile, error)

	// Get returns one profile and whether it came from the result cache.
	Get(ctx context.Context, id int64) (*models.DataProfile, bool, error)

	// List returns one page of profiles and whether it came from the result cache.
	List(ctx context.Context, query dto.ListProfilesQuery) (*dto.ListResult[models.DataProfile], bool, error)

	// Delete soft-deletes a profile.
	Delete(ctx context.Context, id int64) error

	// UpdateLastSyncTime records when the profile's table was last synchronized.
	UpdateLastSyncTime(ctx context.Context, req *dto.LastSyncTimeRequest) (*models.DataProfile, error)
}

type dataProfileService struct {
	baseRepo    repository.BaseRepository
	profileRepo repository.DataProfileRepository
	runHistory  RunHistoryService
	connections clients.ConnectionClient
	pipelines   clients.PipelineClient
	publisher   messaging.CatalogPublisher
	cache       cache.Cache
	now         func() time.Time
}

// NewDataProfileService creates a service backed by db. txCfg sets the isolation level
// and connection acquire timeout of its transactions.
func NewDataProfileService(
	db *gorm.DB,
	txCfg repository.TxConfig,
	connections clients.ConnectionClient,
	pipelines clients.PipelineClient,
	publisher messaging.CatalogPublisher,
	resultCache cache.Cache,
) DataProfileService {
	return NewDataProfileServiceWithDeps(
		repository.NewBaseRepositoryWithDB(db, txCfg),
		repository.NewDataProfileRepositoryWithDB(db),
		NewRunHistoryService(db),
		connections,
		pipelines,
		publisher,
		resultCache,
	)
}

// NewDataProfileServiceWithDeps creates a service instance with injected dependencies.
// Used for testing to provide mock implementations of repositories and collaborators.
func NewDataProfileServiceWithDeps(
	baseRepo repository.BaseRepository,
	profileRepo repository.DataProfileRepository,
	runHistory RunHistoryService,
	connections clients.ConnectionClient,
	pipelines clients.PipelineClient,
	publisher messaging.CatalogPublisher,
	resultCache cache.Cache,
) DataProfileService {
	return &dataProfileService{
		baseRepo:    baseRepo,
		profileRepo: profileRepo,
		runHistory:  runHistory,
		connections: connections,
		pipelines:   pipelines,
		publisher:   publisher,
		cache:       resultCache,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func duplicateProfileError(name, table string) error {
	return utils.NewConflictError(
		fmt.Sprintf("Data Profile already exists %s-%s", name, table),
		fmt.Sprintf("data-profile.duplicate|%s-%s", name, table),
	)
}

var errNameTaken = utils.NewConflictError("Another profile already exists with the same name", "profile-update-duplicate-error|")

func (s *dataProfileService) Create(ctx context.Context, req *dto.CreateProfileRequest, caller string) (*models.DataProfile, error) {
	columnDef := req.ProfileDef.ColumnDef.ToModel()
	if failure := validation.Validate(columnDef); failure != nil {
		logger.Debugf("Profile %q rejected at %s with %d violations", req.ProfileName, failure.Stage, len(failure.Violations))
		return nil, structuralError(failure)
	}

	var existing []models.DataProfile
	err := s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		var err error
		existing, err = s.profileRepo.FindByNameOrTable(tx, req.ProfileName, req.TableName, 0)
		return err
	})
	if err != nil {
		return nil, storeError(fmt.Errorf("check profile uniqueness: %w", err))
	}
	if len(existing) > 0 {
		return nil, duplicateProfileError(req.ProfileName, req.TableName)
	}

	connectionID := *req.TargetConnectionID
	found, err := s.connections.ConnectionExists(ctx, connectionID)
	if err != nil {
		return nil, upstreamError("Unable to verify target connection", err)
	}
	if !found {
		return nil, utils.NewBadRequestError("Target Connection Not Found", "target-connection-error")
	}

	profile := &models.DataProfile{
		ProfileName:        req.ProfileName,
		Table:              req.TableName,
		Schema:             req.ProfileDef.Schema,
		ProfileDef:         datatypes.NewJSONType(models.ProfileDef{Schema: req.ProfileDef.Schema, ColumnDef: columnDef}),
		TargetConnectionID: connectionID,
		CreatedBy:          caller,
		CreatedAt:          s.now(),
	}
	var run *models.RunHistory
	err = s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		if err := s.profileRepo.Create(tx, profile); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		var err error
		run, err = s.runHistory.AddRunHistory(tx, profile.ProfileID, connectionID)
		return err
	})
	if err != nil {
		if isDuplicateKey(err) {
			return nil, duplicateProfileError(req.ProfileName, req.TableName)
		}
		return nil, storeError(err)
	}
	logger.Infof("Created data profile id=%d name=%s by %s", profile.ProfileID, profile.ProfileName, caller)

	s.requestPropagation(ctx, run, models.EventRequestCreateTable)
	s.cache.Clear()
	return profile, nil
}

func (s *dataProfileService) Update(ctx context.Context, req *dto.UpdateProfileRequest, caller string) (*models.DataProfile, error) {
	id := *req.ProfileID

	var current *models.DataProfile
	err := s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		var err error
		current, err = s.profileRepo.GetByID(tx, id)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}

	pipeline, err := s.pipelines.FindByProfileID(ctx, id)
	if err != nil {
		return nil, upstreamError("Unable to verify pipeline association", err)
	}
	if pipeline != nil {
		return nil, utils.NewConflictError(
			fmt.Sprintf("Unable to edit profile, profile %s is associated with pipeline %s", req.ProfileName, pipeline.DataPipelineName),
			fmt.Sprintf("profile-asscoiated-with-pipeline|%s : %s", req.ProfileName, pipeline.DataPipelineName),
		)
	}

	columnDef := req.ProfileDef.ColumnDef.ToModel()
	if failure := validation.Validate(columnDef); failure != nil {
		logger.Debugf("Update of profile %d rejected at %s with %d violations", id, failure.Stage, len(failure.Violations))
		return nil, structuralError(failure)
	}

	changes := repository.ProfileChanges{
		ProfileName: req.ProfileName,
		// The schema is fixed at creation.
		ProfileDef: models.ProfileDef{Schema: current.ProfileDef.Data().Schema, ColumnDef: columnDef},
		UpdatedBy:  caller,
		UpdatedAt:  s.now(),
	}

	var updated *models.DataProfile
	var run *models.RunHistory
	err = s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		others, err := s.profileRepo.FindByNameOrTable(tx, req.ProfileName, "", id)
		if err != nil {
			return fmt.Errorf("check profile name: %w", err)
		}
		if len(others) > 0 {
			return errNameTaken
		}
		if updated, err = s.profileRepo.UpdateDefinition(tx, id, *req.Version, changes); err != nil {
			return fmt.Errorf("update profile %d: %w", id, err)
		}
		run, err = s.runHistory.AddRunHistory(tx, id, updated.TargetConnectionID)
		return err
	})
	if err != nil {
		if isDuplicateKey(err) {
			return nil, errNameTaken
		}
		return nil, storeError(err)
	}
	logger.Infof("Updated data profile id=%d to version %d by %s", id, updated.Version, caller)

	s.requestPropagation(ctx, run, models.EventRequestAlterTable)
	s.refreshProfile(updated)
	return updated, nil
}

func (s *dataProfileService) Get(ctx context.Context, id int64) (*models.DataProfile, bool, error) {
	key := profileCacheKey(id)
	if v, ok := s.cache.Get(key); ok {
		if profile, ok := v.(models.DataProfile); ok {
			return &profile, true, nil
		}
	}

	var profile *models.DataProfile
	err := s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		var err error
		profile, err = s.profileRepo.GetByID(tx, id)
		return err
	})
	if err != nil {
		return nil, false, storeError(err)
	}
	s.cache.Set(key, *profile)
	return profile, false, nil
}

func (s *dataProfileService) List(ctx context.Context, query dto.ListProfilesQuery) (*dto.ListResult[models.DataProfile], bool, error) {
	key := listCachePrefix + query.CacheKey()
	if v, ok := s.cache.Get(key); ok {
		if result, ok := v.(dto.ListResult[models.DataProfile]); ok {
			return &result, true, nil
		}
	}

	builder := dto.NewListFilterBuilder().
		SetSearchTerm(query.SearchTerm).
		SetPagination(query.Limit, query.Page)
	if query.SortBy != "" {
		spec, err := dto.ParseSortBy(query.SortBy)
		if err != nil {
			return nil, false, utils.NewBadRequestError(`sort_by must look like {"column":"<name>","order":"asc|desc"}`, "string.pattern.base|")
		}
		if !dto.IsSortable(spec.Column) {
			return nil, false, utils.NewBadRequestError(
				fmt.Sprintf("Sorting by %s is not supported", spec.Column),
				"sort_by-invalid-column|"+spec.Column,
			)
		}
		builder.SetSort(spec)
	}
	filter := builder.Build()

	var profiles []models.DataProfile
	var total int64
	err := s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		var err error
		if profiles, err = s.profileRepo.List(tx, filter); err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		if total, err = s.profileRepo.Count(tx, filter.SearchTerm); err != nil {
			return fmt.Errorf("count profiles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, storeError(err)
	}
	if profiles == nil {
		profiles = []models.DataProfile{}
	}

	result := dto.ListResult[models.DataProfile]{
		Data:       profiles,
		Pagination: dto.NewPagination(total, filter.Page, filter.Limit),
	}
	s.cache.Set(key, result)
	return &result, false, nil
}

func (s *dataProfileService) Delete(ctx context.Context, id int64) error {
	err := s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		return s.profileRepo.SoftDelete(tx, id)
	})
	if err != nil {
		return storeError(err)
	}
	logger.Infof("Deleted data profile id=%d", id)

	s.cache.Remove(profileCacheKey(id))
	s.cache.RemovePrefix(listCachePrefix)
	return nil
}

func (s *dataProfileService) UpdateLastSyncTime(ctx context.Context, req *dto.LastSyncTimeRequest) (*models.DataProfile, error) {
	id := *req.ProfileID
	syncedAt, err := utils.ParseISODate(req.LastSyncTime)
	if err != nil {
		return nil, utils.NewBadRequestError("last_sync_time must be in ISO 8601 date format", "date.format|")
	}

	var updated *models.DataProfile
	err = s.baseRepo.RunSerializable(ctx, func(tx *gorm.DB) error {
		rows, err := s.profileRepo.UpdateLastSyncTime(tx, id, syncedAt)
		if err != nil {
			return err
		}
		if rows == 0 {
			return utils.NewConflictError("The profile is being modified. Try again later", "data-profile-modification-in-progress|")
		}
		updated, err = s.profileRepo.GetByID(tx, id)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	logger.Infof("Updated last sync time of profile id=%d to %s", id, syncedAt.Format(time.RFC3339))

	s.refreshProfile(updated)
	return updated, nil
}

// refreshProfile drops cached lists and re-seeds the cached copy of profile.
func (s *dataProfileService) refreshProfile(profile *models.DataProfile) {
	key := profileCacheKey(profile.ProfileID)
	s.cache.RemovePrefix(listCachePrefix)
	s.cache.Remove(key)
	s.cache.Set(key, *profile)
}

// requestPropagation publishes the catalog request for run. Failures are logged only.
func (s *dataProfileService) requestPropagation(ctx context.Context, run *models.RunHistory, request string) {
	event := messaging.CatalogRequestEvent{
		CatalogExecutionID: run.CatalogExecutionID,
		ConnectionID:       run.TargetConnectionID,
		EventID:            run.EventID,
		EventRequest:       request,
		EventTime:          run.ExecutionStartTime,
		ProfileID:          run.DataProfileID,
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishCatalogRequest(ctx, event); err != nil {
		logger.Errorf("Failed to publish %s for profile %d (run %d): %v", request, run.DataProfileID, run.CatalogExecutionID, err)
		return
	}
	logger.Debugf("Published %s for profile %d (run %d)", request, run.DataProfileID, run.CatalogExecutionID)
}
