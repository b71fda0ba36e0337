package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"dataprofileservice/models"
	"dataprofileservice/repository"
	"dataprofileservice/services/clients"
	"dataprofileservice/services/dto"
	"dataprofileservice/services/messaging"
)

// fakeBaseRepo runs every transaction body directly with a nil handle.
type fakeBaseRepo struct {
	calls int
}

func (f *fakeBaseRepo) Begin() *gorm.DB { return nil }

func (f *fakeBaseRepo) RunSerializable(_ context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	return fn(nil)
}

type mockProfileRepo struct {
	mock.Mock
}

func (m *mockProfileRepo) Create(tx *gorm.DB, profile *models.DataProfile) error {
	args := m.Called(tx, profile)
	return args.Error(0)
}

func (m *mockProfileRepo) GetByID(tx *gorm.DB, id int64) (*models.DataProfile, error) {
	args := m.Called(tx, id)
	profile, _ := args.Get(0).(*models.DataProfile)
	return profile, args.Error(1)
}

func (m *mockProfileRepo) LockByID(tx *gorm.DB, id int64) (*models.DataProfile, error) {
	args := m.Called(tx, id)
	profile, _ := args.Get(0).(*models.DataProfile)
	return profile, args.Error(1)
}

func (m *mockProfileRepo) FindByNameOrTable(tx *gorm.DB, name, table string, excludeID int64) ([]models.DataProfile, error) {
	args := m.Called(tx, name, table, excludeID)
	profiles, _ := args.Get(0).([]models.DataProfile)
	return profiles, args.Error(1)
}

func (m *mockProfileRepo) List(tx *gorm.DB, filter dto.ListFilter) ([]models.DataProfile, error) {
	args := m.Called(tx, filter)
	profiles, _ := args.Get(0).([]models.DataProfile)
	return profiles, args.Error(1)
}

func (m *mockProfileRepo) Count(tx *gorm.DB, searchTerm string) (int64, error) {
	args := m.Called(tx, searchTerm)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockProfileRepo) UpdateDefinition(tx *gorm.DB, id int64, expectedVersion int, changes repository.ProfileChanges) (*models.DataProfile, error) {
	args := m.Called(tx, id, expectedVersion, changes)
	profile, _ := args.Get(0).(*models.DataProfile)
	return profile, args.Error(1)
}

func (m *mockProfileRepo) UpdateLastSyncTime(tx *gorm.DB, id int64, at time.Time) (int64, error) {
	args := m.Called(tx, id, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockProfileRepo) SetActive(tx *gorm.DB, id int64, active bool) error {
	return m.Called(tx, id, active).Error(0)
}

func (m *mockProfileRepo) SetValidationError(tx *gorm.DB, id int64, hasError bool) error {
	return m.Called(tx, id, hasError).Error(0)
}

func (m *mockProfileRepo) SoftDelete(tx *gorm.DB, id int64) error {
	return m.Called(tx, id).Error(0)
}

type mockRunHistoryRepo struct {
	mock.Mock
}

func (m *mockRunHistoryRepo) Create(tx *gorm.DB, record *models.RunHistory) error {
	return m.Called(tx, record).Error(0)
}

func (m *mockRunHistoryRepo) Complete(tx *gorm.DB, id int64, status models.RunStatus, message string, endTime time.Time) (*models.RunHistory, error) {
	args := m.Called(tx, id, status, message, endTime)
	record, _ := args.Get(0).(*models.RunHistory)
	return record, args.Error(1)
}

type mockRunHistoryService struct {
	mock.Mock
}

func (m *mockRunHistoryService) AddRunHistory(tx *gorm.DB, profileID, targetConnectionID int64) (*models.RunHistory, error) {
	args := m.Called(tx, profileID, targetConnectionID)
	record, _ := args.Get(0).(*models.RunHistory)
	return record, args.Error(1)
}

func (m *mockRunHistoryService) UpdateRunHistoryStatus(tx *gorm.DB, catalogExecutionID int64, eventResponse, message string) (*models.RunHistory, error) {
	args := m.Called(tx, catalogExecutionID, eventResponse, message)
	record, _ := args.Get(0).(*models.RunHistory)
	return record, args.Error(1)
}

type mockConnectionClient struct {
	mock.Mock
}

func (m *mockConnectionClient) ListDatabases(ctx context.Context) ([]clients.DatabaseConnection, error) {
	args := m.Called(ctx)
	conns, _ := args.Get(0).([]clients.DatabaseConnection)
	return conns, args.Error(1)
}

func (m *mockConnectionClient) ConnectionExists(ctx context.Context, connectionID int64) (bool, error) {
	args := m.Called(ctx, connectionID)
	return args.Bool(0), args.Error(1)
}

type mockPipelineClient struct {
	mock.Mock
}

func (m *mockPipelineClient) FindByProfileID(ctx context.Context, profileID int64) (*clients.PipelineAssociation, error) {
	args := m.Called(ctx, profileID)
	assoc, _ := args.Get(0).(*clients.PipelineAssociation)
	return assoc, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCatalogRequest(ctx context.Context, event messaging.CatalogRequestEvent) error {
	return m.Called(ctx, event).Error(0)
}
