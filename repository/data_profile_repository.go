package repository

import (
	"errors"
	"strings"
	"time"

	"dataprofileservice/models"
	"dataprofileservice/services/dto"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrConcurrentUpdate is returned when a guarded update matched no row.
var ErrConcurrentUpdate = errors.New("profile was modified concurrently")

// ProfileChanges are the fields written by a full profile update.
type ProfileChanges struct {
	ProfileName string
	ProfileDef  models.ProfileDef
	UpdatedBy   string
	UpdatedAt   time.Time
}

// DataProfileRepository provides data access operations for data profiles.
// Lock and update methods must run inside a transaction to hold the row lock.
type DataProfileRepository interface {
	Create(tx *gorm.DB, profile *models.DataProfile) error
	GetByID(tx *gorm.DB, id int64) (*models.DataProfile, error)
	LockByID(tx *gorm.DB, id int64) (*models.DataProfile, error)
	FindByNameOrTable(tx *gorm.DB, name, table string, excludeID int64) ([]models.DataProfile, error)
	List(tx *gorm.DB, filter dto.ListFilter) ([]models.DataProfile, error)
	Count(tx *gorm.DB, searchTerm string) (int64, error)
	UpdateDefinition(tx *gorm.DB, id int64, expectedVersion int, changes ProfileChanges) (*models.DataProfile, error)
	UpdateLastSyncTime(tx *gorm.DB, id int64, at time.Time) (int64, error)
	SetActive(tx *gorm.DB, id int64, active bool) error
	SetValidationError(tx *gorm.DB, id int64, hasError bool) error
	SoftDelete(tx *gorm.DB, id int64) error
}

type dataProfileRepository struct {
	db *gorm.DB
}

// NewDataProfileRepositoryWithDB creates a repository bound to db.
func NewDataProfileRepositoryWithDB(db *gorm.DB) DataProfileRepository {
	return &dataProfileRepository{db: db}
}

func (r *dataProfileRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *dataProfileRepository) Create(tx *gorm.DB, profile *models.DataProfile) error {
	return r.conn(tx).Create(profile).Error
}

func (r *dataProfileRepository) GetByID(tx *gorm.DB, id int64) (*models.DataProfile, error) {
	var profile models.DataProfile
	if err := r.conn(tx).Where("profile_id = ?", id).Take(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *dataProfileRepository) LockByID(tx *gorm.DB, id int64) (*models.DataProfile, error) {
	var profile models.DataProfile
	err := r.conn(tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("profile_id = ?", id).
		Take(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByNameOrTable includes soft-deleted rows so removed profiles keep their names.
// Empty name or table values are not matched. A positive excludeID skips that profile.
func (r *dataProfileRepository) FindByNameOrTable(tx *gorm.DB, name, table string, excludeID int64) ([]models.DataProfile, error) {
	var conds []string
	var args []interface{}
	if name != "" {
		conds = append(conds, "profile_name = ?")
		args = append(args, name)
	}
	if table != "" {
		conds = append(conds, "table_name = ?")
		args = append(args, table)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	db := r.conn(tx).Unscoped().Model(&models.DataProfile{}).Where(strings.Join(conds, " OR "), args...)
	if excludeID > 0 {
		db = db.Where("profile_id <> ?", excludeID)
	}

	var profiles []models.DataProfile
	if err := db.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *dataProfileRepository) search(tx *gorm.DB, term string) *gorm.DB {
	db := r.conn(tx).Model(&models.DataProfile{})
	if term == "" {
		return db
	}
	like := "%" + term + "%"
	return db.Where(
		"LOWER(profile_name) LIKE LOWER(?) OR LOWER(table_name) LIKE LOWER(?) OR LOWER(created_by) LIKE LOWER(?)",
		like, like, like,
	)
}

func (r *dataProfileRepository) List(tx *gorm.DB, filter dto.ListFilter) ([]models.DataProfile, error) {
	db := r.search(tx, filter.SearchTerm).
		Order(clause.OrderByColumn{Column: clause.Column{Name: filter.SortColumn}, Desc: filter.SortOrder == dto.SortDesc}).
		Order("profile_id")
	if filter.Paginated() {
		db = db.Limit(filter.Limit).Offset(filter.Offset())
	}

	var profiles []models.DataProfile
	if err := db.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *dataProfileRepository) Count(tx *gorm.DB, searchTerm string) (int64, error) {
	var count int64
	if err := r.search(tx, searchTerm).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateDefinition locks the row, compares its version with expectedVersion and
// writes the changes with the version bumped and the profile marked inactive.
func (r *dataProfileRepository) UpdateDefinition(tx *gorm.DB, id int64, expectedVersion int, changes ProfileChanges) (*models.DataProfile, error) {
	db := r.conn(tx)
	current, err := r.LockByID(db, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, &VersionMismatchError{Stored: current.Version, Supplied: expectedVersion}
	}

	res := db.Model(&models.DataProfile{}).
		Where("profile_id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"profile_name": changes.ProfileName,
			"schema":       changes.ProfileDef.Schema,
			"profile_def":  datatypes.NewJSONType(changes.ProfileDef),
			"updated_by":   changes.UpdatedBy,
			"updated_at":   changes.UpdatedAt,
			"version":      gorm.Expr("version + 1"),
			"is_active":    false,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConcurrentUpdate
	}
	return r.GetByID(db, id)
}

func (r *dataProfileRepository) UpdateLastSyncTime(tx *gorm.DB, id int64, at time.Time) (int64, error) {
	db := r.conn(tx)
	if _, err := r.LockByID(db, id); err != nil {
		return 0, err
	}
	res := db.Model(&models.DataProfile{}).Where("profile_id = ?", id).Update("last_sync_time", at)
	return res.RowsAffected, res.Error
}

func (r *dataProfileRepository) updateLocked(tx *gorm.DB, id int64, column string, value interface{}) error {
	db := r.conn(tx)
	if _, err := r.LockByID(db, id); err != nil {
		return err
	}
	return db.Model(&models.DataProfile{}).Where("profile_id = ?", id).Update(column, value).Error
}

func (r *dataProfileRepository) SetActive(tx *gorm.DB, id int64, active bool) error {
	return r.updateLocked(tx, id, "is_active", active)
}

func (r *dataProfileRepository) SetValidationError(tx *gorm.DB, id int64, hasError bool) error {
	return r.updateLocked(tx, id, "has_validation_error", hasError)
}

func (r *dataProfileRepository) SoftDelete(tx *gorm.DB, id int64) error {
	db := r.conn(tx)
	if _, err := r.LockByID(db, id); err != nil {
		return err
	}
	return db.Where("profile_id = ?", id).Delete(&models.DataProfile{}).Error
}
