package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dataprofileservice/models"
	"dataprofileservice/services/dto"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

var profileColumns = []string{"profile_id", "profile_name", "table_name", "schema", "profile_def", "target_connection_id", "created_by", "version", "is_active"}

func profileRow(id int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows(profileColumns).
		AddRow(id, "P1", "T1", "s1", `{"schema":"s1","columnDef":{"indexColumns":[],"regularColumns":[],"derivedColumns":[]}}`, 4, "ada", version, false)
}

func TestDataProfileRepository_GetByIDExcludesDeleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDataProfileRepositoryWithDB(db)

	mock.ExpectQuery(`SELECT \* FROM "data_profile" WHERE profile_id = \$1 AND "data_profile"."deleted_at" IS NULL`).
		WillReturnRows(profileRow(7, 2))

	profile, err := repo.GetByID(nil, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), profile.ProfileID)
	assert.Equal(t, "T1", profile.Table)
	assert.Equal(t, "s1", profile.ProfileDef.Data().Schema)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataProfileRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDataProfileRepositoryWithDB(db)

	mock.ExpectQuery(`SELECT \* FROM "data_profile"`).WillReturnRows(sqlmock.NewRows(profileColumns))

	_, err := repo.GetByID(nil, 99)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDataProfileRepository_LockByIDUsesForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDataProfileRepositoryWithDB(db)

	mock.ExpectQuery(`SELECT \* FROM "data_profile" WHERE profile_id = \$1 .* FOR UPDATE`).WillReturnRows(profileRow(3, 0))

	_, err := repo.LockByID(nil, 3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataProfileRepository_FindByNameOrTableIncludesDeleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDataProfileRepositoryWithDB(db)

	mock.ExpectQuery(`SELECT \* FROM "data_profile" WHERE \(profile_name = \$1 OR table_name = \$2\) AND profile_id <> \$3$`).
		WithArgs("P1", "T1", int64(5)).
		WillReturnRows(profileRow(8, 0))

	found, err := repo.FindByNameOrTable(nil, "P1", "T1", 5)
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.NoError(t, mock.ExpectationsWereMet())

	none, err := repo.FindByNameOrTable(nil, "", "", 0)
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestDataProfileRepository_ListAndCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDataProfileRepositoryWithDB(db)

	limit, page := 10, 2
	filter := dto.NewListFilterBuilder().
		SetSearchTerm("Sales").
		SetPagination(&limit, &page).
		SetSort(dto.SortSpec{Column: "profile_name", Order: dto.SortAsc}).
		Build()

	mock.ExpectQuery(`SELECT \* FROM "data_profile" WHERE \(LOWER\(profile_name\) LIKE LOWER\(\$1\) OR .*\) AND "data_profile"."deleted_at" IS NULL ORDER BY "profile_name",profile_id LIMIT .* OFFSET`).
		WillReturnRows(profileRow(1, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "data_profile" WHERE \(LOWER\(profile_name\) LIKE LOWER\(\$1\)`).
		WithArgs("%Sales%", "%Sales%", "%Sales%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	profiles, err := repo.List(nil, filter)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	count, err := repo.Count(nil, filter.SearchTerm)
	require.NoError(t, err)
	assert.Equal(t, int64(11), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataProfileRepository_UpdateDefinition(t *testing.T) {
	changes := ProfileChanges{
		ProfileName: "P2",
		ProfileDef:  models.ProfileDef{Schema: "s2"},
		UpdatedBy:   "grace",
		UpdatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("bumps version under lock", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewDataProfileRepositoryWithDB(db)

		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(profileRow(7, 2))
		mock.ExpectExec(`UPDATE "data_profile" SET .*"version"=version \+ 1 WHERE \(profile_id = \$\d+ AND version = \$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "data_profile" WHERE profile_id = \$1`).WillReturnRows(profileRow(7, 3))

		updated, err := repo.UpdateDefinition(nil, 7, 2, changes)
		require.NoError(t, err)
		assert.Equal(t, 3, updated.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a stale version without writing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewDataProfileRepositoryWithDB(db)

		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(profileRow(7, 3))

		_, err := repo.UpdateDefinition(nil, 7, 2, changes)
		var mismatch *VersionMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.True(t, mismatch.Behind())
		assert.Equal(t, 3, mismatch.Stored)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a lost race", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewDataProfileRepositoryWithDB(db)

		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(profileRow(7, 2))
		mock.ExpectExec(`UPDATE "data_profile"`).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.UpdateDefinition(nil, 7, 2, changes)
		assert.ErrorIs(t, err, ErrConcurrentUpdate)
	})
}

func TestDataProfileRepository_UpdateLastSyncTime(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDataProfileRepositoryWithDB(db)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(profileRow(7, 4))
	mock.ExpectExec(`UPDATE "data_profile" SET "last_sync_time"=\$1 WHERE profile_id = \$2`).
		WithArgs(at, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.UpdateLastSyncTime(nil, 7, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataProfileRepository_SoftDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDataProfileRepositoryWithDB(db)

	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(profileRow(7, 0))
	mock.ExpectExec(`UPDATE "data_profile" SET "deleted_at"=\$1 WHERE profile_id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(nil, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataProfileRepository_SetFlagsMissingProfile(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDataProfileRepositoryWithDB(db)

	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(profileColumns))

	assert.ErrorIs(t, repo.SetActive(nil, 1, true), gorm.ErrRecordNotFound)
}

func TestRunHistoryRepository_Complete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunHistoryRepositoryWithDB(db)
	end := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "data_profile_run_history" WHERE catalog_execution_id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"catalog_execution_id", "event_id", "data_profile_id", "status"}).
			AddRow(12, "e-1", 7, "QUEUED"))
	mock.ExpectExec(`UPDATE "data_profile_run_history" SET "error_message"=\$1,"execution_end_time"=\$2,"status"=\$3 WHERE catalog_execution_id = \$4`).
		WithArgs("done", end, string(models.RunStatusSuccess), int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record, err := repo.Complete(nil, 12, models.RunStatusSuccess, "done", end)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, record.Status)
	assert.Equal(t, int64(7), record.DataProfileID)
	assert.Equal(t, end, *record.ExecutionEndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseRepository_RunSerializable(t *testing.T) {
	db, mock := newMockDB(t)
	base := NewBaseRepositoryWithDB(db, TxConfig{Serializable: true, AcquireTimeout: time.Second})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "data_profile_run_history"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := base.RunSerializable(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec(`INSERT INTO "data_profile_run_history" (event_id) VALUES (?)`, "e-1").Error
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = base.RunSerializable(context.Background(), func(*gorm.DB) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseRepository_RunSerializableAcquireTimeout(t *testing.T) {
	db, _ := newMockDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	held, err := sqlDB.Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	base := NewBaseRepositoryWithDB(db, TxConfig{Serializable: true, AcquireTimeout: 100 * time.Millisecond})
	called := false
	start := time.Now()
	err = base.RunSerializable(context.Background(), func(*gorm.DB) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode    string
		wantRoutine string
		retryable   bool
	}{
		{name: "pg serialization", err: &pgconn.PgError{Code: "40001", Routine: "OnConflict_CheckForSerializationFailure"}, wantCode: "40001", wantRoutine: "OnConflict_CheckForSerializationFailure", retryable: true},
		{name: "pg deadlock", err: &pgconn.PgError{Code: "40P01"}, wantCode: "40P01", retryable: true},
		{name: "pg unique", err: &pgconn.PgError{Code: "23505", Routine: "_bt_check_unique"}, wantCode: "23505", wantRoutine: "_bt_check_unique"},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'P1' for key 'data_profile.profile_name'"}, wantCode: "1062"},
		{name: "mysql deadlock", err: &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, wantCode: "1213", retryable: true},
		{name: "mysql lock wait", err: &mysql.MySQLError{Number: 1205}, wantCode: "1205", retryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := errors.Join(errors.New("update profile"), tt.err)
			dbErr := ClassifyError(wrapped)
			require.NotNil(t, dbErr)
			assert.Equal(t, tt.wantCode, dbErr.Code)
			assert.Equal(t, tt.wantRoutine, dbErr.Routine)
			assert.Equal(t, tt.retryable, dbErr.Retryable)
			assert.Equal(t, tt.retryable, IsSerializationFailure(wrapped))
		})
	}

	assert.Nil(t, ClassifyError(errors.New("plain")))
	assert.False(t, IsSerializationFailure(nil))
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, IsConnectionError(context.DeadlineExceeded))
	assert.True(t, IsConnectionError(mysql.ErrInvalidConn))
	assert.False(t, IsConnectionError(errors.New("syntax error")))
	assert.False(t, IsConnectionError(nil))
}
