package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// BaseRepository provides transaction management capabilities for database operations.
type BaseRepository interface {
	Begin() *gorm.DB
	// RunSerializable runs fn in one transaction at the configured isolation, committing
	// when fn returns nil and rolling back otherwise. Failing to get a connection
	// within the acquire timeout is a connection error.
	RunSerializable(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TxConfig tunes the transactions opened by BaseRepository.
type TxConfig struct {
	// Serializable selects SERIALIZABLE isolation. Otherwise the driver default is used.
	Serializable bool
	// AcquireTimeout bounds the wait for a pooled connection. Zero waits on ctx alone.
	AcquireTimeout time.Duration
}

type baseRepository struct {
	db             *gorm.DB
	opts           *sql.TxOptions
	acquireTimeout time.Duration
}

// NewBaseRepositoryWithDB binds the repository to db.
func NewBaseRepositoryWithDB(db *gorm.DB, cfg TxConfig) BaseRepository {
	r := &baseRepository{db: db, acquireTimeout: cfg.AcquireTimeout}
	if cfg.Serializable {
		r.opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return r
}

func (r *baseRepository) Begin() *gorm.DB {
	return r.db.Begin(r.opts)
}

// acquire takes a dedicated connection from the pool, giving up after acquireTimeout.
// The returned connection is not bound to the acquire deadline.
func (r *baseRepository) acquire(ctx context.Context) (*sql.Conn, error) {
	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}
	acquireCtx := ctx
	if r.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, r.acquireTimeout)
		defer cancel()
	}
	conn, err := sqlDB.Conn(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("acquire database connection: %w", err)
	}
	return conn, nil
}

func (r *baseRepository) RunSerializable(ctx context.Context, fn func(tx *gorm.DB) error) error {
	conn, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTx(ctx, r.opts)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	tx := r.db.Session(&gorm.Session{Context: ctx, NewDB: true})
	tx.Statement.ConnPool = sqlTx
	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
