package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dataprofileservice/models"
	"dataprofileservice/pkg/logger"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the global GORM database instance used throughout the application.
var DB *gorm.DB

// memoryServer is the embedded engine started for DB_DRIVER=memory.
var memoryServer *MemoryServer

// gormWriter routes GORM's slow-query and error output into the service logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, v ...interface{}) {
	logger.Warnf(format, v...)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// ConnectDB opens the configured database and applies the pool settings.
// Connection attempts are retried with exponential backoff.
func ConnectDB(ctx context.Context) error {
	dialector, err := openDialector(ctx, Cfg)
	if err != nil {
		return err
	}

	var db *gorm.DB
	delay := Cfg.DBRetryBaseDelay
	attempts := max(Cfg.DBMaxRetries, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err = gorm.Open(dialector, gormConfig())
		if err == nil {
			break
		}
		logger.Warnf("Database connection attempt %d/%d failed: %v", attempt, attempts, err)
		if attempt == attempts {
			return fmt.Errorf("connect %s database: %w", Cfg.DBDriver, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(Cfg.DBPoolMax)
	sqlDB.SetMaxIdleConns(Cfg.DBPoolMin)
	sqlDB.SetConnMaxIdleTime(Cfg.DBPoolIdle)

	pingCtx, cancel := context.WithTimeout(ctx, Cfg.DBAcquireTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping %s database: %w", Cfg.DBDriver, err)
	}

	logger.Infof("GORM connected successfully using driver %s", Cfg.DBDriver)
	DB = db
	return nil
}

func openDialector(ctx context.Context, cfg AppConfig) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case DriverPostgres:
		dsn, err := PostgresDSN(cfg)
		if err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	case DriverMySQL:
		dsn, err := MySQLDSN(cfg.DatabaseURL, cfg)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	case DriverMemory:
		srv, err := StartMemoryServer(ctx, cfg.MemoryDatabaseName)
		if err != nil {
			return nil, fmt.Errorf("start memory database: %w", err)
		}
		memoryServer = srv
		dsn, err := MySQLDSN(srv.DSN(), cfg)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

// PostgresDSN adds search_path, sslmode and connect_timeout to the configured URL.
// Both URL and keyword/value connection strings are accepted.
func PostgresDSN(cfg AppConfig) (string, error) {
	sslMode := "disable"
	if cfg.DBSSL {
		sslMode = "require"
	}
	timeout := strconv.Itoa(max(int(cfg.DBAcquireTimeout/time.Second), 1))

	raw := strings.TrimSpace(cfg.DatabaseURL)
	if !strings.HasPrefix(raw, "postgres://") && !strings.HasPrefix(raw, "postgresql://") {
		parts := []string{raw, "sslmode=" + sslMode, "connect_timeout=" + timeout}
		if cfg.DBSchema != "" {
			parts = append(parts, "search_path="+cfg.DBSchema)
		}
		return strings.Join(parts, " "), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse DATA_PROFILE_SERVICE_DATABASE_URL: %w", err)
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", sslMode)
	}
	q.Set("connect_timeout", timeout)
	if cfg.DBSchema != "" {
		q.Set("search_path", cfg.DBSchema)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// MySQLDSN normalizes a go-sql-driver DSN with parseTime and the acquire timeout.
// Affected-row counts report matched rows so an update that writes the stored
// value still counts the row.
func MySQLDSN(dsn string, cfg AppConfig) (string, error) {
	parsed, err := gomysql.ParseDSN(strings.TrimPrefix(dsn, "mysql://"))
	if err != nil {
		return "", fmt.Errorf("parse mysql DSN: %w", err)
	}
	parsed.ParseTime = true
	parsed.ClientFoundRows = true
	parsed.Loc = time.UTC
	parsed.Timeout = cfg.DBAcquireTimeout
	if parsed.Params == nil {
		parsed.Params = map[string]string{}
	}
	parsed.Params["charset"] = "utf8mb4"
	return parsed.FormatDSN(), nil
}

// Migrate creates or updates the service tables.
func Migrate(db *gorm.DB) error {
	if Cfg.DBDriver == DriverPostgres && Cfg.DBSchema != "" {
		if err := db.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, Cfg.DBSchema)).Error; err != nil {
			return fmt.Errorf("create schema %s: %w", Cfg.DBSchema, err)
		}
	}
	if err := db.AutoMigrate(&models.DataProfile{}, &models.RunHistory{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// CloseDB closes the pool and stops the embedded engine, if any.
func CloseDB() error {
	var err error
	if DB != nil {
		if sqlDB, dbErr := DB.DB(); dbErr == nil {
			err = sqlDB.Close()
		}
	}
	if memoryServer != nil {
		memoryServer.Close()
		memoryServer = nil
	}
	return err
}
