package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/xhit/go-str2duration/v2"
)

// Supported values of DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

// AppConfig holds application configuration loaded from environment variables and .env file.
type AppConfig struct {
	Port string

	// Database config
	DBDriver           string
	DatabaseURL        string
	DBSSL              bool
	DBSchema           string
	DBPoolMin          int
	DBPoolMax          int
	DBPoolIdle         time.Duration
	DBAcquireTimeout   time.Duration
	DBMaxRetries       int
	DBRetryBaseDelay   time.Duration
	MemoryDatabaseName string

	// Result cache
	CacheTTL     time.Duration
	CacheMaxSize int

	// RabbitMQ config
	RabbitMQURL            string
	RabbitMQPrefetch       int
	RabbitMQReconnectDelay time.Duration
	CatalogEventsExchange  string
	CatalogUpdateRouteKey  string
	CatalogUpdateQueue     string
	ProfileUpdateQueue     string

	// Upstream services
	ConnectionServiceURL string
	PipelineServiceURL   string
	UpstreamTimeout      time.Duration

	// Keycloak config
	KeycloakRealm           string
	KeycloakServerURL       string
	KeycloakClientID        string
	KeycloakClientSecret    string
	KeycloakServiceUsername string
	KeycloakServicePassword string
	KeycloakRealmPublicKey  string

	// Logging config
	LogLevel      string
	LogFile       string
	EventLogFile  string
	LogMaxSize    int // MB
	LogMaxBackups int
	LogMaxAge     int // days
	LogCompress   bool
}

// Cfg is the global application configuration instance.
var Cfg AppConfig

// LoadConfig loads application configuration from .env file and environment variables.
func LoadConfig() error {
	err := godotenv.Load()
	if err != nil {
		// Use standard log here since logger is not initialized yet
		log.Printf("[WARN] .env file not found or cannot be loaded: %v", err)
	} else {
		log.Printf("[INFO] .env file loaded successfully")
	}

	cfg, err := fromEnv()
	if err != nil {
		return err
	}
	Cfg = cfg

	log.Printf("[INFO] Config loaded - Driver: %s, Port: %s, LogLevel: %s", Cfg.DBDriver, Cfg.Port, Cfg.LogLevel)
	log.Printf("[INFO] Pool config - Min: %d, Max: %d, Idle: %v, AcquireTimeout: %v",
		Cfg.DBPoolMin, Cfg.DBPoolMax, Cfg.DBPoolIdle, Cfg.DBAcquireTimeout)
	log.Printf("[INFO] RabbitMQ config - Exchange: %s, Queues: %s, %s, Prefetch: %d",
		Cfg.CatalogEventsExchange, Cfg.CatalogUpdateQueue, Cfg.ProfileUpdateQueue, Cfg.RabbitMQPrefetch)
	return nil
}

func fromEnv() (AppConfig, error) {
	var c AppConfig
	var errs []error
	duration := func(key, def string) time.Duration {
		d, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	c.Port = getEnv("PORT", "8000")

	c.DBDriver = strings.ToLower(getEnv("DB_DRIVER", DriverPostgres))
	c.DatabaseURL = getEnv("DATA_PROFILE_SERVICE_DATABASE_URL", "")
	c.DBSSL = getEnvBool("DB_SSL", false)
	c.DBSchema = getEnv("DB_SCHEMA", "data_profile_service")
	c.DBPoolMin = getEnvInt("DATABASE_POOL_MIN", 2)
	c.DBPoolMax = getEnvInt("DATABASE_POOL_MAX", 10)
	c.DBPoolIdle = duration("DATABASE_POOL_IDLE", "10s")
	c.DBAcquireTimeout = duration("DATABASE_ACQUIRE_TIMEOUT", "2s")
	c.DBMaxRetries = getEnvInt("DATABASE_CONNECT_RETRIES", 5)
	c.DBRetryBaseDelay = duration("DATABASE_CONNECT_RETRY_DELAY", "2s")
	c.MemoryDatabaseName = getEnv("MEMORY_DATABASE_NAME", "data_profile_service")

	c.CacheTTL = duration("CACHE_TTL", "24h")
	c.CacheMaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)

	c.RabbitMQURL = getEnv("RABBIT_MQ_URL", "")
	c.RabbitMQPrefetch = getEnvInt("RABBIT_MQ_PREFETCH_COUNT", 5)
	c.RabbitMQReconnectDelay = duration("RABBIT_MQ_RECONNECT_DELAY", "1s")
	c.CatalogEventsExchange = getEnv("RABBIT_MQ_DATA_CATALOG_EVENTS_EXCHANGE", "")
	c.CatalogUpdateRouteKey = getEnv("RABBIT_MQ_DATA_CATALOG_UPDATE_ROUTING_KEY", "")
	c.CatalogUpdateQueue = getEnv("RABBIT_MQ_DATA_CATALOG_UPDATE_QUEUE", "")
	c.ProfileUpdateQueue = getEnv("RABBIT_MQ_DATA_PROFILE_UPDATE_QUEUE", "")

	c.ConnectionServiceURL = getEnv("CONNECTION_SERVICE_URL", "")
	c.PipelineServiceURL = getEnv("DATA_PIPELINE_SERVICE_URL", "")
	c.UpstreamTimeout = duration("UPSTREAM_TIMEOUT", "10s")

	c.KeycloakRealm = getEnv("KEYCLOAK_REALM", "")
	c.KeycloakServerURL = getEnv("KEYCLOAK_SERVER_URL", "")
	c.KeycloakClientID = getEnv("KEYCLOAK_CLIENT_ID", "")
	c.KeycloakClientSecret = getEnv("KEYCLOAK_CLIENT_SECRET", "")
	c.KeycloakServiceUsername = getEnv("KEYCLOAK_SERVICE_ACCOUNT_USERNAME", "")
	c.KeycloakServicePassword = getEnv("KEYCLOAK_SERVICE_ACCOUNT_PASSWORD", "")
	c.KeycloakRealmPublicKey = getEnv("KEYCLOAK_REALM_PUBLIC_KEY", "")

	c.LogLevel = getEnv("LOG_LEVEL", "INFO")
	c.LogFile = getEnv("LOG_FILE", "logs/dataprofileservice.log")
	c.EventLogFile = getEnv("EVENT_LOG_FILE", "logs/rabbit-mq-events.log")
	c.LogMaxSize = getEnvInt("LOG_MAX_SIZE", 10)
	c.LogMaxBackups = getEnvInt("LOG_MAX_BACKUPS", 3)
	c.LogMaxAge = getEnvInt("LOG_MAX_AGE", 28)
	c.LogCompress = getEnvBool("LOG_COMPRESS", true)

	return c, errors.Join(errs...)
}

// Validate reports every required setting that is missing.
func (c AppConfig) Validate() error {
	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	switch c.DBDriver {
	case DriverPostgres, DriverMySQL:
		require("DATA_PROFILE_SERVICE_DATABASE_URL", c.DatabaseURL)
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	require("CONNECTION_SERVICE_URL", c.ConnectionServiceURL)
	require("DATA_PIPELINE_SERVICE_URL", c.PipelineServiceURL)
	require("RABBIT_MQ_URL", c.RabbitMQURL)
	require("RABBIT_MQ_DATA_CATALOG_EVENTS_EXCHANGE", c.CatalogEventsExchange)
	require("RABBIT_MQ_DATA_CATALOG_UPDATE_ROUTING_KEY", c.CatalogUpdateRouteKey)
	require("RABBIT_MQ_DATA_CATALOG_UPDATE_QUEUE", c.CatalogUpdateQueue)
	require("RABBIT_MQ_DATA_PROFILE_UPDATE_QUEUE", c.ProfileUpdateQueue)
	require("KEYCLOAK_REALM", c.KeycloakRealm)
	require("KEYCLOAK_SERVER_URL", c.KeycloakServerURL)
	require("KEYCLOAK_CLIENT_ID", c.KeycloakClientID)
	require("KEYCLOAK_SERVICE_ACCOUNT_USERNAME", c.KeycloakServiceUsername)
	require("KEYCLOAK_SERVICE_ACCOUNT_PASSWORD", c.KeycloakServicePassword)

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.DBPoolMax < 1 || c.DBPoolMin < 0 || c.DBPoolMin > c.DBPoolMax {
		return fmt.Errorf("invalid database pool bounds: min %d, max %d", c.DBPoolMin, c.DBPoolMax)
	}
	return nil
}

// SupportsSerializable reports whether the configured driver honours SERIALIZABLE transactions.
// The embedded engine only runs with its default isolation.
func (c AppConfig) SupportsSerializable() bool {
	return c.DBDriver != DriverMemory
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations extended with days and weeks ("1d12h", "2w").
// A bare integer is read as milliseconds.
func getEnvDuration(key, defaultVal string) (time.Duration, error) {
	val := getEnv(key, defaultVal)
	if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := str2duration.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, val, err)
	}
	return d, nil
}
