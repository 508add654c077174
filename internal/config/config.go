package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap" // Use logger for loading errors
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "pgx"
	DriverOracle   = "godror"
	DriverSQLite   = "sqlite3"
)

// Config holds all configuration for the application
type Config struct {
	AppEnv                        string
	AppName                       string
	Port                          string
	Prefork                       bool
	CORSAllowOrigins              string
	CORSAllowMethods              string
	CORSAllowHeaders              string
	DBDriver                      string
	DatabaseURL                   string
	DBMaxOpenConns                int // Max open connections
	DBMaxIdleConns                int // Max idle connections
	DBConnMaxLifetimeMinutes      int
	DBConnMaxIdleTimeMinutes      int
	DBCreateSchema                bool
	UploadDir                     string
	SQLiteDBPath                  string
	SQLiteLogEnabled              bool
	SQLiteLogLevel                string
	LogFilePath                   string
	LogLevel                      string
	LogRotateInterval             int // Hour
	LogMaxSize                    int // MB
	LogMaxBackups                 int
	LogMaxAge                     int // Days
	LogCompress                   bool
	LogShipEnabled                bool
	LogBatchInterval              time.Duration
	LogProcessorBatchSize         int
	LogProcessorRetryAttempts     int
	LogProcessorRetryDelaySeconds int
	RedisAddr                     string // Empty disables the listing cache
	RedisPassword                 string
	RedisDB                       int
	UserListCacheTTL              time.Duration
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "dpanic": true, "panic": true, "fatal": true}

// LoadConfig reads configuration from environment variables or .env file
func LoadConfig(logger *zap.Logger) (*Config, error) { // logger can be nil here
	if logger == nil {
		logger = zap.NewNop()
	}
	loadEnvFiles(logger)

	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "local"),
		AppName: getEnv("APP_NAME", "EduLearn Connect"),
		Port:    getEnv("PORT", "3000"),
		Prefork: getEnvAsBool("PREFORK", false),

		DBDriver:                 strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:           getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:           getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetimeMinutes: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 60),
		DBConnMaxIdleTimeMinutes: getEnvAsInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		DBCreateSchema:           getEnvAsBool("DB_CREATE_SCHEMA", false),

		UploadDir: getEnv("STORAGE_PATH", "./uploads"),

		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./logs/logs.db"),
		SQLiteLogEnabled:  getEnvAsBool("SQLITE_LOG_ENABLED", true),
		SQLiteLogLevel:    strings.ToLower(getEnv("SQLITE_LOG_LEVEL", "warn")),
		LogFilePath:       getEnv("LOG_FILE_PATH", "./logs/app.log"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogRotateInterval: getEnvAsInt("LOG_ROTATE_INTERVAL", 24),
		LogMaxSize:        getEnvAsInt("LOG_MAX_SIZE", 100),
		LogMaxBackups:     getEnvAsInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:         getEnvAsInt("LOG_MAX_AGE", 30),
		LogCompress:       getEnvAsBool("LOG_COMPRESS", false),

		// --- Log shipping (SQLite buffer -> primary DB) ---
		LogShipEnabled:                getEnvAsBool("LOG_SHIP_ENABLED", false),
		LogProcessorBatchSize:         getEnvAsInt("LOG_PROCESSOR_BATCH_SIZE", 100),
		LogProcessorRetryAttempts:     getEnvAsInt("LOG_PROCESSOR_RETRY_ATTEMPTS", 3),
		LogProcessorRetryDelaySeconds: getEnvAsInt("LOG_PROCESSOR_RETRY_DELAY_SECONDS", 30),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		CORSAllowMethods: getEnv("CORS_ALLOW_METHODS", "GET,POST,HEAD"),
		CORSAllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin,Content-Type,Accept"),
	}
	// Permissive in local/dev, forced explicit elsewhere
	defaultOrigins := ""
	if cfg.isDevelopment() {
		defaultOrigins = "*"
	}
	cfg.CORSAllowOrigins = getEnv("CORS_ALLOW_ORIGINS", defaultOrigins)

	cfg.LogBatchInterval = time.Duration(getEnvAsInt("LOG_BATCH_INTERVAL_SECONDS", 60)) * time.Second
	cfg.UserListCacheTTL = time.Duration(getEnvAsInt("USER_LIST_CACHE_TTL_SECONDS", 30)) * time.Second

	if !validLevels[cfg.LogLevel] {
		logger.Warn("Invalid LOG_LEVEL specified, defaulting to 'info'", zap.String("invalidLevel", cfg.LogLevel))
		cfg.LogLevel = "info"
	}
	if !validLevels[cfg.SQLiteLogLevel] {
		logger.Warn("Invalid SQLITE_LOG_LEVEL specified, defaulting to 'warn'", zap.String("invalidLevel", cfg.SQLiteLogLevel))
		cfg.SQLiteLogLevel = "warn"
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverOracle, DriverSQLite:
	case "postgres", "postgresql":
		cfg.DBDriver = DriverPostgres
	case "oracle":
		cfg.DBDriver = DriverOracle
	case "sqlite":
		cfg.DBDriver = DriverSQLite
	default:
		logger.Error("Unsupported DB_DRIVER", zap.String("driver", cfg.DBDriver))
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL environment variable is not set")
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if !cfg.isDevelopment() && (cfg.CORSAllowOrigins == "*" || cfg.CORSAllowOrigins == "") {
		logger.Warn("CORS_ALLOW_ORIGINS is set to '*' or is empty in a non-local/dev environment. Set specific origins for production.")
		return nil, fmt.Errorf("CORS_ALLOW_ORIGINS must be set explicitly in production environments")
	}

	if err := EnsureDir(cfg.UploadDir, logger); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) isDevelopment() bool {
	return c.AppEnv == "local" || c.AppEnv == "development" || c.AppEnv == "test"
}

// EnsureDir creates dir (and parents) when it does not exist yet.
func EnsureDir(dir string, logger *zap.Logger) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("Failed to create directory", zap.String("path", dir), zap.Error(err))
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Info("Created directory", zap.String("path", dir))
	} else if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	return nil
}

func loadEnvFiles(logger *zap.Logger) {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "local"
	}

	envFileName := fmt.Sprintf(".env.%s", appEnv)
	if _, err := os.Stat(envFileName); err == nil {
		if err := godotenv.Load(envFileName); err != nil {
			logger.Warn("Error loading .env file, continuing with environment variables", zap.String("file", envFileName), zap.Error(err))
		} else {
			logger.Info("Loaded configuration", zap.String("file", envFileName))
		}
		return
	}
	// Plain .env is what most deployments of this app ship with
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			logger.Warn("Error loading .env file", zap.Error(err))
		} else {
			logger.Info("Loaded configuration from .env")
		}
		return
	}
	logger.Debug("No .env file found, relying on environment variables or defaults", zap.String("environment", appEnv))
}

// Helper function to get env var or default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper function to get env var as int or default
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// Helper function to get env var as bool or default
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
