package utils

import (
	"fmt"

	"edulearn-connect/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceConfigDetails logs the loaded configuration at debug level with secrets masked.
func TraceConfigDetails(logger *zap.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		fmt.Println("[WARN] logger or config is nil in TraceConfigDetails")
		return
	}
	redisPassword := "--- EMPTY ---"
	if cfg.RedisPassword != "" {
		redisPassword = "*** MASKED ***"
	}
	fields := []zapcore.Field{
		zap.String("AppEnv", cfg.AppEnv),
		zap.String("AppName", cfg.AppName),
		zap.String("Port", cfg.Port),
		zap.Bool("Prefork", cfg.Prefork),
		zap.String("DBDriver", cfg.DBDriver),
		zap.String("DatabaseURL", MaskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("DBMaxOpenConns", cfg.DBMaxOpenConns),
		zap.Int("DBMaxIdleConns", cfg.DBMaxIdleConns),
		zap.Int("DBConnMaxLifetimeMinutes", cfg.DBConnMaxLifetimeMinutes),
		zap.Int("DBConnMaxIdleTimeMinutes", cfg.DBConnMaxIdleTimeMinutes),
		zap.Bool("DBCreateSchema", cfg.DBCreateSchema),
		zap.String("StoragePath", cfg.UploadDir),
		zap.String("SQLiteDBPath", cfg.SQLiteDBPath),
		zap.String("LogFilePath", cfg.LogFilePath),
		zap.String("LogLevel", cfg.LogLevel),
		zap.Int("LogRotateIntervalHours", cfg.LogRotateInterval),
		zap.Int("LogMaxSizeMB", cfg.LogMaxSize),
		zap.Int("LogMaxBackups", cfg.LogMaxBackups),
		zap.Int("LogMaxAgeDays", cfg.LogMaxAge),
		zap.Bool("LogCompress", cfg.LogCompress),
		zap.Bool("LogShip_Enabled", cfg.LogShipEnabled),
		zap.Duration("LogProcessor_BatchInterval", cfg.LogBatchInterval),
		zap.Int("LogProcessor_BatchSize", cfg.LogProcessorBatchSize),
		zap.Int("LogProcessor_RetryAttempts", cfg.LogProcessorRetryAttempts),
		zap.Int("LogProcessor_RetryDelaySeconds", cfg.LogProcessorRetryDelaySeconds),
		zap.String("RedisAddr", cfg.RedisAddr),
		zap.String("RedisPassword", redisPassword),
		zap.Int("RedisDB", cfg.RedisDB),
		zap.Duration("UserListCacheTTL", cfg.UserListCacheTTL),
		zap.String("CORS_AllowOrigins", cfg.CORSAllowOrigins),
		zap.String("CORS_AllowMethods", cfg.CORSAllowMethods),
		zap.String("CORS_AllowHeaders", cfg.CORSAllowHeaders),
		zap.Bool("DedicatedSQLiteLog_Enabled", cfg.SQLiteLogEnabled),
		zap.String("DedicatedSQLiteLog_Level", cfg.SQLiteLogLevel),
	}
	logger.Debug("Loaded application configuration details", fields...)
}
