package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"edulearn-connect/internal/config"
	"edulearn-connect/internal/models"
	"edulearn-connect/internal/repositories"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalFileLogger   *zap.Logger
	globalSQLiteLogger *zap.Logger // Nop when the buffer logger is disabled
	globalLoggersMu    sync.RWMutex
)

// AppLoggers holds the different logger instances for the application.
type AppLoggers struct {
	File   *zap.Logger // Console + rotated file
	SQLite *zap.Logger // Dedicated SQLite buffer logger, Nop if disabled
}

func bracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + level.CapitalString() + "]")
}

func colorBracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	color := ""
	switch level {
	case zapcore.DebugLevel:
		color = "\x1b[35m" // Magenta
	case zapcore.InfoLevel:
		color = "\x1b[32m" // Green
	case zapcore.WarnLevel:
		color = "\x1b[33m" // Yellow
	default:
		color = "\x1b[31m" // Red
	}
	enc.AppendString(color + "[" + level.CapitalString() + "]\x1b[0m")
}

// CreateFileConsoleEncoderConfigs returns the console (colored) and file encoder configs.
func CreateFileConsoleEncoderConfigs() (zapcore.EncoderConfig, zapcore.EncoderConfig) {
	consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncoderCfg.EncodeLevel = colorBracketLevelEncoder
	consoleEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	fileEncoderCfg := zap.NewProductionEncoderConfig()
	fileEncoderCfg.EncodeLevel = bracketLevelEncoder
	fileEncoderCfg.TimeKey = "timestamp"
	fileEncoderCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	fileEncoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	return consoleEncoderCfg, fileEncoderCfg
}

// InitializeLoggers creates the file/console application logger and, when
// enabled, a dedicated logger writing into the SQLite buffer through logRepo.
func InitializeLoggers(cfg *config.Config, logRepo repositories.LogRepository, fileSyncer zapcore.WriteSyncer) (*AppLoggers, error) {
	appLoggers := &AppLoggers{}

	var fileLogLevel zapcore.Level
	if err := fileLogLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Invalid LOG_LEVEL '%s' for file/console logger, defaulting to info: %v\n", cfg.LogLevel, err)
		fileLogLevel = zapcore.InfoLevel
	}

	consoleEncoderCfg, fileEncoderCfg := CreateFileConsoleEncoderConfigs()
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderCfg), zapcore.Lock(os.Stdout), fileLogLevel)
	cores := []zapcore.Core{consoleCore}
	if fileSyncer != nil {
		// Plain text with bracketed levels, same layout as the console
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncoderCfg), fileSyncer, fileLogLevel))
	}

	appLoggers.File = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	appLoggers.File.Info("File/Console application logger initialized",
		zap.String("environment", cfg.AppEnv),
		zap.String("configuredLevel", cfg.LogLevel),
		zap.String("effectiveLevel", fileLogLevel.String()),
		zap.String("logFile", cfg.LogFilePath),
	)

	if !cfg.SQLiteLogEnabled || logRepo == nil {
		appLoggers.File.Info("Dedicated SQLite logger is disabled.")
		appLoggers.SQLite = zap.NewNop()
		return appLoggers, nil
	}

	var sqliteLogLevel zapcore.Level
	if err := sqliteLogLevel.UnmarshalText([]byte(cfg.SQLiteLogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Invalid SQLITE_LOG_LEVEL '%s', defaulting to warn: %v\n", cfg.SQLiteLogLevel, err)
		sqliteLogLevel = zapcore.WarnLevel
	}
	appLoggers.SQLite = zap.New(NewSQLiteCore(sqliteLogLevel, logRepo), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	appLoggers.File.Info("Dedicated SQLite logger initialized", zap.String("effectiveLevel", sqliteLogLevel.String()))

	return appLoggers, nil
}

// --- SQLite buffer core ---

// sqliteCore implements zapcore.Core and writes entries to the SQLite buffer.
type sqliteCore struct {
	zapcore.LevelEnabler
	repo   repositories.LogRepository
	fields []zapcore.Field // Fields added via logger.With()
}

// NewSQLiteCore creates a core writing entries at or above enab into repo.
func NewSQLiteCore(enab zapcore.LevelEnabler, repo repositories.LogRepository) zapcore.Core {
	return &sqliteCore{LevelEnabler: enab, repo: repo}
}

func (c *sqliteCore) With(fields []zapcore.Field) zapcore.Core {
	return &sqliteCore{
		LevelEnabler: c.LevelEnabler,
		repo:         c.repo,
		fields:       append(append([]zapcore.Field(nil), c.fields...), fields...),
	}
}

func (c *sqliteCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write encodes the fields to a JSON object and inserts one buffer row.
// Failures go to stderr; logging must never fail the caller.
func (c *sqliteCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	mapEncoder := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(mapEncoder)
	}
	for _, field := range fields {
		field.AddTo(mapEncoder)
	}

	entry := models.LogEntry{
		Timestamp: ent.Time.UTC(),
		Level:     ent.Level.String(),
		Message:   ent.Message,
		Fields:    "{}",
	}
	if len(mapEncoder.Fields) > 0 {
		if b, err := json.Marshal(mapEncoder.Fields); err == nil {
			entry.Fields = string(b)
		} else {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to marshal fields for SQLite log: %v\n", err)
			b, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
			entry.Fields = string(b)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.repo.InsertBufferedLog(ctx, entry); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to insert log entry into SQLite: %v\n", err)
	}
	return nil
}

func (c *sqliteCore) Sync() error {
	return nil
}

// --- Global logger access ---

// SetGlobalLoggers sets the global logger instances.
func SetGlobalLoggers(fileLogger, sqliteLogger *zap.Logger) {
	globalLoggersMu.Lock()
	defer globalLoggersMu.Unlock()
	globalFileLogger = fileLogger
	if sqliteLogger != nil {
		globalSQLiteLogger = sqliteLogger
	} else {
		globalSQLiteLogger = zap.NewNop()
	}
}

// GetFileLogger returns the global file/console logger, or a production
// logger if none has been set yet.
func GetFileLogger() *zap.Logger {
	globalLoggersMu.RLock()
	l := globalFileLogger
	globalLoggersMu.RUnlock()

	if l == nil {
		fallbackLogger, _ := zap.NewProduction()
		return fallbackLogger
	}
	return l
}

// GetSQLiteLogger returns the global SQLite logger or a Nop logger.
func GetSQLiteLogger() *zap.Logger {
	globalLoggersMu.RLock()
	l := globalSQLiteLogger
	globalLoggersMu.RUnlock()

	if l == nil {
		return zap.NewNop()
	}
	return l
}
