package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"edulearn-connect/internal/bootstrap"
	"edulearn-connect/internal/cache"
	"edulearn-connect/internal/config"
	"edulearn-connect/internal/database"
	"edulearn-connect/internal/handlers"
	"edulearn-connect/internal/logging"
	"edulearn-connect/internal/middleware"
	"edulearn-connect/internal/repositories"
	"edulearn-connect/internal/routes"
	"edulearn-connect/internal/utils"
	"edulearn-connect/internal/views"

	"github.com/DeRuina/timberjack"
	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Profile pictures come from phones; Fiber's 4 MB default is too tight.
const maxBodySize = 16 * 1024 * 1024

// NewServer builds the Fiber app with views, middleware and routes registered.
func NewServer(cfg *config.Config, loggers *logging.AppLoggers, components *bootstrap.AppComponents, deps routes.Dependencies) *fiber.App {
	fileLogger := loggers.File

	fileLogger.Info("Initializing Fiber application...")
	appFiber := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		Prefork:      cfg.Prefork,
		BodyLimit:    maxBodySize,
		Views:        views.NewEngine(),
		ErrorHandler: handlers.NewErrorHandler(cfg.IsProduction()),
	})

	appFiber.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.LogLevel == "debug",
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			middleware.GetRequestFileLogger(c).Error("Panic recovered", zap.Any("panic_value", e))
		},
	}))
	fileLogger.Info("Configuring CORS", zap.String("origins", cfg.CORSAllowOrigins), zap.String("methods", cfg.CORSAllowMethods), zap.String("headers", cfg.CORSAllowHeaders))
	appFiber.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: cfg.CORSAllowMethods,
		AllowHeaders: cfg.CORSAllowHeaders,
	}))
	appFiber.Use(middleware.RequestLoggers(fileLogger, loggers.SQLite))
	if cfg.LogLevel == "debug" {
		appFiber.Use(middleware.RequestDebugLogger())
	}
	appFiber.Use(fiberzap.New(fiberzap.Config{
		Logger: fileLogger,
		Fields: []string{"status", "method", "url", "ip", "latency", "error"},
		FieldsFunc: func(c *fiber.Ctx) []zap.Field {
			fields := []zap.Field{zap.String("log_type", "access")}
			if reqID := middleware.GetRequestID(c); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}
			return fields
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || strings.HasPrefix(c.Path(), "/uploads")
		},
	}))

	routes.SetupRoutes(appFiber, cfg, fileLogger, components, deps)
	return appFiber
}

// Run initializes and starts the application
func Run() {
	var (
		primaryDB  *sql.DB
		sqliteDB   *sql.DB
		rdb        *redis.Client
		fileSyncer zapcore.WriteSyncer
	)

	initAppStartTime := time.Now()

	// --- 1. Load Configuration ---
	tempConfigLogger, _ := zap.NewProduction(zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	defer tempConfigLogger.Sync()

	cfg, err := config.LoadConfig(tempConfigLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- 2. Rotated log file ---
	timberJackLogger, err := newRotatingLogFile(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	fileSyncer = zapcore.AddSync(timberJackLogger)

	// --- 3. Loggers ---
	// The buffer handle is attached after the loggers exist; until then
	// buffered writes fail softly to stderr.
	dialect := database.DialectFor(cfg.DBDriver)
	logRepo := repositories.NewLogRepository(nil, nil, dialect, tempConfigLogger)

	appLoggers, err := logging.InitializeLoggers(cfg, logRepo, fileSyncer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize application loggers: %v\n", err)
		os.Exit(1)
	}
	fileLogger := appLoggers.File
	logging.SetGlobalLoggers(fileLogger, appLoggers.SQLite)
	if lr, ok := logRepo.(interface{ SetLogger(*zap.Logger) }); ok {
		lr.SetLogger(fileLogger)
	}

	utils.TraceConfigDetails(fileLogger, cfg)

	// --- 4. SQLite log buffer ---
	if cfg.SQLiteLogEnabled {
		sqliteDB, err = database.InitSQLite(cfg, fileLogger)
		if err != nil {
			fileLogger.Fatal("Failed to initialize SQLite database", zap.Error(err))
		}
		if lr, ok := logRepo.(interface{ SetBufferDB(*sql.DB) }); ok {
			lr.SetBufferDB(sqliteDB)
			fileLogger.Info("SQLite buffer handle has been set in LogRepository.")
		}
	}

	// --- 5. Primary database ---
	primaryDB, err = database.InitPrimary(cfg, fileLogger)
	if err != nil {
		fileLogger.Fatal("Failed to initialize primary database", zap.Error(err))
	}
	if cfg.DBCreateSchema {
		schemaCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := database.EnsureSchema(schemaCtx, primaryDB, dialect); err != nil {
			fileLogger.Error("Failed to ensure primary DB schema", zap.Error(err))
		} else {
			fileLogger.Info("Primary DB schema ensured.", zap.String("dialect", string(dialect)))
		}
		cancel()
	}
	logRepo.SetSinkDB(primaryDB)

	// --- 6. Optional listing cache ---
	if cfg.RedisAddr != "" {
		rdb, err = cache.NewRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			fileLogger.Warn("Redis unavailable, user list cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			rdb = nil
		} else {
			fileLogger.Info("Redis connected for user list cache", zap.String("addr", cfg.RedisAddr))
		}
	}

	// --- 7. Components & server ---
	components, err := bootstrap.InitializeAppComponents(cfg, fileLogger, primaryDB, logRepo, rdb)
	if err != nil {
		fileLogger.Fatal("Failed to initialize application components", zap.Error(err))
	}
	appFiber := NewServer(cfg, appLoggers, components, routes.Dependencies{
		PrimaryDB: primaryDB,
		SQLiteDB:  sqliteDB,
		Redis:     rdb,
	})

	// Only the prefork master ships logs
	if components.LogProcessor != nil && !fiber.IsChild() {
		fileLogger.Info("Master process starting LogProcessor...", zap.Int("pid", os.Getpid()))
		components.LogProcessor.Start()
	}

	// --- 8. Start Server & Graceful Shutdown ---
	serverCtx, cancelServerCtx := context.WithCancel(context.Background())
	defer cancelServerCtx()
	serverStopped := make(chan struct{})

	go func() {
		defer close(serverStopped)
		listenAddr := ":" + cfg.Port
		fileLogger.Info(fmt.Sprintf("Completed initialization application in %d ms.", time.Since(initAppStartTime).Milliseconds()))
		fileLogger.Info("Starting Fiber server...",
			zap.String("address", listenAddr),
			zap.Bool("prefork_enabled", appFiber.Config().Prefork),
			zap.Int("pid", os.Getpid()),
			zap.String("app_env", cfg.AppEnv),
		)
		if err := appFiber.Listen(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fileLogger.Error("Server listener failed", zap.String("address", listenAddr), zap.Error(err))
			cancelServerCtx()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case s := <-sig:
		fileLogger.Info("Shutdown signal received.", zap.String("signal", s.String()))
	case <-serverCtx.Done():
		fileLogger.Info("Server context cancelled, initiating shutdown.")
	}

	fileLogger.Info("Initiating graceful shutdown...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancelShutdown()

	if err := appFiber.ShutdownWithContext(shutdownCtx); err != nil {
		fileLogger.Error("Fiber server shutdown failed", zap.Error(err))
	} else {
		fileLogger.Info("Fiber server gracefully stopped.")
	}
	<-serverStopped

	// After the listener so requests in flight still reach the buffer
	if components.LogProcessor != nil && !fiber.IsChild() {
		components.LogProcessor.Stop()
	}

	if errSync := fileLogger.Sync(); errSync != nil && !isStdoutSyncError(errSync) {
		fmt.Fprintf(os.Stderr, "[WARN] Error syncing file/console logger: %v\n", errSync)
	}
	closers := []namedCloser{{"log file", timberJackLogger}}
	if rdb != nil {
		closers = append(closers, namedCloser{"Redis client", rdb})
	}
	if sqliteDB != nil {
		closers = append(closers, namedCloser{"SQLite log buffer", sqliteDB})
	}
	if primaryDB != nil {
		closers = append(closers, namedCloser{"primary database pool", primaryDB})
	}
	closeAll(closers...)
	fmt.Println("[INFO] Application shutdown complete.")
}

func newRotatingLogFile(cfg *config.Config) (*timberjack.Logger, error) {
	logDir := filepath.Dir(cfg.LogFilePath)
	if logDir != "." && logDir != "/" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to ensure log directory %s exists: %w", logDir, err)
		}
	}
	return &timberjack.Logger{
		Filename:         cfg.LogFilePath,
		MaxSize:          cfg.LogMaxSize,
		MaxBackups:       cfg.LogMaxBackups,
		MaxAge:           cfg.LogMaxAge,
		Compress:         cfg.LogCompress,
		LocalTime:        true,
		RotationInterval: time.Duration(cfg.LogRotateInterval) * time.Hour,
	}, nil
}

// Syncing stdout fails on some terminals and on Windows; that is not worth reporting.
func isStdoutSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "handle is invalid") || strings.Contains(msg, "sync /dev/stdout")
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// closeAll closes resources in order after the loggers are flushed, so it reports to stdout/stderr.
func closeAll(closers ...namedCloser) {
	for _, nc := range closers {
		if err := nc.closer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] Error closing %s: %v\n", nc.name, err)
		} else {
			fmt.Printf("[INFO] %s closed.\n", nc.name)
		}
	}
}
