package bootstrap

import (
	"database/sql"

	"edulearn-connect/internal/cache"
	"edulearn-connect/internal/config"
	"edulearn-connect/internal/database"
	"edulearn-connect/internal/handlers"
	"edulearn-connect/internal/logging"
	"edulearn-connect/internal/repositories"
	"edulearn-connect/internal/services"
	"edulearn-connect/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AppComponents holds the initialized handlers, services, processors and repositories.
type AppComponents struct {
	UserHandler  *handlers.UserHandler
	UserService  services.UserService
	UserRepo     repositories.UserRepository
	LogRepo      repositories.LogRepository
	LogProcessor *logging.LogProcessor // nil when log shipping is disabled
	Store        *storage.Store
	Cache        cache.UserListCache
}

// InitializeAppComponents wires repositories, services, handlers and the log processor.
// logRepo is created earlier by the caller because the loggers depend on it.
// rdb may be nil, which disables the listing cache.
func InitializeAppComponents(
	cfg *config.Config,
	logger *zap.Logger,
	primaryDB *sql.DB,
	logRepo repositories.LogRepository,
	rdb *redis.Client,
) (*AppComponents, error) {
	logger.Info("Initializing application components: Repositories, Services, Handlers, Processors...")

	dialect := database.DialectFor(cfg.DBDriver)
	userRepo := repositories.NewUserRepository(primaryDB, dialect, logger)
	logger.Info("Repositories initialized.", zap.String("dialect", string(dialect)))

	store := storage.NewStore(cfg.UploadDir, logger)
	listCache := cache.NewUserListCache(rdb, cfg.UserListCacheTTL)
	userService := services.NewUserService(userRepo, store, listCache)
	logger.Info("Services initialized.", zap.Bool("list_cache", rdb != nil))

	userHandler := handlers.NewUserHandler(userService, cfg.AppName)
	logger.Info("Handlers initialized.")

	var logProcessor *logging.LogProcessor
	if cfg.LogShipEnabled && cfg.SQLiteLogEnabled && logRepo != nil {
		logProcessor = logging.NewLogProcessor(cfg, logRepo, logger)
		logger.Info("Log processor initialized.")
	} else {
		logger.Info("Log shipping disabled, no log processor created.")
	}

	logger.Info("Application components initialization complete.")
	return &AppComponents{
		UserHandler:  userHandler,
		UserService:  userService,
		UserRepo:     userRepo,
		LogRepo:      logRepo,
		LogProcessor: logProcessor,
		Store:        store,
		Cache:        listCache,
	}, nil
}
