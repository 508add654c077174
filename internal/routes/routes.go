package routes

import (
	"context"
	"database/sql"
	"time"

	"edulearn-connect/internal/bootstrap"
	"edulearn-connect/internal/config"
	mw "edulearn-connect/internal/middleware"
	"edulearn-connect/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the shared handles the health check reports on.
type Dependencies struct {
	PrimaryDB *sql.DB
	SQLiteDB  *sql.DB       // nil when the log buffer is disabled
	Redis     *redis.Client // nil when the cache is disabled
}

// SetupRoutes configures the application routes.
func SetupRoutes(app *fiber.App, cfg *config.Config, logger *zap.Logger, components *bootstrap.AppComponents, deps Dependencies) {
	logger.Info("Setting up application routes...")

	app.Get("/health", healthHandler(deps))

	// Uploaded pictures. No access control, the listing links to them directly.
	app.Static(storage.PublicPrefix, cfg.UploadDir, fiber.Static{
		ByteRange: true,
		Browse:    false,
	})
	logger.Info("Serving static files", zap.String("path", storage.PublicPrefix), zap.String("directory", cfg.UploadDir))

	components.UserHandler.SetupUserRoutes(app)
}

func healthHandler(deps Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lg := mw.GetRequestFileLogger(c)
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		dbStatus := fiber.Map{}
		healthy := true

		if deps.PrimaryDB != nil {
			if err := deps.PrimaryDB.PingContext(ctx); err == nil {
				dbStatus["primary"] = "connected"
			} else {
				dbStatus["primary"] = "disconnected"
				healthy = false
				lg.Warn("Health check: primary DB ping failed", zap.Error(err))
			}
		} else {
			dbStatus["primary"] = "uninitialized"
			healthy = false
		}

		if deps.SQLiteDB != nil {
			if err := deps.SQLiteDB.PingContext(ctx); err == nil {
				dbStatus["sqlite"] = "connected"
			} else {
				dbStatus["sqlite"] = "disconnected"
				lg.Warn("Health check: SQLite ping failed", zap.Error(err))
			}
		} else {
			dbStatus["sqlite"] = "disabled"
		}

		if deps.Redis != nil {
			if err := deps.Redis.Ping(ctx).Err(); err == nil {
				dbStatus["redis"] = "connected"
			} else {
				dbStatus["redis"] = "disconnected"
				lg.Warn("Health check: Redis ping failed", zap.Error(err))
			}
		} else {
			dbStatus["redis"] = "disabled"
		}

		status, code := "healthy", fiber.StatusOK
		if !healthy {
			status, code = "unhealthy", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":       status,
			"timestamp":    time.Now().UTC(),
			"dependencies": dbStatus,
		})
	}
}
