package logging

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"edulearn-connect/internal/config"
	"edulearn-connect/internal/database"
	"edulearn-connect/internal/repositories"

	"go.uber.org/zap"
)

var errProcessorStopped = errors.New("processor stopped")

// LogProcessor moves buffered log rows from SQLite to the primary DB app_log table.
type LogProcessor struct {
	cfg        *config.Config
	logRepo    repositories.LogRepository
	logger     *zap.Logger
	batchSize  int
	attempts   int
	retryDelay time.Duration
	reconnect  func() (*sql.DB, error)

	stopChan chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	running  bool
	ownedDB  *sql.DB // pool opened by the processor on reconnect
}

// NewLogProcessor creates a new LogProcessor instance
func NewLogProcessor(cfg *config.Config, logRepo repositories.LogRepository, logger *zap.Logger) *LogProcessor {
	p := &LogProcessor{
		cfg:        cfg,
		logRepo:    logRepo,
		logger:     logger,
		batchSize:  cfg.LogProcessorBatchSize,
		attempts:   cfg.LogProcessorRetryAttempts,
		retryDelay: time.Duration(cfg.LogProcessorRetryDelaySeconds) * time.Second,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.attempts <= 0 {
		p.attempts = 1
	}
	p.reconnect = func() (*sql.DB, error) { return database.InitPrimary(p.cfg, p.logger) }
	return p
}

// Start begins the processing loop in a separate goroutine
func (p *LogProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.logger.Warn("Log processor already running")
		return
	}
	p.running = true
	go p.run(p.cfg.LogBatchInterval)
	p.logger.Info("SQLite to primary DB log processor started", zap.Duration("interval", p.cfg.LogBatchInterval))
}

// Stop terminates the loop, then ships one final batch.
func (p *LogProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.logger.Warn("Log processor not running")
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	<-p.done
	p.logger.Info("Processing final log batch before shutdown...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// stopChan is closed, so this is a single attempt without retry waits
	p.processBatch(ctx)

	p.mu.Lock()
	if p.ownedDB != nil {
		_ = p.ownedDB.Close()
		p.ownedDB = nil
	}
	p.mu.Unlock()
	p.logger.Info("Log processor stopped.")
}

func (p *LogProcessor) run(interval time.Duration) {
	defer close(p.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(context.Background(), interval+p.retryDelay*time.Duration(p.attempts))
			p.processBatch(tickCtx)
			cancel()
		case <-p.stopChan:
			p.logger.Info("Received stop signal, exiting log processing loop.")
			return
		}
	}
}

// processBatch ships up to batchSize buffered logs. Rows are deleted from the
// buffer only after the sink insert succeeded. It returns the number shipped.
func (p *LogProcessor) processBatch(ctx context.Context) int {
	logs, err := p.logRepo.GetBufferedLogs(ctx, p.batchSize)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.logger.Info("Context cancelled/timed out during SQLite fetch.", zap.Error(err))
		} else {
			p.logger.Error("Failed to get logs from SQLite", zap.Error(err))
		}
		return 0
	}
	if len(logs) == 0 {
		p.logger.Debug("No logs in SQLite to process")
		return 0
	}

	var insertErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if insertErr = ctx.Err(); insertErr != nil {
			break
		}
		insertErr = p.logRepo.InsertBatchSink(ctx, logs)
		if insertErr == nil {
			break
		}
		if !errors.Is(insertErr, repositories.ErrSinkConnection) || attempt == p.attempts {
			p.logger.Error("Log shipping failed", zap.Error(insertErr), zap.Int("attempt", attempt))
			break
		}

		p.logger.Warn("Log shipping failed (connection issue), re-initializing primary DB before retry",
			zap.Error(insertErr), zap.Int("attempt", attempt), zap.Int("max_attempts", p.attempts))
		p.refreshSink(ctx)

		interrupted := false
		select {
		case <-time.After(p.retryDelay):
		case <-ctx.Done():
			insertErr, interrupted = ctx.Err(), true
		case <-p.stopChan:
			insertErr, interrupted = errProcessorStopped, true
		}
		if interrupted {
			break
		}
	}

	if insertErr != nil {
		// Keep the rows for the next tick
		p.logger.Warn("Failed to ship log batch", zap.Error(insertErr), zap.Int("log_count", len(logs)))
		return 0
	}

	logIDs := make([]int64, len(logs))
	for i, entry := range logs {
		logIDs[i] = entry.ID
	}
	if err := p.logRepo.DeleteBufferedLogsByID(ctx, logIDs); err != nil {
		p.logger.Error("Failed to delete shipped logs from SQLite; they will be shipped again", zap.Error(err), zap.Int("count", len(logIDs)))
		return len(logs)
	}

	p.logger.Info("Processed and transferred log batch", zap.Int("count", len(logs)))
	return len(logs)
}

// refreshSink opens a new primary DB pool and hands it to the repository.
func (p *LogProcessor) refreshSink(ctx context.Context) {
	newDB, err := p.reconnect()
	if err != nil || newDB == nil {
		p.logger.Error("Processor failed to initialize primary DB", zap.Error(err))
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = newDB.PingContext(pingCtx)
	cancel()
	if err != nil {
		p.logger.Error("Processor opened primary DB, but ping failed", zap.Error(err))
		_ = newDB.Close()
		return
	}

	p.logRepo.SetSinkDB(newDB)
	p.mu.Lock()
	old := p.ownedDB
	p.ownedDB = newDB
	p.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	p.logger.Info("Processor updated log sink DB handle.")
}
