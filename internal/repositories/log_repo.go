package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"edulearn-connect/internal/database"
	"edulearn-connect/internal/models"

	"go.uber.org/zap"
)

// ErrSinkConnection is returned when shipping logs fails because the primary DB is unreachable.
var ErrSinkConnection = errors.New("log sink connection error")

// LogRepository defines the interface for log data operations
type LogRepository interface {
	// SQLite buffer
	InsertBufferedLog(ctx context.Context, entry models.LogEntry) error
	GetBufferedLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
	DeleteBufferedLogsByID(ctx context.Context, ids []int64) error
	// Primary DB sink
	InsertBatchSink(ctx context.Context, logs []models.LogEntry) error

	SetSinkDB(db *sql.DB)
}

// logRepositoryImpl implements LogRepository over a SQLite buffer and the primary DB
type logRepositoryImpl struct {
	bufferDB *sql.DB
	sinkDB   *sql.DB // Can be nil initially or if connection fails
	dialect  database.Dialect
	logger   *zap.Logger
	mu       sync.RWMutex // guards bufferDB and sinkDB
}

// NewLogRepository creates a new LogRepository. Either handle may be nil and set later.
func NewLogRepository(bufferDB, sinkDB *sql.DB, dialect database.Dialect, logger *zap.Logger) LogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logRepositoryImpl{
		bufferDB: bufferDB,
		sinkDB:   sinkDB,
		dialect:  dialect,
		logger:   logger,
	}
}

func (r *logRepositoryImpl) buffer() (*sql.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.bufferDB == nil {
		return nil, errors.New("sqlite log buffer is not initialized")
	}
	return r.bufferDB, nil
}

// --- SQLite buffer ---

func (r *logRepositoryImpl) InsertBufferedLog(ctx context.Context, entry models.LogEntry) error {
	db, err := r.buffer()
	if err != nil {
		return err
	}
	fieldsJSON := entry.Fields
	if fieldsJSON == "" {
		fieldsJSON = "{}"
	}
	// Must not log through r.logger here: it may feed back into this buffer.
	_, err = db.ExecContext(ctx, `INSERT INTO tbl_log (timestamp, level, message, fields) VALUES (?, ?, ?, ?)`,
		entry.Timestamp, entry.Level, entry.Message, fieldsJSON)
	if err != nil {
		return fmt.Errorf("sqlite insert failed: %w", err)
	}
	return nil
}

func (r *logRepositoryImpl) GetBufferedLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	db, err := r.buffer()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, timestamp, level, message, fields FROM tbl_log ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		r.logger.Error("Failed to query logs from SQLite", zap.Error(err))
		return nil, fmt.Errorf("sqlite query failed: %w", err)
	}
	defer rows.Close()

	var logs []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		var ts sql.NullTime
		var fields sql.NullString
		if err := rows.Scan(&entry.ID, &ts, &entry.Level, &entry.Message, &fields); err != nil {
			r.logger.Error("Failed to scan log row from SQLite", zap.Error(err))
			continue
		}
		if ts.Valid {
			entry.Timestamp = ts.Time
		} else {
			entry.Timestamp = time.Now().UTC()
		}
		entry.Fields = "{}"
		if fields.Valid {
			entry.Fields = fields.String
		}
		logs = append(logs, entry)
	}
	if err = rows.Err(); err != nil {
		r.logger.Error("Error during iteration over SQLite log rows", zap.Error(err))
		return nil, fmt.Errorf("sqlite row iteration error: %w", err)
	}
	return logs, nil
}

func (r *logRepositoryImpl) DeleteBufferedLogsByID(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	db, err := r.buffer()
	if err != nil {
		return err
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM tbl_log WHERE id IN (%s)`, strings.Join(placeholders, ","))
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to delete logs from SQLite", zap.Error(err))
		return fmt.Errorf("sqlite delete failed: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	r.logger.Debug("Deleted logs from SQLite", zap.Int64("rows_affected", rowsAffected), zap.Int("id_count", len(ids)))
	return nil
}

// --- Primary DB sink ---

// InsertBatchSink inserts logs into app_log inside one transaction.
func (r *logRepositoryImpl) InsertBatchSink(ctx context.Context, logs []models.LogEntry) error {
	if len(logs) == 0 {
		return nil
	}

	r.mu.RLock()
	sink := r.sinkDB
	r.mu.RUnlock()

	if sink == nil {
		r.logger.Warn("Skipping log shipping: primary DB handle is currently nil in repository")
		return fmt.Errorf("repository sink DB handle is nil: %w", ErrSinkConnection)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err := sink.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		r.logger.Warn("Primary DB ping failed before batch insert", zap.Error(err))
		return fmt.Errorf("sink ping failed: %w: %w", err, ErrSinkConnection)
	}

	tx, err := sink.BeginTx(ctx, nil)
	if err != nil {
		return r.wrapSinkErr("begin tx", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO app_log (log_timestamp, log_level, log_message, log_details) VALUES (%s)`,
		r.dialect.Placeholders(1, 4))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return r.wrapSinkErr("prepare", err)
	}
	defer stmt.Close()

	for _, entry := range logs {
		fieldsData := entry.Fields
		if fieldsData == "" {
			fieldsData = "{}"
		}
		if _, err := stmt.ExecContext(ctx, entry.Timestamp, entry.Level, entry.Message, fieldsData); err != nil {
			r.logger.Error("Error during batch insert into app_log", zap.Error(err), zap.Int64("sqlite_id", entry.ID))
			return r.wrapSinkErr("batch exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return r.wrapSinkErr("commit", err)
	}

	r.logger.Debug("Successfully inserted log batch into primary DB", zap.Int("batch_size", len(logs)))
	return nil
}

func (r *logRepositoryImpl) wrapSinkErr(op string, err error) error {
	r.logger.Error("Log sink operation failed", zap.String("op", op), zap.Error(err))
	if isConnectionError(err) {
		return fmt.Errorf("sink %s failed: %w: %w", op, err, ErrSinkConnection)
	}
	return fmt.Errorf("sink %s failed: %w", op, err)
}

// SetSinkDB swaps the primary DB handle used for shipping.
func (r *logRepositoryImpl) SetSinkDB(db *sql.DB) {
	r.mu.Lock()
	r.sinkDB = db
	r.mu.Unlock()

	status := "nil"
	if db != nil {
		status = "set/updated"
	}
	r.logger.Info("LogRepository sink DB handle updated", zap.String("status", status))
}

// SetBufferDB sets the SQLite buffer handle once it has been opened.
func (r *logRepositoryImpl) SetBufferDB(db *sql.DB) {
	r.mu.Lock()
	r.bufferDB = db
	r.mu.Unlock()
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, ErrSinkConnection) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"ora-03113", "ora-03114", "ora-125", // Oracle
		"sqlstate 08", "conn closed", // PostgreSQL (pgx)
		"database is locked",
		"connection refused", "network error", "i/o error", "broken pipe", "reset by peer", "timeout",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// SetLogger replaces the logger used for the repository's own messages.
// Call it during startup, before the processor goroutine runs.
func (r *logRepositoryImpl) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}
