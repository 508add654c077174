package models

import "time"

// LogEntry is a log record buffered in SQLite tbl_log and shipped to the
// primary database app_log table.
type LogEntry struct {
	ID        int64     `json:"-"` // SQLite row ID
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Fields    string    `json:"fields,omitempty"` // JSON representation of extra fields
}
