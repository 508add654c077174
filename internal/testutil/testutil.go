package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"mime"
	"mime/multipart"
	"testing"

	"edulearn-connect/internal/database"

	_ "github.com/mattn/go-sqlite3"
)

// OpenInMemoryDB opens a named in-memory SQLite database with the users and
// app_log tables. The DB is closed through t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	// Shared cache so every pooled connection sees the same database.
	db, err := sql.Open("sqlite3", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := database.EnsureSchema(context.Background(), db, database.SQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

// OpenLogBuffer opens a named in-memory SQLite log buffer with tbl_log.
func OpenLogBuffer(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLiteBuffer("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open log buffer: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CountUsers returns the number of rows in users.
func CountUsers(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

// MultipartForm builds a multipart body from text fields and an optional file.
// An empty fileName leaves the file part out. It returns the body and its content type.
func MultipartForm(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileName != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, w.FormDataContentType()
}

// FileHeader returns a parsed multipart file header as a Fiber handler would see it.
func FileHeader(t *testing.T, field, fileName string, content []byte) *multipart.FileHeader {
	t.Helper()
	body, contentType := MultipartForm(t, nil, field, fileName, content)
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	form, err := multipart.NewReader(body, params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File[field][0]
}
