package storage

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"edulearn-connect/internal/config"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// PublicPrefix is the URL prefix under which stored files are served.
const PublicPrefix = "/uploads"

// Store persists uploaded files into a single directory.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger, now: time.Now}
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileName builds the stored name "<unix millis>-<original name>".
// Only the base of the original name is kept.
func (s *Store) FileName(original string) string {
	return strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + baseName(original)
}

func baseName(original string) string {
	base := filepath.Base(filepath.Clean("/" + original))
	if base == "/" || base == "." {
		base = "upload"
	}
	return base
}

// maxNameAttempts bounds the suffixes tried when names collide within one millisecond.
const maxNameAttempts = 100

// reserve creates an empty file under FileName, or "<millis>-<n>-<original name>"
// when another upload already holds that name.
func (s *Store) reserve(original string) (string, error) {
	name := s.FileName(original)
	prefix := strings.TrimSuffix(name, baseName(original))
	for n := 0; n < maxNameAttempts; n++ {
		candidate := name
		if n > 0 {
			candidate = prefix + strconv.Itoa(n) + "-" + baseName(original)
		}
		p := filepath.Join(s.dir, candidate)
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return p, f.Close()
	}
	return "", fmt.Errorf("no free file name for %q after %d attempts", name, maxNameAttempts)
}

// Save streams fh into the upload directory and returns the stored path.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", errors.New("no file provided")
	}
	// The directory may have been removed since startup.
	if err := config.EnsureDir(s.dir, s.logger); err != nil {
		return "", err
	}

	storedPath, err := s.reserve(fh.Filename)
	if err != nil {
		s.logger.Error("Failed to reserve upload file name", zap.String("filename", fh.Filename), zap.Error(err))
		return "", fmt.Errorf("reserve upload name: %w", err)
	}
	if err := fasthttp.SaveMultipartFile(fh, storedPath); err != nil {
		s.logger.Error("Failed to save uploaded file", zap.String("filename", fh.Filename), zap.String("path", storedPath), zap.Error(err))
		_ = os.Remove(storedPath)
		return "", fmt.Errorf("save %s: %w", storedPath, err)
	}
	s.logger.Info("Saved uploaded file", zap.String("original_filename", fh.Filename), zap.String("saved_path", storedPath), zap.Int64("size", fh.Size))
	return storedPath, nil
}

// Remove deletes a previously stored file. Missing files are not an error.
func (s *Store) Remove(storedPath string) error {
	if err := os.Remove(storedPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", storedPath, err)
	}
	return nil
}

// PublicURL maps a stored path to its URL under PublicPrefix. The name is
// path-escaped so "#", "?" and "%" in original filenames survive.
func PublicURL(storedPath string) string {
	return path.Join(PublicPrefix, url.PathEscape(filepath.Base(storedPath)))
}
