// Package services implements the business logic between the HTTP handlers
// and the dataset, filter and llm packages.
package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
	"github.com/13102180531/ExcelQuery/pkg/config"
	"github.com/13102180531/ExcelQuery/pkg/dataset"
	"github.com/13102180531/ExcelQuery/pkg/models"
)

// FileService stores uploaded spreadsheets and their metadata records.
// Use this interface for dependency injection and testing.
type FileService interface {
	// Save writes one uploaded file to disk and records its metadata.
	Save(ctx context.Context, originalName string, src io.Reader, uploadedBy string) (*models.UploadedFile, error)

	// List returns all metadata records, newest first.
	List(ctx context.Context) []models.UploadedFile

	// Latest returns the most recently uploaded file, if any.
	Latest(ctx context.Context) (*models.UploadedFile, bool)
}

type fileService struct {
	storage config.StorageConfig
	logger  *zap.Logger

	mu    sync.RWMutex
	files []models.UploadedFile
}

var _ FileService = (*fileService)(nil)

// NewFileService creates the file service. Metadata lives in memory; the
// spreadsheets themselves live in the configured upload directory.
func NewFileService(storage config.StorageConfig, logger *zap.Logger) FileService {
	return &fileService{
		storage: storage,
		logger:  logger.Named("files"),
	}
}

// baseNamePattern strips everything but word characters from a file stem
// before it becomes part of a stored name.
var baseNamePattern = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// StoredName builds the on-disk name for an upload:
// <sanitized-base>_<timestamp>_<8-hex-uuid><ext>. The uuid fragment keeps
// same-second uploads of the same file from colliding.
func StoredName(originalName string, now time.Time) string {
	ext := ""
	base := originalName
	if i := strings.LastIndexByte(originalName, '.'); i >= 0 {
		base, ext = originalName[:i], strings.ToLower(originalName[i:])
	}

	base = baseNamePattern.ReplaceAllString(strings.ToLower(base), "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "upload"
	}

	stamp := now.Format("20060102150405")
	frag := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s%s", base, stamp, frag, ext)
}

// Save rejects unsupported extensions, then streams the upload to disk and
// appends a metadata record.
func (s *fileService) Save(ctx context.Context, originalName string, src io.Reader, uploadedBy string) (*models.UploadedFile, error) {
	if !dataset.ExtensionAllowed(originalName) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFileType, originalName)
	}

	now := time.Now()
	storedName := StoredName(originalName, now)
	path := s.storage.UploadPath(storedName)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	record := models.UploadedFile{
		ID:           uuid.NewString(),
		OriginalName: originalName,
		StoredName:   storedName,
		SizeBytes:    written,
		UploadedAt:   now,
		UploadedBy:   uploadedBy,
	}

	s.mu.Lock()
	s.files = append(s.files, record)
	s.mu.Unlock()

	s.logger.Info("Stored uploaded file",
		zap.String("original_name", originalName),
		zap.String("stored_name", storedName),
		zap.Int64("size_bytes", written))
	return &record, nil
}

// List returns metadata records sorted newest first.
func (s *fileService) List(ctx context.Context) []models.UploadedFile {
	s.mu.RLock()
	out := make([]models.UploadedFile, len(s.files))
	copy(out, s.files)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

// Latest returns the newest metadata record.
func (s *fileService) Latest(ctx context.Context) (*models.UploadedFile, bool) {
	files := s.List(ctx)
	if len(files) == 0 {
		return nil, false
	}
	return &files[0], true
}
