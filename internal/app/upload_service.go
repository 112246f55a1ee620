/**
 * @description
 * File upload logic. Bytes land on local disk under the configured
 * directory with a generated name; the database row is the metadata and the
 * only path to the file. Owners and admins may delete; the file removal is
 * best effort once the row is gone.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
)

// UploadStore defines the database operations the upload service needs.
type UploadStore interface {
	CreateUpload(ctx context.Context, u *domain.Upload) error
	GetUpload(ctx context.Context, id string) (*domain.Upload, error)
	DeleteUpload(ctx context.Context, id string) error
}

// UploadService stores uploaded files on local disk.
type UploadService struct {
	store  UploadStore
	logger *slog.Logger
	dir    string
}

// NewUploadService creates the upload service and ensures the storage
// directory exists.
func NewUploadService(st UploadStore, logger *slog.Logger, dir string) (*UploadService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &UploadService{store: st, logger: logger, dir: dir}, nil
}

// Save streams one file to disk and records its metadata. The HTTP layer
// bounds the size before the stream reaches here.
func (s *UploadService) Save(ctx context.Context, userID, fileName, contentType string, r io.Reader) (*domain.Upload, error) {
	id := uuid.NewString()
	storedName := id + safeExtension(fileName)
	path := filepath.Join(s.dir, storedName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write upload file: %w", err)
	}

	upload := &domain.Upload{
		ID:          id,
		UserID:      userID,
		FileName:    filepath.Base(fileName),
		StoredName:  storedName,
		ContentType: contentType,
		SizeBytes:   size,
	}
	if err := s.store.CreateUpload(ctx, upload); err != nil {
		os.Remove(path)
		return nil, err
	}

	s.logger.Info("file uploaded", "upload_id", id, "user_id", userID, "size_bytes", size)
	return upload, nil
}

// Get returns the metadata and the on-disk path for a download.
func (s *UploadService) Get(ctx context.Context, id string) (*domain.Upload, string, error) {
	upload, err := s.store.GetUpload(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrUploadNotFound) {
			return nil, "", domain.NotFound("upload_not_found", "file not found")
		}
		return nil, "", err
	}
	return upload, filepath.Join(s.dir, upload.StoredName), nil
}

// Delete removes an upload. Owners delete their own files, admins delete
// anything; the row goes first, then the bytes.
func (s *UploadService) Delete(ctx context.Context, id, userID string, admin bool) error {
	upload, err := s.store.GetUpload(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrUploadNotFound) {
			return domain.NotFound("upload_not_found", "file not found")
		}
		return err
	}
	if !admin && !domain.SameID(upload.UserID, userID) {
		return domain.NotFound("upload_not_found", "file not found")
	}

	if err := s.store.DeleteUpload(ctx, id); err != nil {
		if errors.Is(err, store.ErrUploadNotFound) {
			return domain.NotFound("upload_not_found", "file not found")
		}
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, upload.StoredName)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove upload file", "upload_id", id, "error", err)
	}
	return nil
}

// safeExtension keeps a short, alphanumeric extension from the original name
// and drops anything else; stored names never take path input from users.
func safeExtension(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
