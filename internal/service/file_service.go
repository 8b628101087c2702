package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"filevault/internal/cache"
	apperrors "filevault/internal/errors"
	"filevault/internal/metrics"
	"filevault/internal/model"
	"filevault/internal/repository"
	"filevault/internal/storage"
)

const (
	maxFileNameBytes   = 255
	defaultContentType = "application/octet-stream"
)

// FilesPath is the route whose listing is cached per user.
const FilesPath = "/api/v1/files"

// UploadFile is one file of a multipart request.
type UploadFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FileResult is the per-file outcome of a bulk operation.
type FileResult struct {
	FileName string `json:"fileName"`
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FileDownload is an object ready to stream to the client. Callers must close Body.
type FileDownload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// FileService scopes every object operation to the caller's own prefix.
type FileService interface {
	List(ctx context.Context, user *model.User) ([]string, error)
	Get(ctx context.Context, user *model.User, name string) (*FileDownload, error)
	Upload(ctx context.Context, user *model.User, files []UploadFile) ([]FileResult, error)
	Update(ctx context.Context, user *model.User, file UploadFile) error
	Delete(ctx context.Context, user *model.User, names []string) ([]FileResult, error)
}

type fileService struct {
	objects  storage.ObjectStore
	files    repository.FileRepository
	cache    *cache.Client
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	maxBytes int64
	cacheTTL time.Duration
	now      func() time.Time
}

// NewFileService creates a file service. Uploads larger than maxBytes are refused and
// listings are cached for cacheTTL.
func NewFileService(
	objects storage.ObjectStore,
	files repository.FileRepository,
	cacheClient *cache.Client,
	m *metrics.Metrics,
	log logrus.FieldLogger,
	maxBytes int64,
	cacheTTL time.Duration,
) FileService {
	return &fileService{
		objects:  objects,
		files:    files,
		cache:    cacheClient,
		metrics:  m,
		log:      log,
		maxBytes: maxBytes,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// ValidateFileName rejects names that are empty, too long or could address anything
// outside a single key directly under the owner prefix.
func ValidateFileName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return apperrors.ErrInvalidFileName
	case len(name) > maxFileNameBytes:
		return apperrors.ErrInvalidFileName
	case strings.ContainsAny(name, "/\\\x00"):
		return apperrors.ErrInvalidFileName
	}
	return nil
}

// ListCacheKey is the cache key of a user's file listing.
func ListCacheKey(userID uint) string {
	return fmt.Sprintf("%d:GET:%s", userID, FilesPath)
}

// ContentTypeOf guesses the content type from the extension of name.
func ContentTypeOf(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return defaultContentType
}

func objectKey(user *model.User, name string) string {
	return user.OwnerPrefix() + name
}

func (s *fileService) List(ctx context.Context, user *model.User) ([]string, error) {
	key := ListCacheKey(user.ID)
	var names []string
	if s.cache.GetJSON(ctx, key, &names) {
		return names, nil
	}

	prefix := user.OwnerPrefix()
	keys, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	names = make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, prefix))
	}

	_ = s.cache.SetJSON(ctx, key, names, s.cacheTTL)
	return names, nil
}

func (s *fileService) Get(ctx context.Context, user *model.User, name string) (download *FileDownload, err error) {
	defer func() { s.metrics.FileOperation("download", err) }()

	if err := ValidateFileName(name); err != nil {
		return nil, err
	}
	obj, err := s.objects.Get(ctx, objectKey(user, name))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return &FileDownload{
		Name:        name,
		ContentType: ContentTypeOf(name),
		Size:        obj.Size,
		Body:        obj.Body,
	}, nil
}

// Upload stores every new file of the batch. It never overwrites: a name that already exists
// fails on its own while the rest of the batch proceeds. ErrNoFilesUploaded is returned along
// with the results when nothing succeeded.
func (s *fileService) Upload(ctx context.Context, user *model.User, files []UploadFile) ([]FileResult, error) {
	if len(files) == 0 {
		return nil, apperrors.ErrNoFilesProvided
	}

	results := make([]FileResult, 0, len(files))
	uploaded := 0
	for _, f := range files {
		err := s.uploadOne(ctx, user, f)
		s.metrics.FileOperation("upload", err)
		if err != nil {
			results = append(results, FileResult{FileName: f.Name, Error: apperrors.Message(err)})
			continue
		}
		uploaded++
		results = append(results, FileResult{FileName: f.Name, Success: true, Message: "File uploaded successfully"})
	}

	if uploaded > 0 {
		s.invalidateList(ctx, user)
	}
	if uploaded == 0 {
		return results, apperrors.ErrNoFilesUploaded
	}
	return results, nil
}

func (s *fileService) uploadOne(ctx context.Context, user *model.User, f UploadFile) error {
	if err := ValidateFileName(f.Name); err != nil {
		return err
	}
	if f.Size > s.maxBytes {
		return apperrors.ErrFileTooLarge
	}

	key := objectKey(user, f.Name)
	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check object: %w", err)
	}
	if exists {
		return apperrors.ErrFileExists
	}

	if err := s.write(ctx, key, f); err != nil {
		return err
	}

	meta := &model.FileMetadata{UserID: user.ID, FileName: f.Name, FileType: model.FileTypeOf(f.Name)}
	err = s.files.Append(ctx, meta)
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent upload of the same name created the entry first. Our write replaced its
		// content, so the entry now describes this upload.
		if _, touchErr := s.files.Touch(ctx, user.ID, f.Name, s.now()); touchErr != nil {
			s.log.WithError(touchErr).WithFields(logrus.Fields{
				"user_id": user.ID,
				"key":     key,
			}).Warn("touch file metadata after concurrent upload")
		}
		return nil
	}

	if delErr := s.objects.Delete(ctx, key); delErr != nil {
		s.metrics.StorageDrift()
		s.log.WithFields(logrus.Fields{
			"user_id":      user.ID,
			"key":          key,
			"save_error":   err.Error(),
			"delete_error": delErr.Error(),
		}).Error("object stored without metadata")
	}
	return fmt.Errorf("save file metadata: %w", err)
}

func (s *fileService) write(ctx context.Context, key string, f UploadFile) error {
	body, err := f.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer body.Close()

	if err := s.objects.Put(ctx, key, body, f.Size, ContentTypeOf(f.Name)); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

// Update overwrites an existing object and bumps its metadata, creating the entry when an
// earlier upload left the object without one.
func (s *fileService) Update(ctx context.Context, user *model.User, f UploadFile) (err error) {
	defer func() { s.metrics.FileOperation("update", err) }()

	if err := ValidateFileName(f.Name); err != nil {
		return err
	}
	if f.Size > s.maxBytes {
		return apperrors.ErrFileTooLarge
	}

	key := objectKey(user, f.Name)
	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check object: %w", err)
	}
	if !exists {
		return apperrors.ErrFileNotFound
	}

	if err := s.write(ctx, key, f); err != nil {
		return err
	}
	s.invalidateList(ctx, user)

	found, err := s.files.Touch(ctx, user.ID, f.Name, s.now())
	if err != nil {
		return fmt.Errorf("touch file metadata: %w", err)
	}
	if !found {
		meta := &model.FileMetadata{UserID: user.ID, FileName: f.Name, FileType: model.FileTypeOf(f.Name)}
		if err := s.files.Append(ctx, meta); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("save file metadata: %w", err)
		}
	}
	return nil
}

// Delete removes each named object and its metadata entry, reporting every name separately.
func (s *fileService) Delete(ctx context.Context, user *model.User, names []string) ([]FileResult, error) {
	if len(names) == 0 {
		return nil, apperrors.ErrNoFilesProvided
	}

	results := make([]FileResult, 0, len(names))
	deleted := 0
	for _, name := range names {
		err := s.deleteOne(ctx, user, name)
		s.metrics.FileOperation("delete", err)
		if err != nil {
			results = append(results, FileResult{FileName: name, Error: apperrors.Message(err)})
			continue
		}
		deleted++
		results = append(results, FileResult{FileName: name, Success: true, Message: "File deleted successfully"})
	}

	if deleted > 0 {
		s.invalidateList(ctx, user)
	}
	return results, nil
}

func (s *fileService) deleteOne(ctx context.Context, user *model.User, name string) error {
	if err := ValidateFileName(name); err != nil {
		// An unaddressable name cannot exist under the prefix.
		return apperrors.ErrFileNotFound
	}

	key := objectKey(user, name)
	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check object: %w", err)
	}
	if !exists {
		return apperrors.ErrFileNotFound
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if err := s.files.Remove(ctx, user.ID, name); err != nil {
		// The object is gone; the stale entry only skews the profile file count.
		s.metrics.StorageDrift()
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": user.ID, "key": key}).Error("file metadata not removed")
	}
	return nil
}

func (s *fileService) invalidateList(ctx context.Context, user *model.User) {
	_ = s.cache.Delete(ctx, ListCacheKey(user.ID))
}
