package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"

	"filevault/internal/auth"
	"filevault/internal/cache"
	"filevault/internal/model"
	"filevault/internal/storage"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == 0 {
		user.ID = 1
	}
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	args := m.Called(ctx, username, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]model.User, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

// MockFileRepository is a mock implementation of FileRepository.
type MockFileRepository struct {
	mock.Mock
}

func (m *MockFileRepository) Append(ctx context.Context, meta *model.FileMetadata) error {
	args := m.Called(ctx, meta)
	return args.Error(0)
}

func (m *MockFileRepository) Touch(ctx context.Context, userID uint, fileName string, at time.Time) (bool, error) {
	args := m.Called(ctx, userID, fileName, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockFileRepository) Remove(ctx context.Context, userID uint, fileName string) error {
	args := m.Called(ctx, userID, fileName)
	return args.Error(0)
}

func (m *MockFileRepository) ListByUser(ctx context.Context, userID uint) ([]model.FileMetadata, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FileMetadata), args.Error(1)
}

// MockMailer is a mock implementation of Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// faultyStore fails selected operations of an in-memory store.
type faultyStore struct {
	*storage.MemoryStore
	putErr    error
	deleteErr error
	listErr   error
}

func (f *faultyStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, key, body, size, contentType)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryStore.Delete(ctx, key)
}

func (f *faultyStore) List(ctx context.Context, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryStore.List(ctx, prefix)
}

func newTestTokens(t *testing.T) (*auth.TokenService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := cache.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })
	return auth.NewTokenService(auth.NewJWTService("test-secret"), auth.NewRedisTokenStore(rdb)), mr
}

func newTestCache(t *testing.T, mr *miniredis.Miniredis) *cache.Client {
	t.Helper()
	rdb := cache.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.New(rdb, nil)
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}
