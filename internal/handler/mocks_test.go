package handler

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"

	"filevault/internal/model"
	"filevault/internal/service"
)

// MockAuthService is a mock implementation of AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, caller *model.User, in service.RegisterInput) (*model.User, error) {
	args := m.Called(ctx, caller, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*service.Session, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*service.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockAuthService) Authenticate(ctx context.Context, bearer string) (*model.User, error) {
	args := m.Called(ctx, bearer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockFileService is a mock implementation of FileService.
type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) List(ctx context.Context, user *model.User) ([]string, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFileService) Get(ctx context.Context, user *model.User, name string) (*service.FileDownload, error) {
	args := m.Called(ctx, user, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FileDownload), args.Error(1)
}

func (m *MockFileService) Upload(ctx context.Context, user *model.User, files []service.UploadFile) ([]service.FileResult, error) {
	args := m.Called(ctx, user, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.FileResult), args.Error(1)
}

func (m *MockFileService) Update(ctx context.Context, user *model.User, file service.UploadFile) error {
	args := m.Called(ctx, user, file)
	return args.Error(0)
}

func (m *MockFileService) Delete(ctx context.Context, user *model.User, names []string) ([]service.FileResult, error) {
	args := m.Called(ctx, user, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.FileResult), args.Error(1)
}

// MockProfileService is a mock implementation of ProfileService.
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Get(ctx context.Context, user *model.User) (*service.Profile, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Profile), args.Error(1)
}

func (m *MockProfileService) Update(ctx context.Context, user *model.User, upd service.ProfileUpdate) error {
	args := m.Called(ctx, user, upd)
	return args.Error(0)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	logger, _ := test.NewNullLogger()
	e.HTTPErrorHandler = ErrorHandler(logger)
	return e
}

// asUser authenticates every request as user, or leaves it anonymous when user is nil.
func asUser(user *model.User) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if user != nil {
				c.Set(UserContextKey, user)
			}
			return next(c)
		}
	}
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
