package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "filevault/internal/errors"
	"filevault/internal/model"
	"filevault/internal/service"
)

func newProfileTestServer(svc *MockProfileService, caller *model.User) *echo.Echo {
	h := NewProfileHandler(svc)
	e := newTestEcho()
	g := e.Group("/profile", asUser(caller))
	g.GET("", h.Get)
	g.PUT("", h.Update)
	return e
}

func TestProfileHandler_Get(t *testing.T) {
	svc := new(MockProfileService)
	created := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	svc.On("Get", mock.Anything, owner).Return(&service.Profile{
		Username: "alice", Email: "alice@example.com", Verified: true,
		FilesUploaded: []model.FileMetadata{
			{ID: 9, UserID: owner.ID, FileName: "notes.txt", FileType: "txt", CreatedAt: created, UpdatedAt: created},
			{ID: 12, UserID: owner.ID, FileName: "cat.png", FileType: "png", CreatedAt: created, UpdatedAt: created},
		},
	}, nil)

	rec := serve(newProfileTestServer(svc, owner), httptest.NewRequest(http.MethodGet, "/profile", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "alice", data["username"])
	files := data["filesUploaded"].([]interface{})
	require.Len(t, files, 2)
	first := files[0].(map[string]interface{})
	assert.Equal(t, "notes.txt", first["fileName"])
	assert.Equal(t, "txt", first["fileType"])
	assert.Equal(t, "2026-04-02T09:30:00Z", first["createdAt"])
	assert.NotContains(t, first, "userId", "owner ids stay internal")
	assert.Equal(t, "cat.png", files[1].(map[string]interface{})["fileName"])
	assert.NotContains(t, data, "lastLogin")
}

func TestProfileHandler_UpdatePassesOnlyPresentFields(t *testing.T) {
	svc := new(MockProfileService)
	svc.On("Update", mock.Anything, owner, mock.MatchedBy(func(upd service.ProfileUpdate) bool {
		return upd.Username == nil && upd.Password == nil && upd.Email != nil && *upd.Email == "new@example.com"
	})).Return(nil)

	rec := serve(newProfileTestServer(svc, owner), httptest.NewRequest(http.MethodPut, "/profile?email=new%40example.com", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Profile updated successfully")
	svc.AssertExpectations(t)
}

func TestProfileHandler_UpdateErrors(t *testing.T) {
	svc := new(MockProfileService)
	svc.On("Update", mock.Anything, owner, service.ProfileUpdate{}).Return(apperrors.ErrNothingToUpdate)
	svc.On("Update", mock.Anything, owner, mock.MatchedBy(func(upd service.ProfileUpdate) bool {
		return upd.Username != nil && *upd.Username == ""
	})).Return(&apperrors.ValidationError{Fields: []apperrors.FieldError{{Field: "username", Message: "Username is required"}}})
	e := newProfileTestServer(svc, owner)

	rec := serve(e, httptest.NewRequest(http.MethodPut, "/profile", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NOTHING_TO_UPDATE", decodeError(t, rec).Code)

	rec = serve(e, httptest.NewRequest(http.MethodPut, "/profile?username=", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}
