package handler

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "filevault/internal/errors"
	"filevault/internal/service"
)

// FileHandler serves the caller's file namespace.
type FileHandler struct {
	fileService service.FileService
}

// NewFileHandler creates a file handler.
func NewFileHandler(fileService service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// FileListResponse lists the caller's file names.
type FileListResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

// UploadResponse reports the outcome of every uploaded file.
type UploadResponse struct {
	Success       bool                 `json:"success"`
	Message       string               `json:"message,omitempty"`
	Error         string               `json:"error,omitempty"`
	UploadResults []service.FileResult `json:"uploadResults"`
}

// DeletionResponse reports the outcome of every requested deletion.
type DeletionResponse struct {
	Success         bool                 `json:"success"`
	DeletionResults []service.FileResult `json:"deletionResults"`
}

// Get godoc
// @Summary Download a file or list all files
// @Description With the file query parameter the named file is returned as an attachment,
// @Description otherwise the names of all the caller's files are listed.
// @Tags files
// @Produce json,octet-stream
// @Security BearerAuth
// @Param file query string false "File name to download"
// @Success 200 {object} FileListResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /files [get]
func (h *FileHandler) Get(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	name := c.QueryParam("file")
	if name == "" {
		files, err := h.fileService.List(c.Request().Context(), user)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, FileListResponse{
			Success: true,
			Message: "No name query provided",
			Files:   files,
		})
	}

	download, err := h.fileService.Get(c.Request().Context(), user, name)
	if err != nil {
		return err
	}
	defer download.Body.Close()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": download.Name}))
	if download.Size >= 0 {
		resp.Header().Set(echo.HeaderContentLength, strconv.FormatInt(download.Size, 10))
	}
	return c.Stream(http.StatusOK, download.ContentType, download.Body)
}

// Upload godoc
// @Summary Upload files
// @Description Stores every file of the files form field. Existing names are never overwritten.
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param files formData file true "Files to upload"
// @Success 201 {object} UploadResponse
// @Failure 400 {object} UploadResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /files [post]
func (h *FileHandler) Upload(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return apperrors.ErrFileTooLarge
	}
	if err != nil {
		return apperrors.ErrNoFilesProvided
	}
	headers := form.File["files"]

	uploads := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, uploadFile(fh))
	}

	results, err := h.fileService.Upload(c.Request().Context(), user, uploads)
	if errors.Is(err, apperrors.ErrNoFilesUploaded) {
		return c.JSON(http.StatusBadRequest, UploadResponse{
			Success:       false,
			Error:         apperrors.Message(err),
			UploadResults: results,
		})
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, UploadResponse{
		Success:       true,
		Message:       "Files processed",
		UploadResults: results,
	})
}

// Update godoc
// @Summary Replace a file
// @Description Overwrites the existing file named like the uploaded one.
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Replacement file"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /files [put]
func (h *FileHandler) Update(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return apperrors.ErrFileTooLarge
	}
	if err != nil {
		return apperrors.ErrNoFilesProvided
	}

	if err := h.fileService.Update(c.Request().Context(), user, uploadFile(fh)); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "File updated successfully"})
}

// Delete godoc
// @Summary Delete files
// @Tags files
// @Produce json
// @Security BearerAuth
// @Param files query string true "Comma separated file names"
// @Success 200 {object} DeletionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /files [delete]
func (h *FileHandler) Delete(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	results, err := h.fileService.Delete(c.Request().Context(), user, fileNames(c.QueryParams()["files"]))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, DeletionResponse{Success: true, DeletionResults: results})
}

func uploadFile(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// fileNames accepts both repeated parameters and comma separated lists.
func fileNames(values []string) []string {
	var names []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
