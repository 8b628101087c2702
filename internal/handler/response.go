package handler

import (
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	apperrors "filevault/internal/errors"
	"filevault/internal/model"
)

// UserContextKey is where the authentication middleware stores the caller.
const UserContextKey = "user"

// MessageResponse is the envelope of requests that only report an outcome.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CurrentUser returns the authenticated caller, or nil for anonymous requests.
func CurrentUser(c echo.Context) *model.User {
	user, _ := c.Get(UserContextKey).(*model.User)
	return user
}

func requireUser(c echo.Context) (*model.User, error) {
	user := CurrentUser(c)
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}

// ErrorHandler renders every error returned by a handler or middleware as the JSON envelope.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		httpErr := toHTTPError(err)
		if httpErr.StatusCode >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"uri":    c.Request().RequestURI,
			}).Error("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(httpErr.StatusCode)
		} else {
			err = c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
		}
		if err != nil {
			log.WithError(err).Warn("write error response")
		}
	}
}

func toHTTPError(err error) *apperrors.HTTPError {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		return apperrors.MapErrorToHTTP(err)
	}
	if he.Internal != nil {
		if mapped := apperrors.MapErrorToHTTP(he.Internal); mapped.StatusCode != http.StatusInternalServerError {
			return mapped
		}
	}

	if he.Code == http.StatusTooManyRequests {
		return apperrors.MapErrorToHTTP(apperrors.ErrRateLimited)
	}

	msg, ok := he.Message.(string)
	if !ok {
		msg = http.StatusText(he.Code)
	}
	return apperrors.NewHTTPError(he.Code, msg, codeFor(he.Code))
}

// AuthFailure turns a missing or rejected bearer into an authentication error. Any other
// error passes through and surfaces as an internal error.
func AuthFailure(_ echo.Context, err error) error {
	var extraction *echojwt.TokenExtractionError
	var he *echo.HTTPError
	switch {
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return apperrors.ErrTokenInvalid
	case errors.As(err, &extraction), errors.Is(err, echojwt.ErrJWTMissing):
		return apperrors.ErrUnauthorized
	case errors.As(err, &he), errors.Is(err, apperrors.ErrUnauthorized):
		return apperrors.ErrUnauthorized
	default:
		return err
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "FILE_TOO_LARGE"
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	default:
		if status >= http.StatusInternalServerError {
			return "INTERNAL_ERROR"
		}
		return "REQUEST_FAILED"
	}
}
