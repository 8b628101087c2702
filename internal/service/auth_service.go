package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"filevault/internal/auth"
	apperrors "filevault/internal/errors"
	"filevault/internal/mail"
	"filevault/internal/metrics"
	"filevault/internal/model"
	"filevault/internal/repository"
	"filevault/internal/validation"
)

// VerificationPath is where the emailed verification link points, relative to the public base URL.
const VerificationPath = "/api/v1/auth/email-verification"

// RegisterInput is the candidate account of a registration.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,email,min=5,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72,strongpassword"`
}

// Session is the token pair handed out by login and refresh.
type Session struct {
	AccessToken string
	Refresh     *model.Token
	User        *model.User
}

// AuthConfig holds token lifetimes and the refresh rotation policy.
type AuthConfig struct {
	EmailTTL        time.Duration
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	RevokeOnRefresh bool
	PublicBaseURL   string
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, caller *model.User, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, username, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	VerifyEmail(ctx context.Context, token string) error
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, bearer string) (*model.User, error)
}

// AuthDeps bundles the collaborators of the auth service.
type AuthDeps struct {
	Users     repository.UserRepository
	Hasher    auth.PasswordHasher
	Tokens    auth.TokenManager
	Password  auth.Authenticator
	Bearer    auth.Authenticator
	Mailer    mail.Mailer
	Validator *validation.Validator
	Metrics   *metrics.Metrics
	Log       logrus.FieldLogger
}

type authService struct {
	AuthDeps
	cfg AuthConfig
	now func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(deps AuthDeps, cfg AuthConfig) AuthService {
	return &authService{AuthDeps: deps, cfg: cfg, now: time.Now}
}

// Register creates an unverified account and mails its verification link.
func (s *authService) Register(ctx context.Context, caller *model.User, in RegisterInput) (user *model.User, err error) {
	defer func() { s.Metrics.AuthEvent("register", err) }()

	if caller != nil {
		return nil, apperrors.ErrAlreadyAuthenticated
	}
	if err := s.Validator.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.Users.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrDuplicateIdentity
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	digest, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user = &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: digest,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.Tokens.Issue(ctx, user.ID, model.TokenKindEmail, s.cfg.EmailTTL)
	if err != nil {
		// Without a token the account could never be verified, so let the caller register again.
		if delErr := s.Users.Delete(ctx, user.ID); delErr != nil {
			s.Log.WithError(delErr).WithField("user_id", user.ID).Error("remove unverifiable user")
		}
		return nil, err
	}

	subject, body := mail.VerificationMessage(s.verificationLink(token.Token))
	if err := s.Mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.Log.WithError(err).WithField("user_id", user.ID).Warn("verification mail not sent")
	}

	s.Log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return user, nil
}

func (s *authService) verificationLink(token string) string {
	return s.cfg.PublicBaseURL + VerificationPath + "?token=" + url.QueryEscape(token)
}

// Login checks the credentials, records the login time and issues a fresh session.
func (s *authService) Login(ctx context.Context, username, password string) (session *Session, err error) {
	defer func() { s.Metrics.AuthEvent("login", err) }()

	user, err := s.Password.Authenticate(ctx, auth.PasswordCredentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.Users.UpdateFields(ctx, user.ID, map[string]interface{}{"last_login": now}); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	user.LastLogin = &now

	return s.issueSession(ctx, user)
}

// Refresh exchanges a refresh token for a new access and refresh pair. With RevokeOnRefresh
// the presented token is consumed first, so it cannot be replayed.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (session *Session, err error) {
	defer func() { s.Metrics.AuthEvent("refresh", err) }()

	record, err := s.Tokens.Verify(ctx, refreshToken, model.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.Users.FindByID(ctx, record.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if s.cfg.RevokeOnRefresh {
		if err := s.Tokens.Consume(ctx, record); err != nil {
			return nil, err
		}
	}

	return s.issueSession(ctx, user)
}

func (s *authService) issueSession(ctx context.Context, user *model.User) (*Session, error) {
	access, err := s.Tokens.Issue(ctx, user.ID, model.TokenKindAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.Issue(ctx, user.ID, model.TokenKindRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access.Token, Refresh: refresh, User: user}, nil
}

// VerifyEmail marks the owner of token verified, then consumes token. The token stays usable
// until both writes happened, so a failed attempt can be retried.
func (s *authService) VerifyEmail(ctx context.Context, token string) (err error) {
	defer func() { s.Metrics.AuthEvent("verify_email", err) }()

	record, err := s.Tokens.Verify(ctx, token, model.TokenKindEmail)
	if err != nil {
		return err
	}
	if err := s.Users.UpdateFields(ctx, record.UserID, map[string]interface{}{"verified": true}); err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	if err := s.Tokens.Consume(ctx, record); err != nil {
		return err
	}

	s.Log.WithField("user_id", record.UserID).Info("email verified")
	return nil
}

// Logout drops the presented refresh token if it is still valid. It never fails: access
// tokens stay valid until they expire, and the client clears its cookie either way.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	s.Metrics.AuthEvent("logout", nil)
	if refreshToken == "" {
		return nil
	}

	record, err := s.Tokens.Verify(ctx, refreshToken, model.TokenKindRefresh)
	if err != nil {
		return nil
	}
	if err := s.Tokens.Consume(ctx, record); err != nil {
		s.Log.WithError(err).WithField("user_id", record.UserID).Warn("refresh token not revoked on logout")
	}
	return nil
}

// Authenticate resolves a bearer access token to its user.
func (s *authService) Authenticate(ctx context.Context, bearer string) (*model.User, error) {
	return s.Bearer.Authenticate(ctx, auth.BearerCredentials{Token: bearer})
}
