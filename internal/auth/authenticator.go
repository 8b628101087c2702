package auth

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "filevault/internal/errors"
	"filevault/internal/model"
)

// ErrUnsupportedCredentials is returned when an Authenticator is handed a credential kind it
// does not handle.
var ErrUnsupportedCredentials = errors.New("unsupported credentials")

// Credentials is anything an Authenticator can resolve to a user.
type Credentials interface {
	CredentialKind() string
}

// PasswordCredentials is a username and password pair.
type PasswordCredentials struct {
	Username string
	Password string
}

func (PasswordCredentials) CredentialKind() string { return "password" }

// BearerCredentials is an access token taken from the Authorization header.
type BearerCredentials struct {
	Token string
}

func (BearerCredentials) CredentialKind() string { return "bearer" }

// Authenticator resolves credentials to the user they identify.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*model.User, error)
}

// UserFinder is the part of the credential store authenticators read from.
type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// PasswordAuthenticator checks a username and password against the credential store.
type PasswordAuthenticator struct {
	users     UserFinder
	hasher    PasswordHasher
	dummyHash string
}

var _ Authenticator = (*PasswordAuthenticator)(nil)

// NewPasswordAuthenticator creates a password authenticator. It fails when hasher cannot
// produce the digest compared against for unknown users.
func NewPasswordAuthenticator(users UserFinder, hasher PasswordHasher) (*PasswordAuthenticator, error) {
	// Compared against when the user does not exist, so every failed login costs one hash.
	dummy, err := hasher.Hash("filevault-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	return &PasswordAuthenticator{users: users, hasher: hasher, dummyHash: dummy}, nil
}

// Authenticate fails with ErrInvalidCredentials for an unknown user, a wrong password and an
// unverified user alike.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*model.User, error) {
	pc, ok := creds.(PasswordCredentials)
	if !ok {
		return nil, ErrUnsupportedCredentials
	}

	user, err := a.users.FindByUsername(ctx, pc.Username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		a.hasher.Verify(pc.Password, a.dummyHash)
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !a.hasher.Verify(pc.Password, user.PasswordHash) || !user.Verified {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// BearerAuthenticator resolves an access token to its still existing user.
type BearerAuthenticator struct {
	users  UserFinder
	tokens TokenManager
}

var _ Authenticator = (*BearerAuthenticator)(nil)

// NewBearerAuthenticator creates a bearer token authenticator.
func NewBearerAuthenticator(users UserFinder, tokens TokenManager) *BearerAuthenticator {
	return &BearerAuthenticator{users: users, tokens: tokens}
}

// Authenticate fails with ErrUnauthorized for any invalid token or a deleted user.
func (a *BearerAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*model.User, error) {
	bc, ok := creds.(BearerCredentials)
	if !ok {
		return nil, ErrUnsupportedCredentials
	}

	token, err := a.tokens.Verify(ctx, bc.Token, model.TokenKindAccess)
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	user, err := a.users.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}
