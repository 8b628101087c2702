package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "filevault/internal/errors"
	"filevault/internal/model"
)

// TokenManager issues, verifies and consumes tokens of every kind.
type TokenManager interface {
	Issue(ctx context.Context, userID uint, kind model.TokenKind, ttl time.Duration) (*model.Token, error)
	Verify(ctx context.Context, token string, kind model.TokenKind) (*model.Token, error)
	Consume(ctx context.Context, token *model.Token) error
	DeleteUserTokens(ctx context.Context, userID uint) error
}

// TokenService signs tokens with JWTService and keeps email and refresh records in a TokenStore.
// Access tokens are self-contained and never stored.
type TokenService struct {
	jwt   *JWTService
	store TokenStore
}

var _ TokenManager = (*TokenService)(nil)

// NewTokenService creates a token service.
func NewTokenService(jwtService *JWTService, store TokenStore) *TokenService {
	return &TokenService{jwt: jwtService, store: store}
}

// Issue signs a new token and persists it when its kind requires a record.
func (s *TokenService) Issue(ctx context.Context, userID uint, kind model.TokenKind, ttl time.Duration) (*model.Token, error) {
	token, err := s.jwt.Sign(userID, kind, ttl)
	if err != nil {
		return nil, err
	}
	if kind.Persisted() {
		if err := s.store.Save(ctx, token); err != nil {
			return nil, fmt.Errorf("issue %s token: %w", kind, err)
		}
	}
	return token, nil
}

// Verify fails with ErrTokenInvalid unless the token is correctly signed, unexpired, of the
// expected kind and, for stored kinds, still backed by a matching record.
func (s *TokenService) Verify(ctx context.Context, token string, kind model.TokenKind) (*model.Token, error) {
	if token == "" {
		return nil, apperrors.ErrTokenInvalid
	}
	claims, err := s.jwt.Parse(token, kind)
	if err != nil {
		return nil, apperrors.ErrTokenInvalid
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperrors.ErrTokenInvalid
	}

	if !kind.Persisted() {
		return &model.Token{
			ID:        claims.ID,
			Token:     token,
			UserID:    userID,
			Kind:      kind,
			IssuedAt:  claims.IssuedAt.Time,
			ExpiresAt: claims.ExpiresAt.Time,
		}, nil
	}

	record, err := s.store.Find(ctx, claims.ID)
	if errors.Is(err, ErrTokenNotFound) {
		return nil, apperrors.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("verify %s token: %w", kind, err)
	}
	if record.UserID != userID || record.Kind != kind || record.Token != token {
		return nil, apperrors.ErrTokenInvalid
	}
	return record, nil
}

// Consume deletes the record of a verified token so it cannot be used again.
func (s *TokenService) Consume(ctx context.Context, token *model.Token) error {
	if !token.Kind.Persisted() {
		return nil
	}
	if err := s.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("consume %s token: %w", token.Kind, err)
	}
	return nil
}

// DeleteUserTokens removes every stored token of a user.
func (s *TokenService) DeleteUserTokens(ctx context.Context, userID uint) error {
	return s.store.DeleteUser(ctx, userID)
}
