package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"filevault/internal/model"
)

var errUnexpectedKind = errors.New("unexpected token kind")

// Claims represents JWT claims. The subject holds the user id.
type Claims struct {
	Kind model.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the numeric user id carried in the subject.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse subject: %w", err)
	}
	return uint(id), nil
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Sign creates a signed token of the given kind for userID, valid for ttl.
func (s *JWTService) Sign(userID uint, kind model.TokenKind, ttl time.Duration) (*model.Token, error) {
	now := s.now().Truncate(time.Second)
	id := uuid.New().String()
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &model.Token{
		ID:        id,
		Token:     signed,
		UserID:    userID,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Parse checks signature, expiry and kind of tokenString and returns its claims.
func (s *JWTService) Parse(tokenString string, kind model.TokenKind) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Kind != kind {
		return nil, errUnexpectedKind
	}
	if claims.ID == "" {
		return nil, errors.New("token ID not found")
	}
	return claims, nil
}
