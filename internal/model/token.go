package model

import "time"

// TokenKind distinguishes the purpose a token was issued for.
type TokenKind string

const (
	TokenKindEmail   TokenKind = "email"
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Persisted reports whether tokens of this kind are kept in the token store.
func (k TokenKind) Persisted() bool {
	return k == TokenKindEmail || k == TokenKindRefresh
}

// Token is an issued credential. Only email and refresh tokens are persisted.
type Token struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    uint      `json:"user_id"`
	Kind      TokenKind `json:"kind"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Remaining returns the lifetime left at now, never negative.
func (t *Token) Remaining(now time.Time) time.Duration {
	d := t.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
