package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"filevault/internal/model"
)

const (
	tokenKeyPrefix      = "token:"
	userTokensKeyPrefix = "user_tokens:"
)

// ErrTokenNotFound is returned when no record exists for a token id.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore persists issued email and refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, token *model.Token) error
	Find(ctx context.Context, id string) (*model.Token, error)
	Delete(ctx context.Context, token *model.Token) error
	DeleteUser(ctx context.Context, userID uint) error
}

// RedisTokenStore keeps token records in Redis. Unlike the list cache it fails closed:
// every Redis error is returned to the caller.
type RedisTokenStore struct {
	rdb *redis.Client
	now func() time.Time
}

var _ TokenStore = (*RedisTokenStore)(nil)

// NewRedisTokenStore creates a token store on rdb.
func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, now: time.Now}
}

func tokenKey(id string) string {
	return tokenKeyPrefix + id
}

func userTokensKey(userID uint) string {
	return userTokensKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Save stores the record with a TTL equal to its remaining lifetime and indexes it under its user.
func (s *RedisTokenStore) Save(ctx context.Context, token *model.Token) error {
	ttl := token.Remaining(s.now())
	if ttl <= 0 {
		return fmt.Errorf("store token %s: already expired", token.ID)
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKey(token.ID), payload, ttl)
		pipe.SAdd(ctx, userTokensKey(token.UserID), token.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Find loads a record by token id.
func (s *RedisTokenStore) Find(ctx context.Context, id string) (*model.Token, error) {
	data, err := s.rdb.Get(ctx, tokenKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	var token model.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("unmarshal token data: %w", err)
	}
	return &token, nil
}

// Delete removes a record and its index entry. Deleting a missing record is not an error.
func (s *RedisTokenStore) Delete(ctx context.Context, token *model.Token) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tokenKey(token.ID))
		pipe.SRem(ctx, userTokensKey(token.UserID), token.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// DeleteUser removes every record indexed under userID, including ids whose record already expired.
func (s *RedisTokenStore) DeleteUser(ctx context.Context, userID uint) error {
	setKey := userTokensKey(userID)
	ids, err := s.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("list user tokens: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, tokenKey(id))
	}
	keys = append(keys, setKey)

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	return nil
}
