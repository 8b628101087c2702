package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned when no object exists at a key.
var ErrNotFound = errors.New("object not found")

// Object is a readable stored object. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// ObjectStore is a flat key/value object store with prefix listing.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	// List returns the full keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
}

// DeletePrefix removes every object under prefix and returns how many were deleted.
func DeletePrefix(ctx context.Context, store ObjectStore, prefix string) (int, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	for i, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			return i, fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return len(keys), nil
}

// MovePrefix copies every object under from to the same relative key under to, then deletes
// the originals. Objects are only deleted once all copies succeeded.
func MovePrefix(ctx context.Context, store ObjectStore, from, to string) error {
	if from == to {
		return nil
	}
	keys, err := store.List(ctx, from)
	if err != nil {
		return err
	}
	for _, key := range keys {
		dst := to + strings.TrimPrefix(key, from)
		if err := store.Copy(ctx, key, dst); err != nil {
			return fmt.Errorf("copy %s: %w", key, err)
		}
	}
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}
