// Package identity stores the custom claims that the token issuer embeds in
// access tokens. The claimed role is a cache of users/<id>.role: it may lag
// behind the stored role and is never authoritative.
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Claims are the custom claims attached to a user's tokens.
type Claims struct {
	Role      string    `json:"role"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClaimStore reads and writes custom claims. Claims returns zero Claims
// and a nil error when nothing is stored for the user.
type ClaimStore interface {
	Claims(ctx context.Context, userID string) (Claims, error)
	SetClaims(ctx context.Context, userID string, c Claims) error
}

// MemoryClaims is a process-local ClaimStore used by tests and by the
// memory store driver.
type MemoryClaims struct {
	mu sync.RWMutex
	m  map[string]Claims
}

func NewMemoryClaims() *MemoryClaims { return &MemoryClaims{m: map[string]Claims{}} }

func (s *MemoryClaims) Claims(_ context.Context, userID string) (Claims, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[userID], nil
}

func (s *MemoryClaims) SetClaims(_ context.Context, userID string, c Claims) error {
	s.mu.Lock()
	s.m[userID] = c
	s.mu.Unlock()
	return nil
}

// RedisClaims keeps one hash per user under "<prefix>:<userID>".
type RedisClaims struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisClaims(rdb *redis.Client, prefix string) *RedisClaims {
	if prefix == "" {
		prefix = "claims"
	}
	return &RedisClaims{rdb: rdb, prefix: prefix}
}

func (s *RedisClaims) key(userID string) string { return s.prefix + ":" + userID }

func (s *RedisClaims) Claims(ctx context.Context, userID string) (Claims, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return Claims{}, errors.Wrap(err, "read claims")
	}
	c := Claims{Role: vals["role"]}
	if ts := vals["updated_at"]; ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			c.UpdatedAt = t
		}
	}
	return c, nil
}

func (s *RedisClaims) SetClaims(ctx context.Context, userID string, c Claims) error {
	err := s.rdb.HSet(ctx, s.key(userID),
		"role", c.Role,
		"updated_at", c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	).Err()
	return errors.Wrap(err, "write claims")
}
