// internal/session/store.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyToken          = "wp_jwt_token"
	keyValidated      = "wp_jwt_validated"
	keyValidationTime = "wp_jwt_validation_time"
)

var ErrNoValidToken = errors.New("no valid gateway session")

// Store caches the payment gateway JWT per Limey user. A token is usable only
// while it is marked validated and younger than the configured TTL.
type Store struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{
		rdb:    rdb,
		ttl:    ttl,
		prefix: "limey:wallet:",
		now:    time.Now,
	}
}

// WithClock replaces the time source, mainly for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) key(userID uuid.UUID, name string) string {
	return s.prefix + userID.String() + ":" + name
}

func (s *Store) StoreToken(ctx context.Context, userID uuid.UUID, token string) error {
	validatedAt := strconv.FormatInt(s.now().UnixMilli(), 10)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(userID, keyToken), token, s.ttl)
		pipe.Set(ctx, s.key(userID, keyValidated), "true", s.ttl)
		pipe.Set(ctx, s.key(userID, keyValidationTime), validatedAt, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store gateway token: %w", err)
	}
	return nil
}

func (s *Store) IsTokenValid(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, err := s.Token(ctx, userID)
	if errors.Is(err, ErrNoValidToken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Token returns the cached token, or ErrNoValidToken when it is missing,
// unvalidated or older than the TTL.
func (s *Store) Token(ctx context.Context, userID uuid.UUID) (string, error) {
	values, err := s.rdb.MGet(ctx,
		s.key(userID, keyToken),
		s.key(userID, keyValidated),
		s.key(userID, keyValidationTime),
	).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read gateway token: %w", err)
	}

	token, _ := values[0].(string)
	validated, _ := values[1].(string)
	validatedAt, _ := values[2].(string)

	if token == "" || validated != "true" || validatedAt == "" {
		return "", ErrNoValidToken
	}

	millis, err := strconv.ParseInt(validatedAt, 10, 64)
	if err != nil {
		return "", ErrNoValidToken
	}

	if s.now().Sub(time.UnixMilli(millis)) >= s.ttl {
		return "", ErrNoValidToken
	}

	return token, nil
}

func (s *Store) ClearToken(ctx context.Context, userID uuid.UUID) error {
	err := s.rdb.Del(ctx,
		s.key(userID, keyToken),
		s.key(userID, keyValidated),
		s.key(userID, keyValidationTime),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to clear gateway token: %w", err)
	}
	return nil
}
