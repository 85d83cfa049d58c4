package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blocchat/gatekeeper/core"
)

const (
	noncePrefix   = "gatekeeper:nonce:"
	sessionPrefix = "gatekeeper:session:"
)

// NewRedisClient parses a redis URL, connects and pings. The returned client
// is shared between the stores and the event publisher.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisChallengeStore keeps challenges in Redis with the nonce TTL applied
// natively, so expiry sweeps are delegated to Redis.
type RedisChallengeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisChallengeStore creates a challenge store over the shared client.
func NewRedisChallengeStore(client *redis.Client, ttl time.Duration) *RedisChallengeStore {
	return &RedisChallengeStore{client: client, ttl: ttl}
}

// Put stores the challenge under the wallet key with the nonce TTL.
func (s *RedisChallengeStore) Put(ctx context.Context, wallet string, c core.Challenge) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, noncePrefix+wallet, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return nil
}

// Get returns the stored challenge or core.ErrNonceNotFound.
func (s *RedisChallengeStore) Get(ctx context.Context, wallet string) (core.Challenge, error) {
	payload, err := s.client.Get(ctx, noncePrefix+wallet).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Challenge{}, core.ErrNonceNotFound
		}
		return core.Challenge{}, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return unmarshalChallenge(payload)
}

// Take removes and returns the stored challenge atomically via GETDEL.
func (s *RedisChallengeStore) Take(ctx context.Context, wallet string) (core.Challenge, error) {
	payload, err := s.client.GetDel(ctx, noncePrefix+wallet).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Challenge{}, core.ErrNonceNotFound
		}
		return core.Challenge{}, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return unmarshalChallenge(payload)
}

// Delete removes the challenge if present.
func (s *RedisChallengeStore) Delete(ctx context.Context, wallet string) error {
	if err := s.client.Del(ctx, noncePrefix+wallet).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (s *RedisChallengeStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func unmarshalChallenge(payload []byte) (core.Challenge, error) {
	var c core.Challenge
	if err := json.Unmarshal(payload, &c); err != nil {
		return core.Challenge{}, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	return c, nil
}

// RedisSessionStore keeps sessions in Redis, expiring each key at the
// session's expiry time.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a session store over the shared client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Put stores the session under the token, expiring with the session itself.
func (s *RedisSessionStore) Put(ctx context.Context, token string, sess core.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, sessionPrefix+token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return nil
}

// Get returns the stored session or core.ErrSessionNotFound.
func (s *RedisSessionStore) Get(ctx context.Context, token string) (core.Session, error) {
	payload, err := s.client.Get(ctx, sessionPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Session{}, core.ErrSessionNotFound
		}
		return core.Session{}, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	var sess core.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return core.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return sess, nil
}

// Delete removes the session if present.
func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionPrefix+token).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (s *RedisSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
