// Package redisstore keeps sessions in Redis so several hub replicas share them.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var _ port.SessionStore = (*SessionStore)(nil)

const keyPrefix = "session:"

// SessionStore stores each session as a JSON value whose Redis TTL ends at ExpiresAt.
type SessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// New parses a redis:// URL and verifies the connection.
func New(redisURL string) (*SessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &SessionStore{client: client, now: time.Now}, nil
}

func key(id string) string { return keyPrefix + id }

func (s *SessionStore) ttl(sess *domain.Session) time.Duration {
	return sess.ExpiresAt.Sub(s.now())
}

func (s *SessionStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	ttl := s.ttl(sess)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.client.Del(ctx, key(id))
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.Expired(s.now()) {
		return nil, nil
	}
	return &sess, nil
}

// UpdateSession only overwrites a live key; a session that already expired stays gone.
func (s *SessionStore) UpdateSession(ctx context.Context, sess *domain.Session) error {
	ttl := s.ttl(sess)
	if ttl <= 0 {
		return &domain.ErrUnauthorized{Message: "session expired"}
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ok, err := s.client.SetXX(ctx, key(sess.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if !ok {
		return &domain.ErrUnauthorized{Message: "session expired"}
	}
	return nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	return s.client.Del(ctx, key(id)).Err()
}

// DeleteExpiredSessions is a no-op: Redis evicts keys when their TTL lapses.
func (s *SessionStore) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping checks connectivity for readiness probes.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}
