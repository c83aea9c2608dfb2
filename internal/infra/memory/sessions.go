package memory

import (
	"context"
	"time"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var _ port.SessionStore = (*SessionStore)(nil)

// SessionStore keeps sessions in a TTL cache; each entry expires with its session.
type SessionStore struct {
	cache port.Cache[domain.Session]
}

// NewSessionStore wraps c.
func NewSessionStore(c port.Cache[domain.Session]) *SessionStore {
	return &SessionStore{cache: c}
}

func (s *SessionStore) CreateSession(_ context.Context, sess *domain.Session) error {
	s.cache.SetUntil(sess.ID, *sess, sess.ExpiresAt)
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	sess, ok := s.cache.Get(id)
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) UpdateSession(_ context.Context, sess *domain.Session) error {
	if _, ok := s.cache.Get(sess.ID); !ok {
		return &domain.ErrUnauthorized{Message: "session expired"}
	}
	s.cache.SetUntil(sess.ID, *sess, sess.ExpiresAt)
	return nil
}

func (s *SessionStore) DeleteSession(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

func (s *SessionStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	return int64(s.cache.Prune(now)), nil
}
