package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"photo-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in a local map; the state machine and its
//     subscribers live in process.
//   - Redis holds a liveness marker per player (refreshed on every lookup) so
//     operators can count active players across instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(playerID string, create func() *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[playerID]
	if !ok {
		session = create()
		s.sessions[playerID] = session
	}
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(playerID), "1", s.ttl).Err()
	return session
}

func (s *SessionStore) Get(playerID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[playerID]
	if ok {
		_ = s.client.Expire(context.Background(), s.key(playerID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, playerID)
	_ = s.client.Del(context.Background(), s.key(playerID)).Err()
}

func (s *SessionStore) DeleteIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []string
	for id, session := range s.sessions {
		if session.Idle(cutoff) {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0
	}
	keys := make([]string, 0, len(stale))
	for _, id := range stale {
		delete(s.sessions, id)
		keys = append(keys, s.key(id))
	}
	_ = s.client.Del(context.Background(), keys...).Err()
	return len(stale)
}

// ActivePlayers counts liveness markers across every instance sharing the Redis.
func (s *SessionStore) ActivePlayers(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "quiz:session:*", 100).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func (s *SessionStore) key(playerID string) string {
	return "quiz:session:" + playerID
}
