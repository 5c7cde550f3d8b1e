package app

import (
	"context"
	"time"

	"photo-quiz-service/internal/domain"
)

// SessionRepository abstracts where player sessions live (in-memory, Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(playerID string, create func() *Session) *Session
	Get(playerID string) (*Session, bool)
	Delete(playerID string)
	DeleteIdle(cutoff time.Time) int
}

// PoolRepository loads the question pool (from cache/backing store).
type PoolRepository interface {
	GetPool(ctx context.Context) (domain.Pool, error)
}

// QuizService contains the quiz use cases driven by presentation layers.
type QuizService struct {
	sessions SessionRepository
	pools    PoolRepository
	rules    Rules
	now      func() time.Time
	newRand  func() Rand
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock replaces the wall clock for every session the service creates.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithRand replaces the random source factory used for new sessions.
func WithRand(newRand func() Rand) Option {
	return func(s *QuizService) { s.newRand = newRand }
}

func NewQuizService(store SessionRepository, pools PoolRepository, rules Rules, opts ...Option) *QuizService {
	s := &QuizService{
		sessions: store,
		pools:    pools,
		rules:    rules.withDefaults(),
		now:      time.Now,
		newRand:  func() Rand { return NewRand() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the effective session rules.
func (s *QuizService) Rules() Rules { return s.rules }

func (s *QuizService) session(playerID string) *Session {
	return s.sessions.GetOrCreate(playerID, func() *Session {
		return NewSessionWithClock(playerID, s.rules, s.now, s.newRand())
	})
}

// Join opens (or reopens) a player's session and reports the pool size for
// the start screen. A pool that cannot be loaded is surfaced here.
func (s *QuizService) Join(ctx context.Context, playerID string) (domain.Snapshot, error) {
	pool, err := s.pools.GetPool(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return s.session(playerID).setPoolSize(pool.Size()), nil
}

// Begin samples a fresh set of questions and starts the first countdown.
func (s *QuizService) Begin(ctx context.Context, playerID string) (domain.Snapshot, error) {
	pool, err := s.pools.GetPool(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return s.session(playerID).begin(pool)
}

// Submit resolves the current question with choice. The outcome is nil when
// the question was already resolved or no question is open; that is not an error.
func (s *QuizService) Submit(_ context.Context, playerID, choice string) (domain.Snapshot, *domain.Outcome, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return domain.Snapshot{}, nil, domain.ErrSessionNotFound
	}
	snap, outcome := session.submit(choice)
	return snap, outcome, nil
}

// Tick applies deadline expiry and feedback dwell for a player's session.
func (s *QuizService) Tick(_ context.Context, playerID string) (domain.Snapshot, bool, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return domain.Snapshot{}, false, domain.ErrSessionNotFound
	}
	snap, changed := session.tick()
	return snap, changed, nil
}

// Restart throws the current session away and returns to the start screen.
func (s *QuizService) Restart(_ context.Context, playerID string) (domain.Snapshot, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return session.restart(), nil
}

// Snapshot returns the current state without changing it.
func (s *QuizService) Snapshot(_ context.Context, playerID string) (domain.Snapshot, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return session.snapshot(), nil
}

// Subscribe returns a channel that receives a snapshot after every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, playerID string) (<-chan domain.Snapshot, func(), error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Leave drops the player's session.
func (s *QuizService) Leave(_ context.Context, playerID string) {
	s.sessions.Delete(playerID)
}

// ReapIdle drops sessions nobody touched for idle and returns how many went away.
func (s *QuizService) ReapIdle(_ context.Context, idle time.Duration) int {
	return s.sessions.DeleteIdle(s.now().Add(-idle))
}
