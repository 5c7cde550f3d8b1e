package app

import (
	"math"
	"sync"
	"time"

	"photo-quiz-service/internal/domain"
)

// Rules are the timing and sizing parameters of a session.
type Rules struct {
	Size          int
	QuestionTime  time.Duration
	FeedbackDwell time.Duration
	Grace         time.Duration
}

// DefaultRules returns ten questions, ten seconds each, 1.5s of feedback and no grace.
func DefaultRules() Rules {
	return Rules{
		Size:          DefaultSessionSize,
		QuestionTime:  10 * time.Second,
		FeedbackDwell: 1500 * time.Millisecond,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.Size <= 0 {
		r.Size = d.Size
	}
	if r.QuestionTime <= 0 {
		r.QuestionTime = d.QuestionTime
	}
	if r.FeedbackDwell < 0 {
		r.FeedbackDwell = 0
	}
	if r.Grace < 0 {
		r.Grace = 0
	}
	return r
}

// Session is one player's quiz. All mutations go through its transition
// methods, which hold mu, so a click and a deadline poll racing on the same
// question resolve it exactly once.
type Session struct {
	id    string
	rules Rules
	now   func() time.Time
	rnd   Rand

	mu            sync.RWMutex
	lastActive    time.Time
	phase         domain.Phase
	poolSize      int
	questions     []domain.Question
	index         int
	score         float64
	questionStart time.Time
	feedbackUntil time.Time
	feedback      *domain.Outcome
	results       []domain.Outcome
	subscribers   map[chan domain.Snapshot]struct{}
}

// NewSession creates a session in the start phase using the wall clock.
func NewSession(id string, rules Rules) *Session {
	return NewSessionWithClock(id, rules, time.Now, NewRand())
}

// NewSessionWithClock allows deterministic clocks and random sources in tests.
func NewSessionWithClock(id string, rules Rules, now func() time.Time, rnd Rand) *Session {
	return &Session{
		id:          id,
		rules:       rules.withDefaults(),
		now:         now,
		rnd:         rnd,
		lastActive:  now(),
		phase:       domain.PhaseStart,
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
}

// ID returns the owning player id.
func (s *Session) ID() string { return s.id }

// Idle reports whether nobody has acted on the session since cutoff and no
// connection is subscribed to it.
func (s *Session) Idle(cutoff time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers) == 0 && s.lastActive.Before(cutoff)
}

func (s *Session) setPoolSize(n int) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poolSize = n
	s.lastActive = s.now()
	return s.snapshotLocked(s.lastActive)
}

func (s *Session) begin(pool domain.Pool) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.lastActive = now
	if s.phase != domain.PhaseStart {
		return s.snapshotLocked(now), domain.ErrInvalidTransition
	}

	questions, err := BuildSession(s.rnd, pool, s.rules.Size)
	if err != nil {
		return s.snapshotLocked(now), err
	}

	s.poolSize = pool.Size()
	s.questions = questions
	s.index = 0
	s.score = 0
	s.feedback = nil
	s.results = make([]domain.Outcome, 0, len(questions))
	s.startQuestionLocked(now)
	return s.broadcastLocked(now), nil
}

// submit resolves the current question with choice. A nil outcome means the
// click arrived outside the answering phase and was ignored.
func (s *Session) submit(choice string) (domain.Snapshot, *domain.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.lastActive = now
	if s.phase != domain.PhaseAnswering {
		return s.snapshotLocked(now), nil
	}
	outcome := s.resolveLocked(now, choice)
	return s.broadcastLocked(now), &outcome
}

// tick applies time-driven transitions: deadline expiry and the end of the
// feedback dwell. It reports whether anything changed.
func (s *Session) tick() (domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	changed := false
	switch s.phase {
	case domain.PhaseAnswering:
		if s.expiredLocked(now) {
			s.resolveLocked(now, "")
			changed = true
		}
	case domain.PhaseFeedback:
		if !now.Before(s.feedbackUntil) {
			s.advanceLocked(now)
			changed = true
		}
	}
	if changed {
		return s.broadcastLocked(now), true
	}
	return s.snapshotLocked(now), false
}

// restart discards whatever is in flight and returns to the start phase.
func (s *Session) restart() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.lastActive = now
	s.phase = domain.PhaseStart
	s.questions = nil
	s.index = 0
	s.score = 0
	s.feedback = nil
	s.results = nil
	s.questionStart = time.Time{}
	s.feedbackUntil = time.Time{}
	return s.broadcastLocked(now)
}

func (s *Session) snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(s.now())
}

func (s *Session) startQuestionLocked(now time.Time) {
	s.phase = domain.PhaseAnswering
	s.questionStart = now
	s.feedbackUntil = time.Time{}
	s.feedback = nil
}

func (s *Session) deadlineLocked() time.Time {
	return s.questionStart.Add(s.rules.QuestionTime)
}

func (s *Session) expiredLocked(now time.Time) bool {
	return now.Sub(s.questionStart) > s.rules.QuestionTime+s.rules.Grace
}

// resolveLocked makes the one scoring decision for the current question.
// Elapsed time always comes from questionStart, never from a displayed countdown.
func (s *Session) resolveLocked(now time.Time, choice string) domain.Outcome {
	q := s.questions[s.index]
	elapsed := now.Sub(s.questionStart)
	timedOut := s.expiredLocked(now)
	correct := !timedOut && choice == q.Answer
	awarded := Score(correct, (s.rules.QuestionTime - elapsed).Seconds())

	outcome := domain.Outcome{
		Index:         s.index,
		Choice:        choice,
		CorrectAnswer: q.Answer,
		Correct:       correct,
		TimedOut:      timedOut,
		Elapsed:       elapsed.Seconds(),
		Awarded:       awarded,
	}
	s.score += awarded
	s.results = append(s.results, outcome)
	s.feedback = &outcome
	s.phase = domain.PhaseFeedback
	s.feedbackUntil = now.Add(s.rules.FeedbackDwell)
	if s.rules.FeedbackDwell == 0 {
		s.advanceLocked(now)
	}
	return outcome
}

func (s *Session) advanceLocked(now time.Time) {
	if s.index+1 < len(s.questions) {
		s.index++
		s.startQuestionLocked(now)
		return
	}
	s.phase = domain.PhaseFinished
	s.feedbackUntil = time.Time{}
}

func (s *Session) subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// sent under mu so no broadcast can overtake it; the buffer is empty
	ch <- s.snapshotLocked(s.now())
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(now time.Time) domain.Snapshot {
	snap := s.snapshotLocked(now)
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the oldest pending snapshot so a slow reader never blocks a transition
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked(now time.Time) domain.Snapshot {
	snap := domain.Snapshot{
		SessionID:    s.id,
		Phase:        s.phase,
		PoolSize:     s.poolSize,
		Index:        s.index,
		Total:        len(s.questions),
		Score:        s.score,
		DisplayScore: int(math.Floor(s.score)),
		UpdatedAt:    now,
	}
	if s.feedback != nil {
		fb := *s.feedback
		snap.Feedback = &fb
	}

	switch s.phase {
	case domain.PhaseAnswering, domain.PhaseFeedback:
		q := s.questions[s.index]
		snap.Question = &domain.QuestionView{
			Number:   s.index + 1,
			Total:    len(s.questions),
			ImageRef: q.ImageRef,
			Options:  q.Options,
		}
		if s.phase == domain.PhaseAnswering {
			deadline := s.deadlineLocked()
			snap.Deadline = &deadline
			if remaining := deadline.Sub(now).Seconds(); remaining > 0 {
				snap.Remaining = remaining
			}
		}
	case domain.PhaseFinished:
		snap.Results = append([]domain.Outcome(nil), s.results...)
	}
	return snap
}
