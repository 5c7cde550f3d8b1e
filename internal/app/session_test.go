package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"photo-quiz-service/internal/domain"
)

func newTestSession(t *testing.T, clock *fakeClock, rules Rules) *Session {
	t.Helper()
	return NewSessionWithClock("p1", rules, clock.now, seeded(5))
}

func currentAnswer(s *Session) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questions[s.index].Answer
}

func wrongOption(s *Session) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.questions[s.index]
	for _, opt := range q.Options {
		if opt != q.Answer {
			return opt
		}
	}
	return ""
}

func TestSessionBeginResetsState(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())

	snap, err := s.begin(testPool(6, 6))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if snap.Phase != domain.PhaseAnswering || snap.Index != 0 || snap.Total != 10 || snap.Score != 0 {
		t.Fatalf("unexpected snapshot after begin: %+v", snap)
	}
	if snap.Deadline == nil || !snap.Deadline.Equal(clock.now().Add(10*time.Second)) {
		t.Fatalf("expected deadline 10s out, got %v", snap.Deadline)
	}
	if snap.Remaining != 10 {
		t.Fatalf("expected 10s remaining, got %v", snap.Remaining)
	}
	if snap.Question == nil || snap.Question.Number != 1 || snap.PoolSize != 12 {
		t.Fatalf("unexpected question view: %+v", snap.Question)
	}

	if _, err := s.begin(testPool(6, 6)); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on second begin, got %v", err)
	}
}

func TestSessionCorrectAnswerScoresBySpeed(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())
	if _, err := s.begin(testPool(6, 6)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	clock.advance(2 * time.Second)
	snap, outcome := s.submit(currentAnswer(s))
	if outcome == nil || !outcome.Correct || outcome.Awarded != 180 {
		t.Fatalf("expected 180 points, got %+v", outcome)
	}
	if snap.Score != 180 || snap.Phase != domain.PhaseFeedback {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Feedback == nil || snap.Feedback.CorrectAnswer != outcome.CorrectAnswer {
		t.Fatalf("expected feedback to carry the correct answer, got %+v", snap.Feedback)
	}
}

func TestSessionDoubleSubmitScoresOnce(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())
	if _, err := s.begin(testPool(6, 6)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	answer := currentAnswer(s)
	clock.advance(time.Second)
	if _, outcome := s.submit(answer); outcome == nil {
		t.Fatalf("first submit ignored")
	}
	snap, outcome := s.submit(answer)
	if outcome != nil {
		t.Fatalf("second submit should be ignored, got %+v", outcome)
	}
	if snap.Score != 190 {
		t.Fatalf("expected score 190 once, got %v", snap.Score)
	}
}

func TestSessionTimeoutResolvesOnce(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())
	if _, err := s.begin(testPool(6, 6)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	clock.advance(9 * time.Second)
	if _, changed := s.tick(); changed {
		t.Fatalf("tick before the deadline must not resolve")
	}

	clock.advance(1500 * time.Millisecond)
	snap, changed := s.tick()
	if !changed || snap.Phase != domain.PhaseFeedback {
		t.Fatalf("expected timeout to move to feedback, got %+v", snap)
	}
	if snap.Feedback == nil || !snap.Feedback.TimedOut || snap.Feedback.Correct {
		t.Fatalf("expected timed out feedback, got %+v", snap.Feedback)
	}

	for i := 0; i < 5; i++ {
		if _, changed := s.tick(); changed {
			t.Fatalf("repeated polls inside the dwell must be no-ops")
		}
	}
	if _, outcome := s.submit(currentAnswer(s)); outcome != nil {
		t.Fatalf("late click after timeout must be ignored")
	}

	clock.advance(1500 * time.Millisecond)
	snap, changed = s.tick()
	if !changed || snap.Phase != domain.PhaseAnswering || snap.Index != 1 {
		t.Fatalf("expected advance to question 2, got %+v", snap)
	}
	if snap.Score != 0 || len(s.results) != 1 {
		t.Fatalf("expected one zero-point resolution, score=%v results=%d", snap.Score, len(s.results))
	}
}

func TestSessionLateClickCountsAsTimeout(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())
	if _, err := s.begin(testPool(6, 6)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	clock.advance(10*time.Second + time.Millisecond)
	_, outcome := s.submit(currentAnswer(s))
	if outcome == nil || !outcome.TimedOut || outcome.Correct || outcome.Awarded != 0 {
		t.Fatalf("expected timeout outcome, got %+v", outcome)
	}
}

func TestSessionGraceWindow(t *testing.T) {
	clock := newFakeClock()
	rules := DefaultRules()
	rules.Grace = 500 * time.Millisecond
	s := newTestSession(t, clock, rules)
	if _, err := s.begin(testPool(6, 6)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	clock.advance(10*time.Second + 200*time.Millisecond)
	_, outcome := s.submit(currentAnswer(s))
	if outcome == nil || outcome.TimedOut || outcome.Awarded != 100 {
		t.Fatalf("expected base points inside grace, got %+v", outcome)
	}
}

func TestSessionFullRunSumsDeltas(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())
	if _, err := s.begin(testPool(6, 6)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	want := 0.0
	for i := 0; i < 10; i++ {
		switch i % 3 {
		case 0:
			clock.advance(2500 * time.Millisecond)
			_, outcome := s.submit(currentAnswer(s))
			want += outcome.Awarded
			if outcome.Awarded != 175 {
				t.Fatalf("question %d: expected 175, got %v", i, outcome.Awarded)
			}
		case 1:
			clock.advance(time.Second)
			_, outcome := s.submit(wrongOption(s))
			if outcome.Correct || outcome.Awarded != 0 {
				t.Fatalf("question %d: wrong answer scored %+v", i, outcome)
			}
		case 2:
			clock.advance(11 * time.Second)
			if _, changed := s.tick(); !changed {
				t.Fatalf("question %d: expected timeout", i)
			}
		}
		clock.advance(2 * time.Second)
		s.tick()
	}

	snap := s.snapshot()
	if snap.Phase != domain.PhaseFinished {
		t.Fatalf("expected finished, got %s", snap.Phase)
	}
	if snap.Score != want || snap.DisplayScore != int(want) {
		t.Fatalf("expected score %v, got %v", want, snap.Score)
	}
	if len(snap.Results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(snap.Results))
	}
	sum := 0.0
	for _, r := range snap.Results {
		sum += r.Awarded
	}
	if sum != snap.Score {
		t.Fatalf("results sum %v does not match score %v", sum, snap.Score)
	}

	if _, outcome := s.submit("anything"); outcome != nil {
		t.Fatalf("finished session accepted a submission")
	}
}

func TestSessionZeroDwellAdvancesImmediately(t *testing.T) {
	clock := newFakeClock()
	rules := DefaultRules()
	rules.FeedbackDwell = 0
	s := newTestSession(t, clock, rules)
	if _, err := s.begin(testPool(1, 4)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	snap, outcome := s.submit(wrongOption(s))
	if outcome == nil || snap.Phase != domain.PhaseAnswering || snap.Index != 1 {
		t.Fatalf("expected immediate advance, got %+v", snap)
	}
}

func TestSessionRestartResamples(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())
	pool := testPool(10, 10)
	if _, err := s.begin(pool); err != nil {
		t.Fatalf("begin: %v", err)
	}
	first := append([]domain.Question(nil), s.questions...)
	s.submit(currentAnswer(s))

	snap := s.restart()
	if snap.Phase != domain.PhaseStart || snap.Score != 0 || snap.Total != 0 {
		t.Fatalf("unexpected snapshot after restart: %+v", snap)
	}

	if _, err := s.begin(pool); err != nil {
		t.Fatalf("begin again: %v", err)
	}
	same := true
	for i := range first {
		if first[i] != s.questions[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("expected a freshly sampled session")
	}
}

func TestSessionBeginFailureKeepsStart(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())

	snap, err := s.begin(testPool(2, 1))
	if !errors.Is(err, domain.ErrInsufficientNames) {
		t.Fatalf("expected insufficient names, got %v", err)
	}
	if snap.Phase != domain.PhaseStart {
		t.Fatalf("expected start phase, got %s", snap.Phase)
	}
}

func TestSessionSubscribeReceivesTransitions(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())

	ch, cancel := s.subscribe()
	defer cancel()
	if initial := <-ch; initial.Phase != domain.PhaseStart {
		t.Fatalf("expected initial start snapshot, got %s", initial.Phase)
	}

	if _, err := s.begin(testPool(6, 6)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if update := <-ch; update.Phase != domain.PhaseAnswering {
		t.Fatalf("expected answering update, got %s", update.Phase)
	}
}

func TestSessionConcurrentEventsResolveOnce(t *testing.T) {
	for _, tc := range []struct {
		name    string
		elapsed time.Duration
	}{
		{"within time", 3 * time.Second},
		{"past deadline", 11 * time.Second},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			s := newTestSession(t, clock, DefaultRules())
			if _, err := s.begin(testPool(6, 6)); err != nil {
				t.Fatalf("begin: %v", err)
			}
			answer := currentAnswer(s)
			wrong := wrongOption(s)
			clock.advance(tc.elapsed)

			var (
				wg          sync.WaitGroup
				mu          sync.Mutex
				resolutions int
				awarded     float64
			)
			start := make(chan struct{})
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					var outcome *domain.Outcome
					switch i % 3 {
					case 0:
						_, outcome = s.submit(answer)
					case 1:
						_, outcome = s.submit(wrong)
					default:
						if snap, changed := s.tick(); changed {
							outcome = snap.Feedback
						}
					}
					if outcome != nil {
						mu.Lock()
						resolutions++
						awarded += outcome.Awarded
						mu.Unlock()
					}
				}(i)
			}
			close(start)
			wg.Wait()

			if resolutions != 1 {
				t.Fatalf("expected exactly one resolution, got %d", resolutions)
			}
			snap := s.snapshot()
			if snap.Phase != domain.PhaseFeedback || snap.Feedback == nil {
				t.Fatalf("expected feedback after racing events, got %+v", snap)
			}
			if snap.Score != awarded {
				t.Fatalf("score %v does not match the single award %v", snap.Score, awarded)
			}
			if n := len(s.results); n != 1 {
				t.Fatalf("expected one recorded result, got %d", n)
			}
		})
	}
}

func TestSessionFeedbackClearedOnNextQuestion(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())
	if _, err := s.begin(testPool(6, 6)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	s.submit(wrongOption(s))

	clock.advance(2 * time.Second)
	snap, changed := s.tick()
	if !changed || snap.Phase != domain.PhaseAnswering || snap.Index != 1 {
		t.Fatalf("expected second question, got %+v", snap)
	}
	if snap.Feedback != nil {
		t.Fatalf("previous outcome leaked into the next question: %+v", snap.Feedback)
	}
}

func TestSubscribeDeliversCurrentStateFirst(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, DefaultRules())

	updates, cancel := s.subscribe()
	defer cancel()
	if _, err := s.begin(testPool(6, 6)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if first := <-updates; first.Phase != domain.PhaseStart {
		t.Fatalf("expected the start snapshot first, got %s", first.Phase)
	}
	if second := <-updates; second.Phase != domain.PhaseAnswering {
		t.Fatalf("expected the answering snapshot next, got %s", second.Phase)
	}
}
