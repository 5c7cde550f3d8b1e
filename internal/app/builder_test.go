package app

import (
	"errors"
	"strings"
	"testing"

	"photo-quiz-service/internal/domain"
)

func TestBuildSessionSizes(t *testing.T) {
	cases := []struct {
		name  string
		pool  domain.Pool
		size  int
		wantN int
	}{
		{"ten from ten", testPool(5, 5), 10, 10},
		{"ten from twenty", testPool(10, 10), 10, 10},
		{"all of a small pool", testPool(3, 2), 10, 5},
		{"default size", testPool(6, 6), 0, DefaultSessionSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			questions, err := BuildSession(seeded(3), tc.pool, tc.size)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if len(questions) != tc.wantN {
				t.Fatalf("expected %d questions, got %d", tc.wantN, len(questions))
			}
			seen := map[string]bool{}
			for _, q := range questions {
				if seen[q.ImageRef] {
					t.Fatalf("record %s sampled twice", q.ImageRef)
				}
				seen[q.ImageRef] = true
			}
		})
	}
}

func TestBuildSessionOptions(t *testing.T) {
	questions, err := BuildSession(seeded(11), testPool(6, 6), 10)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, q := range questions {
		distinct := map[string]bool{}
		correct := 0
		for _, opt := range q.Options {
			if distinct[opt] {
				t.Fatalf("duplicate option in %v", q.Options)
			}
			distinct[opt] = true
			if opt == q.Answer {
				correct++
				continue
			}
			if !strings.HasPrefix(opt, string(q.Gender)) {
				t.Fatalf("distractor %q does not match gender %s", opt, q.Gender)
			}
		}
		if correct != 1 {
			t.Fatalf("expected correct answer once in %v, got %d", q.Options, correct)
		}
	}
}

func TestBuildSessionDeterministicWithSeed(t *testing.T) {
	a, err := BuildSession(seeded(99), testPool(8, 8), 10)
	if err != nil {
		t.Fatalf("build a: %v", err)
	}
	b, err := BuildSession(seeded(99), testPool(8, 8), 10)
	if err != nil {
		t.Fatalf("build b: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("question %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestBuildSessionErrors(t *testing.T) {
	if _, err := BuildSession(seeded(1), domain.Pool{}, 10); !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("expected empty pool error, got %v", err)
	}
	if _, err := BuildSession(seeded(1), testPool(2, 1), 10); !errors.Is(err, domain.ErrInsufficientNames) {
		t.Fatalf("expected insufficient names, got %v", err)
	}
}
