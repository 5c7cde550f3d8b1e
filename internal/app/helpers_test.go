package app

import (
	"fmt"
	"math/rand"
	"time"

	"photo-quiz-service/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// testPool returns m male and f female records with unique names.
func testPool(m, f int) domain.Pool {
	records := make([]domain.Record, 0, m+f)
	for i := 1; i <= m; i++ {
		records = append(records, domain.Record{ImageRef: fmt.Sprintf("m%d.jpg", i), Answer: fmt.Sprintf("M%d", i), Gender: domain.GenderMale})
	}
	for i := 1; i <= f; i++ {
		records = append(records, domain.Record{ImageRef: fmt.Sprintf("f%d.jpg", i), Answer: fmt.Sprintf("F%d", i), Gender: domain.GenderFemale})
	}
	return domain.NewPool(records)
}
