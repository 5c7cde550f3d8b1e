package app

import (
	"math/rand"
	"time"
)

// Rand is the subset of *rand.Rand used for sampling and shuffling.
// Tests pass a seeded source to get reproducible sessions.
type Rand interface {
	Intn(n int) int
	Perm(n int) []int
	Shuffle(n int, swap func(i, j int))
}

// NewRand returns a time-seeded source.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
