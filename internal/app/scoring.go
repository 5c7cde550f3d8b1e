package app

const (
	basePoints        = 100
	pointsPerSecond   = 10
	maxRemainingBonus = 10.0
)

// Score converts one resolved question into points. Remaining time is
// continuous and clamped to [0, 10] seconds.
func Score(correct bool, remainingSeconds float64) float64 {
	if !correct {
		return 0
	}
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	if remainingSeconds > maxRemainingBonus {
		remainingSeconds = maxRemainingBonus
	}
	return basePoints + remainingSeconds*pointsPerSecond
}
