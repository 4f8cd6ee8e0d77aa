package game

import "time"

// CalculateScore computes the points for one answer: zero when incorrect,
// otherwise base points plus a speed bonus of
// floor(remaining/duration × maxBonus), clamped at zero so answers at or
// past the deadline still earn the base. Integer millisecond arithmetic,
// never negative.
func CalculateScore(cfg Config, isCorrect bool, timeTaken, duration time.Duration) int {
	if !isCorrect {
		return 0
	}

	remainingMs := (duration - timeTaken).Milliseconds()
	durationMs := duration.Milliseconds()
	if durationMs <= 0 {
		return cfg.BasePoints
	}

	bonus := remainingMs * int64(cfg.MaxSpeedBonus) / durationMs
	if bonus < 0 {
		bonus = 0
	}
	return cfg.BasePoints + int(bonus)
}
