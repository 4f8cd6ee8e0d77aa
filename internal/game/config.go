package game

import (
	"time"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

// Config carries every tunable of the progression engine. Tests shrink
// the durations; production uses the defaults.
type Config struct {
	TotalQuestions       int
	QuestionDuration     time.Duration // all tiers except hard
	HardQuestionDuration time.Duration
	BasePoints           int
	MaxSpeedBonus        int
	RevealDelay          time.Duration // result display before the next question
	WinDelay             time.Duration // local score-limit hit → end
	CelebrationDelay     time.Duration // observed remote winner → end
	HeartbeatInterval    time.Duration
	CountdownTick        time.Duration
}

func DefaultConfig() Config {
	return Config{
		TotalQuestions:       20,
		QuestionDuration:     15 * time.Second,
		HardQuestionDuration: 10 * time.Second,
		BasePoints:           10,
		MaxSpeedBonus:        5,
		RevealDelay:          3 * time.Second,
		WinDelay:             2 * time.Second,
		CelebrationDelay:     2500 * time.Millisecond,
		HeartbeatInterval:    2 * time.Second,
		CountdownTick:        100 * time.Millisecond,
	}
}

// DurationFor returns the answering window for a difficulty tier: the
// hardest tier gets the short window, everything else the long one.
func (c Config) DurationFor(d store.Difficulty) time.Duration {
	if d == store.DifficultyHard {
		return c.HardQuestionDuration
	}
	return c.QuestionDuration
}
