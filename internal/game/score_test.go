package game

import (
	"testing"
	"time"
)

func TestCalculateScore(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		name      string
		correct   bool
		timeTaken time.Duration
		duration  time.Duration
		want      int
	}{
		{"incorrect scores zero", false, time.Second, 15 * time.Second, 0},
		{"instant answer gets full bonus", true, 0, 15 * time.Second, 15},
		{"last moment answer gets base only", true, 15 * time.Second, 15 * time.Second, 10},
		{"late answer never goes below base", true, 20 * time.Second, 15 * time.Second, 10},
		{"one third elapsed", true, 5 * time.Second, 15 * time.Second, 13},
		{"hard question window", true, 2 * time.Second, 10 * time.Second, 14},
		{"zero duration falls back to base", true, time.Second, 0, 10},
	}
	for _, c := range cases {
		if got := CalculateScore(cfg, c.correct, c.timeTaken, c.duration); got != c.want {
			t.Errorf("%s: CalculateScore=%d, want %d", c.name, got, c.want)
		}
	}
}

func TestDurationForDifficulty(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.DurationFor("hard"); got != cfg.HardQuestionDuration {
		t.Fatalf("hard duration = %v, want %v", got, cfg.HardQuestionDuration)
	}
	if got := cfg.DurationFor("easy"); got != cfg.QuestionDuration {
		t.Fatalf("easy duration = %v, want %v", got, cfg.QuestionDuration)
	}
	if got := cfg.DurationFor("mixed"); got != cfg.QuestionDuration {
		t.Fatalf("mixed duration = %v, want %v", got, cfg.QuestionDuration)
	}
}
