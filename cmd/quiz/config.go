package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

type Config struct {
	databaseURL string
	storeKind   string
	notifyKind  string
	redisAddr   string

	shareBase string
	cacheDir  string

	name           string
	roomCode       string
	difficulty     string
	scoreLimit     int
	questionsMode  string
	totalQuestions int
	single         bool

	verbose bool
}

func (c *Config) validate() error {
	switch c.storeKind {
	case "memory", "postgres":
	default:
		return fmt.Errorf("invalid store backend: %q", c.storeKind)
	}
	switch c.notifyKind {
	case "", "postgres", "redis":
	default:
		return fmt.Errorf("invalid notify backend: %q", c.notifyKind)
	}
	switch store.Difficulty(c.difficulty) {
	case store.DifficultyEasy, store.DifficultyMedium, store.DifficultyHard, store.DifficultyMixed:
	default:
		return fmt.Errorf("invalid difficulty: %q", c.difficulty)
	}
	switch store.QuestionsMode(c.questionsMode) {
	case store.ModeSame, store.ModePerPlayer:
	default:
		return fmt.Errorf("invalid questions mode: %q", c.questionsMode)
	}
	if c.totalQuestions < 1 {
		return fmt.Errorf("invalid question count: %d", c.totalQuestions)
	}
	if c.storeKind == "postgres" && c.databaseURL == "" {
		return fmt.Errorf("--database-url is required with the postgres store")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quiz",
		Short:         "Terminal client for the shared-store trivia game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return runQuiz(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres connection string (env: QUIZ_DATABASE_URL)")
	fs.StringVar(&cfg.storeKind, "store", "memory", "record store backend, memory or postgres (env: QUIZ_STORE)")
	fs.StringVar(&cfg.notifyKind, "notify", "", "change feed backend, postgres or redis (env: QUIZ_NOTIFY)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address for the redis change feed (env: QUIZ_REDIS_ADDR)")
	fs.StringVar(&cfg.shareBase, "share-base", "https://quiz.example.com/", "base URL for shareable room links (env: QUIZ_SHARE_BASE)")
	fs.StringVar(&cfg.cacheDir, "cache-dir", "", "directory for identity and progress caches, defaults to the user cache dir (env: QUIZ_CACHE_DIR)")
	fs.StringVarP(&cfg.name, "name", "n", "", "guest name or discord id to play as (env: QUIZ_NAME)")
	fs.StringVarP(&cfg.roomCode, "room", "r", "", "room code to join on startup (env: QUIZ_ROOM)")
	fs.StringVarP(&cfg.difficulty, "difficulty", "d", "mixed", "question difficulty: easy, medium, hard or mixed (env: QUIZ_DIFFICULTY)")
	fs.IntVar(&cfg.scoreLimit, "score-limit", 0, "first player to reach this score wins, 0 plays all questions (env: QUIZ_SCORE_LIMIT)")
	fs.StringVar(&cfg.questionsMode, "questions-mode", "same", "question assignment: same or per-player (env: QUIZ_QUESTIONS_MODE)")
	fs.IntVar(&cfg.totalQuestions, "questions", 20, "number of questions per game (env: QUIZ_QUESTIONS)")
	fs.BoolVarP(&cfg.single, "single", "s", false, "start a single-player game immediately (env: QUIZ_SINGLE)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIZ_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quiz v{{.Version}}\n")

	cmd.SilenceUsage = true

	return cmd
}
