package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"

	"github.com/milad1377/stork-quiz-game/database"
	"github.com/milad1377/stork-quiz-game/internal/game"
	"github.com/milad1377/stork-quiz-game/internal/identity"
	"github.com/milad1377/stork-quiz-game/internal/notify"
	"github.com/milad1377/stork-quiz-game/internal/questions"
	"github.com/milad1377/stork-quiz-game/internal/registry"
	"github.com/milad1377/stork-quiz-game/internal/rooms"
	"github.com/milad1377/stork-quiz-game/internal/store"
)

func runQuiz(ctx context.Context, cfg *Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so the game itself stays readable on stdout.
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))

	st, notifier, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	cacheDir := cfg.cacheDir
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		cacheDir = filepath.Join(base, "quiz")
	}
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		return err
	}
	idCache := &identity.FileCache{Path: filepath.Join(cacheDir, "identity.json")}

	presenter := newTermPresenter(os.Stdout)
	engine := game.NewEngine(ctx, game.Deps{
		Config:    game.DefaultConfig(),
		Store:     st,
		Notifier:  notifier,
		Rooms:     rooms.NewManager(st, logger),
		Questions: questions.NewResolver(st),
		Registry:  registry.New(st, logger),
		Presenter: presenter,
		Progress:  &game.FileProgressCache{Path: filepath.Join(cacheDir, "progress.json")},
		Logger:    logger,
		ShareBase: cfg.shareBase,
	})
	defer engine.Close()

	if u, err := idCache.Load(); err == nil && u != nil {
		engine.SetAuthenticated(u)
		if cfg.name == "" {
			cfg.name = u.DiscordID
		}
	}
	if cfg.name != "" {
		if err := engine.SetPlayer(ctx, cfg.name); err != nil {
			return err
		}
	}

	switch {
	case cfg.single:
		_ = engine.StartSinglePlayer(ctx, store.Difficulty(cfg.difficulty), cfg.totalQuestions)
	case cfg.roomCode != "":
		_ = engine.JoinRoomByCode(ctx, cfg.roomCode)
	default:
		_ = engine.Initialize(ctx, "")
	}

	return inputLoop(ctx, cfg, engine)
}

func inputLoop(ctx context.Context, cfg *Config, engine *game.Engine) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if done := dispatch(ctx, cfg, engine, line); done {
				return nil
			}
		}
	}
}

func dispatch(ctx context.Context, cfg *Config, engine *game.Engine, line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	var err error

	switch fields[0] {
	case "quit", "exit":
		engine.LeaveRoom(ctx)
		return true
	case "a", "b", "c", "d":
		err = engine.SubmitAnswer(ctx, fields[0])
	case "name":
		if len(fields) < 2 {
			fmt.Println("usage: name <you>")
			return false
		}
		// Names keep the typed casing.
		err = engine.SetPlayer(ctx, strings.Fields(line)[1])
	case "create":
		err = engine.CreateRoom(ctx, game.CreateOptions{
			Difficulty:     store.Difficulty(cfg.difficulty),
			ScoreLimit:     cfg.scoreLimit,
			QuestionsMode:  store.QuestionsMode(cfg.questionsMode),
			TotalQuestions: cfg.totalQuestions,
		})
	case "join":
		if len(fields) < 2 {
			fmt.Println("usage: join <CODE>")
			return false
		}
		err = engine.JoinRoomByCode(ctx, strings.ToUpper(fields[1]))
	case "single":
		err = engine.StartSinglePlayer(ctx, store.Difficulty(cfg.difficulty), cfg.totalQuestions)
	case "start":
		err = engine.StartGame(ctx)
	case "leave":
		engine.LeaveRoom(ctx)
	default:
		fmt.Printf("unknown command: %s\n", fields[0])
	}

	if err != nil {
		fmt.Printf("!! %v\n", err)
	}
	return false
}

func buildStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Store, store.Notifier, error) {
	if cfg.storeKind == "memory" {
		mem := store.NewMemory()
		return mem, mem, nil
	}

	pool, err := database.NewPool(ctx, cfg.databaseURL)
	if err != nil {
		return nil, nil, err
	}

	var notifier store.Notifier
	switch cfg.notifyKind {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		notifier = notify.NewRedis(ctx, client, logger)
	default:
		notifier = notify.NewPG(ctx, pool, logger)
	}

	pg := store.NewPostgres(pool, notifier, logger)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	return pg, notifier, nil
}
