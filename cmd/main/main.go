package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"

	"github.com/milad1377/stork-quiz-game/database"
	"github.com/milad1377/stork-quiz-game/internal/handlers"
	"github.com/milad1377/stork-quiz-game/internal/identity"
	"github.com/milad1377/stork-quiz-game/internal/notify"
	"github.com/milad1377/stork-quiz-game/internal/questions"
	"github.com/milad1377/stork-quiz-game/internal/registry"
	"github.com/milad1377/stork-quiz-game/internal/rooms"
	"github.com/milad1377/stork-quiz-game/internal/store"
	"github.com/milad1377/stork-quiz-game/pkg/common/env"
)

type Application struct {
	wg       sync.WaitGroup
	cfg      *Config
	logger   *slog.Logger
	store    store.Store
	notifier store.Notifier
	handlers *handlers.HandlerRepo
}

type Config struct {
	Port int
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, notifier, err := buildStore(ctx, logger)
	if err != nil {
		logger.Error("store setup failed", "error", err)
		os.Exit(1)
	}

	exchanger := identity.NewExchanger(identity.Config{
		ClientID:     env.GetString("DISCORD_CLIENT_ID", ""),
		ClientSecret: env.GetString("DISCORD_CLIENT_SECRET", ""),
		RedirectURI:  env.GetString("DISCORD_REDIRECT_URI", ""),
	}, logger)

	manager := rooms.NewManager(st, logger)
	reg := registry.New(st, logger)
	resolver := questions.NewResolver(st)

	app := &Application{
		cfg:      &Config{Port: env.GetInt("PORT", 8080)},
		logger:   logger,
		store:    st,
		notifier: notifier,
		handlers: handlers.NewHandlerRepo(logger, st, manager, reg, resolver, exchanger),
	}

	if err := app.run(ctx); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// buildStore assembles the record store and the change-notification
// transport from the environment. STORE_BACKEND picks memory or
// postgres; with postgres, NOTIFY_BACKEND picks how changes fan out
// (postgres LISTEN/NOTIFY by default, or a redis pub/sub channel).
func buildStore(ctx context.Context, logger *slog.Logger) (store.Store, store.Notifier, error) {
	backend := env.GetString("STORE_BACKEND", "memory")
	if backend == "memory" {
		mem := store.NewMemory()
		logger.Info("using in-memory store")
		return mem, mem, nil
	}

	pool, err := database.NewPool(ctx, env.GetString("DATABASE_URL", ""))
	if err != nil {
		return nil, nil, err
	}

	var notifier store.Notifier
	switch env.GetString("NOTIFY_BACKEND", "postgres") {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: env.GetString("REDIS_ADDR", "localhost:6379")})
		notifier = notify.NewRedis(ctx, client, logger)
	default:
		notifier = notify.NewPG(ctx, pool, logger)
	}

	pg := store.NewPostgres(pool, notifier, logger)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	logger.Info("using postgres store")
	return pg, notifier, nil
}
