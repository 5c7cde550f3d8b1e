package cli

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"photo-quiz-service/internal/app"
	"photo-quiz-service/internal/config"
	"photo-quiz-service/internal/infra/file"
	"photo-quiz-service/internal/infra/images"
	"photo-quiz-service/internal/infra/memory"
	"photo-quiz-service/internal/infra/postgres"
	infraredis "photo-quiz-service/internal/infra/redis"
	transport "photo-quiz-service/internal/transport/http"
	"photo-quiz-service/internal/transport/telegram"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, *verbose)
		},
	}
}

// newPoolLoader reads the pool from Postgres when a URL is configured, otherwise
// from the quiz.source file.
func newPoolLoader(ctx context.Context, cfg config.Config) (memory.PoolLoader, func(), error) {
	if cfg.Postgres.URL == "" {
		log.Printf("pool: reading %s", cfg.Quiz.Source)
		return file.NewPoolLoader(cfg.Quiz.Source), func() {}, nil
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("pool: reading postgres quiz_records")
	return postgres.NewPoolLoader(pool), pool.Close, nil
}

func runServer(parent context.Context, configPath, portFlag string, verboseFlag bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	if verboseFlag {
		cfg.Server.Verbose = true
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg); err != nil {
			return err
		}
	}

	loader, closeLoader, err := newPoolLoader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLoader()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pools app.PoolRepository
	var store app.SessionRepository
	if redisClient != nil {
		pools = infraredis.NewPoolRepository(redisClient, loader, "default", cfg.Quiz.TTL)
		store = infraredis.NewSessionStore(redisClient, cfg.Redis.TTL)
	} else {
		pools = memory.NewPoolRepository(loader, cfg.Quiz.TTL)
		store = memory.NewSessionStore()
	}

	// Fail fast on a broken pool; the cache keeps the loaded copy warm.
	if pool, err := pools.GetPool(ctx); err != nil {
		log.Printf("pool unavailable: %v", err)
	} else {
		log.Printf("pool: %d records, %d male / %d female names",
			pool.Size(), len(pool.Names.Male), len(pool.Names.Female))
	}

	service := app.NewQuizService(store, pools, app.Rules{
		Size:          cfg.Quiz.Size,
		QuestionTime:  cfg.Quiz.QuestionTime,
		FeedbackDwell: cfg.Quiz.FeedbackDwell,
		Grace:         cfg.Quiz.Grace,
	})
	resolver := images.NewResolver(cfg.Quiz.ImageDir)

	handler := transport.NewRouter(service, pools, resolver, transport.Options{
		PublicURL: cfg.Server.PublicURL,
		Tick:      cfg.Quiz.Tick,
		Verbose:   cfg.Server.Verbose,
	})
	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Bind, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("starting quiz service on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.Debug, service, resolver, cfg.Quiz.Tick)
		if err != nil {
			return err
		}
		g.Go(func() error { return bot.Run(ctx) })
	}

	g.Go(func() error {
		reapIdle(ctx, service, cfg.Quiz.SessionTTL, cfg.Server.Verbose)
		return nil
	})

	return g.Wait()
}

// reapIdle drops sessions untouched for idle, checking every idle/4.
func reapIdle(ctx context.Context, service *app.QuizService, idle time.Duration, verbose bool) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(max(idle/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := service.ReapIdle(ctx, idle); n > 0 || verbose {
				log.Printf("reaper: dropped %d idle sessions", n)
			}
		}
	}
}
