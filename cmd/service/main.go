package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"setlist-service/internal/auth"
	"setlist-service/internal/realtime"
	"setlist-service/internal/setlist"
)

func main() {
	cfg, err := loadConfigFromEnv()
	if err == nil {
		cfg, err = parseFlags(cfg, os.Args[1:], os.Stderr)
	}
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("setlist-service: config", "err", err)
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("setlist-service: exiting", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := realtime.NewEngine(log, nil)

	var publisher setlist.Publisher = engine
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}

		relay := realtime.NewRelay(rdb, engine, log)
		relayErr := make(chan error, 1)
		go func() { relayErr <- relay.Run(ctx) }()

		select {
		case <-relay.Ready():
		case err := <-relayErr:
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("setlist-service: redis relay: %w", err)
			}
			return nil
		}
		go func() {
			if err := <-relayErr; err != nil {
				log.Error("setlist-service: relay stopped, delivering events locally", "err", err)
			}
		}()
		publisher = relay
		log.Info("setlist-service: relaying events through redis", "channel", realtime.Channel)
	}

	var identity auth.Resolver = auth.Anonymous{}
	if len(cfg.JWTSecret) > 0 {
		identity = auth.NewJWTResolver(cfg.JWTSecret)
	} else {
		log.Warn("setlist-service: JWT validation disabled, only share-link access is possible")
	}

	svc := setlist.NewService(store, identity,
		setlist.WithPublisher(publisher),
		setlist.WithLogger(log),
	)

	ws := realtime.NewServer(engine, svc, realtime.Config{
		AllowedOrigin: cfg.AllowedOrigin,
		SendBuffer:    cfg.SendBuffer,
	}, log)

	r := setlist.NewServer(svc, log).Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)
	r.Get("/setlists/{id}/ws", ws.HandleWS)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("setlist-service: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("setlist-service: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg Config, log *slog.Logger) (setlist.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("setlist-service: DATABASE_URL is empty, keeping setlists in memory")
		mem := setlist.NewMemoryStore()
		mem.AllowAnyTrack()
		return mem, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := setlist.AutoMigrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("setlist-service: connected to postgres")

	return setlist.NewPostgresStore(pool), pool.Close, nil
}
