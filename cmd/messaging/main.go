package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/munnorthwest/conference-messaging/internal/api"
	"github.com/munnorthwest/conference-messaging/internal/cache"
	"github.com/munnorthwest/conference-messaging/internal/client"
	"github.com/munnorthwest/conference-messaging/internal/config"
	"github.com/munnorthwest/conference-messaging/internal/dispatch"
	"github.com/munnorthwest/conference-messaging/internal/lock"
	"github.com/munnorthwest/conference-messaging/internal/repo"
	"github.com/munnorthwest/conference-messaging/internal/resolve"
	"github.com/munnorthwest/conference-messaging/internal/scheduler"
	"github.com/munnorthwest/conference-messaging/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	messages := repo.NewPostgresMessageRepo(db)
	participants := repo.NewPostgresParticipantRepo(db)

	smsClient := client.NewSMSClient(
		cfg.SMS.APIURL,
		cfg.SMS.AccountSID,
		cfg.SMS.AuthToken,
		cfg.SMS.FromNumber,
	)

	summaries := cache.NewRedisCache(rdb, cfg.Redis.TTL)
	engine := dispatch.NewEngine(smsClient, messages, cfg.Dispatch.PoolSize)
	dispatcher := service.NewDispatcher(resolve.NewResolver(participants), messages, engine, summaries)

	locker := lock.NewRedisLocker(rdb, cfg.Redis.LockKey, cfg.Redis.LockTTL)
	poller := service.NewPoller(locker, messages, participants, engine, summaries)

	sched, err := scheduler.New(cfg.Scheduler.Interval, poller.RunPass)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.Router(api.NewHandler(dispatcher, messages, summaries, sched)),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Address)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
