package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fixedwindow-gateway/middleware/ratelimit"
	"fixedwindow-gateway/middleware/ratelimit/domain"
	"fixedwindow-gateway/middleware/ratelimit/infra"
	"fixedwindow-gateway/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Exemplo: middleware direto no seu webserver (sem proxy), 5 req / 60s por IP
	log := logger.New()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, MaxRetries: -1})
	store := infra.NewRedisCounterStore(rdb)
	sup := infra.NewSupervisor(store, infra.WithCloser(rdb), infra.WithLogger(log))
	sup.Start(ctx)
	defer sup.Close()

	limited := ratelimit.Middleware(ratelimit.Options{
		Store:  infra.NewGuardedStore(store, sup),
		Policy: domain.MustPolicy(60, 5),
		Logger: log,
	})

	r := chi.NewRouter()
	r.With(limited).Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Welcome, your request is within limit!"))
	})

	addr := ":3000"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", "addr", addr, "redis", redisAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}
