package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
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
	log := logger.New()

	cfg, err := readConfig()
	if err != nil {
		log.Error("config error", "err", err)
		os.Exit(1)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Error("invalid UPSTREAM_URL", "err", err)
		os.Exit(1)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("proxy error", "path", r.URL.Path, "err", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b := newBackend(ctx, cfg, log)
	defer func() {
		if err := b.sup.Close(); err != nil {
			log.Warn("store close failed", "err", err)
		}
	}()

	h, err := newRouter(cfg, b, proxy, log)
	if err != nil {
		log.Error("rate limit config error", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening", "addr", cfg.listenAddr, "upstream", target.String())
	log.Info("rate",
		"enabled", cfg.rateEnabled,
		"default", cfg.defaultPolicy.String(),
		"routes", len(cfg.routes),
		"perRoute", cfg.perRoute,
		"whitelist", cfg.whitelist.Len(),
		"keyHeader", cfg.keyHeader,
		"trustXFF", cfg.trustXFF,
	)
	log.Info("store", "backend", cfg.storeBackend, "addr", cfg.redisAddr, "timeout", cfg.storeTimeout, "retryBackoff", cfg.retryBackoff)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}

// backend agrupa o store de contadores, o supervisor da conexão e as stats.
type backend struct {
	store domain.CounterStore
	sup   *infra.Supervisor
	stats domain.StatsStore
}

// newBackend não bloqueia esperando o store: enquanto ele não estiver READY
// as requisições recebem 500 e o supervisor segue tentando.
func newBackend(ctx context.Context, cfg config, log *slog.Logger) backend {
	supOpts := []infra.SupervisorOption{
		infra.WithBackoff(cfg.retryBackoff),
		infra.WithHealthEvery(cfg.healthEvery),
		infra.WithLogger(log.With("component", "store")),
	}

	var (
		counters interface {
			domain.CounterStore
			infra.Pinger
		}
		stats domain.StatsStore
	)
	switch cfg.storeBackend {
	case "memory":
		mem := infra.NewMemoryCounterStore()
		mem.StartJanitor(ctx)
		counters = mem
		if cfg.rateStatsEnabled {
			stats = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.rateStatsTrackKeys))
		}
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
			// falha rápido: a recuperação é do supervisor, não do request
			MaxRetries:   -1,
			DialTimeout:  cfg.storeTimeout,
			ReadTimeout:  cfg.storeTimeout,
			WriteTimeout: cfg.storeTimeout,
		})
		supOpts = append(supOpts, infra.WithCloser(rdb))
		counters = infra.NewRedisCounterStore(rdb)
		if cfg.rateStatsEnabled {
			stats = infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.rateStatsPrefix),
				infra.WithStatsTTL(cfg.rateStatsTTL),
				infra.WithStatsBucket(cfg.rateStatsBucket),
				infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
			)
		}
	}

	sup := infra.NewSupervisor(counters, supOpts...)
	sup.Start(ctx)

	return backend{
		store: infra.NewGuardedStore(counters, sup),
		sup:   sup,
		stats: stats,
	}
}

// newRouter monta o chi.Router: cada rota do arquivo de policies recebe o seu
// middleware e o resto ("/*") usa a policy padrão. Policy inválida impede a
// subida (erro de configuração).
func newRouter(cfg config, b backend, upstream http.Handler, log *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !b.sup.Ready() {
			http.Error(w, b.sup.State().String(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	if !cfg.rateEnabled {
		r.Handle("/*", upstream)
		return r, nil
	}

	limiter := func(policy domain.Policy) (func(http.Handler) http.Handler, error) {
		return ratelimit.New(ratelimit.Options{
			Store:              b.store,
			Policy:             policy,
			Whitelist:          cfg.whitelist,
			Stats:              b.stats,
			PerRoute:           cfg.perRoute,
			KeyPrefix:          cfg.keyPrefix,
			KeyHeader:          cfg.keyHeader,
			TrustXForwardedFor: cfg.trustXFF,
			StoreTimeout:       cfg.storeTimeout,
			Logger:             log.With("component", "ratelimit"),
		})
	}

	for _, rt := range cfg.routes {
		mw, err := limiter(rt.policy)
		if err != nil {
			return nil, err
		}
		r.With(mw).Handle(rt.pattern, upstream)
		log.Info("route policy", "pattern", rt.pattern, "policy", rt.policyName, "limit", rt.policy.String())
	}

	mw, err := limiter(cfg.defaultPolicy)
	if err != nil {
		return nil, err
	}
	r.With(mw).Handle("/*", upstream)
	return r, nil
}
