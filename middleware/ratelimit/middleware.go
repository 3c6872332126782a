package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/application"
	"fixedwindow-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

type Options struct {
	Store     domain.CounterStore
	Policy    domain.Policy
	Whitelist domain.Whitelist
	Stats     domain.StatsStore

	// PerRoute separa o contador por rota (identity:route).
	PerRoute  bool
	KeyPrefix string

	KeyFn              KeyFunc
	RouteFn            RouteFunc
	KeyHeader          string
	TrustXForwardedFor bool

	RejectStatus int
	// StoreTimeout limita o tempo no store por requisição.
	StoreTimeout time.Duration

	Logger *slog.Logger
}

// New valida as opções e devolve o middleware. Erros aqui são de
// configuração (domain.ErrInvalidPolicy): a rota não deve ser registrada.
func New(opts Options) (func(next http.Handler) http.Handler, error) {
	if !opts.Policy.Valid() {
		return nil, fmt.Errorf("ratelimit: %w: policy is required", domain.ErrInvalidPolicy)
	}
	if opts.Store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.RouteFn == nil {
		opts.RouteFn = DefaultRouteFunc
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	svc := application.Service{
		Store:     opts.Store,
		Whitelist: opts.Whitelist,
		PerRoute:  opts.PerRoute,
		KeyPrefix: opts.KeyPrefix,
		Timeout:   opts.StoreTimeout,
	}
	// durante uma queda do store, no máximo um log por segundo
	errLog := &rate.Sometimes{Interval: time.Second}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := application.Request{Identity: opts.KeyFn(r)}
			if opts.PerRoute {
				req.Route = opts.RouteFn(r)
			}

			dec, err := svc.Decide(r.Context(), req, opts.Policy)
			if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
				// cliente desistiu: não há a quem responder nem o que contar.
				return
			}
			outcome := outcomeOf(dec, err)
			record(r, opts.Stats, svc.Key(req), outcome)

			switch outcome {
			case domain.OutcomeUnavailable:
				errLog.Do(func() {
					opts.Logger.Error("rate limiter unavailable", "key", string(svc.Key(req)), "err", err)
				})
				writeUnavailable(w)
				return
			case domain.OutcomeDenied:
				setRateLimitHeaders(w.Header(), dec)
				writeDenied(w, opts.RejectStatus, dec)
				return
			case domain.OutcomeAllowed:
				setRateLimitHeaders(w.Header(), dec)
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// Middleware é o New para configuração fixa: entra em pânico se as opções
// forem inválidas.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	mw, err := New(opts)
	if err != nil {
		panic(err)
	}
	return mw
}

func outcomeOf(dec domain.Decision, err error) domain.Outcome {
	switch {
	case err != nil:
		return domain.OutcomeUnavailable
	case dec.Bypassed:
		return domain.OutcomeBypassed
	case dec.Allowed:
		return domain.OutcomeAllowed
	default:
		return domain.OutcomeDenied
	}
}

// statsTimeout limita a gravação de estatísticas (best-effort).
const statsTimeout = 100 * time.Millisecond

// record grava apenas decisões que já passaram pelo store. Requisições na
// whitelist não podem gerar carga no Redis, e com o store indisponível a
// resposta 500 não espera por estatísticas.
func record(r *http.Request, stats domain.StatsStore, key domain.Key, outcome domain.Outcome) {
	if stats == nil {
		return
	}
	if outcome != domain.OutcomeAllowed && outcome != domain.OutcomeDenied {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), statsTimeout)
	defer cancel()
	_ = stats.Record(ctx, domain.StatsEvent{
		Key:     key,
		Outcome: outcome,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	})
}
