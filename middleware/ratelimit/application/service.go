package application

import (
	"context"
	"fmt"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"
)

// DefaultStoreTimeout limita o tempo total gasto no store por decisão.
const DefaultStoreTimeout = 250 * time.Millisecond

// Request é o que o adapter extrai de cada requisição.
type Request struct {
	Identity domain.Identity
	Route    string
}

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Não guarda estado entre chamadas: toda contagem é relida do store.
type Service struct {
	Store     domain.CounterStore
	Whitelist domain.Whitelist
	PerRoute  bool
	KeyPrefix string
	// Timeout das operações no store. Se <= 0, usa DefaultStoreTimeout.
	Timeout time.Duration
}

// Key devolve a scope key que Decide usaria para req.
func (s Service) Key(req Request) domain.Key {
	return domain.ScopeKey(s.KeyPrefix, req.Identity, req.Route, s.PerRoute)
}

func (s Service) Decide(ctx context.Context, req Request, policy domain.Policy) (domain.Decision, error) {
	// whitelist antes de qualquer acesso ao store
	if s.Whitelist.Contains(req.Identity.OrUnknown()) {
		return domain.Decision{Allowed: true, Bypassed: true}, nil
	}
	if !policy.Valid() {
		return domain.Decision{}, fmt.Errorf("decide: %w", domain.ErrInvalidPolicy)
	}

	key := s.Key(req)
	if s.Store == nil {
		return domain.Decision{}, fmt.Errorf("decide %s: %w", key, domain.ErrStoreUnavailable)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limit := policy.MaxRequests()

	count, err := s.Store.Get(ctx, key)
	if err != nil {
		return domain.Decision{}, storeErr("get", key, err)
	}
	if count >= limit {
		return s.deny(ctx, key, limit)
	}

	// o store é quem decide de fato: o Get acima é só um atalho.
	n, ok, err := s.Store.IncrementAndExpireIfNew(ctx, key, policy.Window(), limit)
	if err != nil {
		return domain.Decision{}, storeErr("increment", key, err)
	}
	if !ok {
		return s.deny(ctx, key, limit)
	}

	remaining := limit - n
	if remaining < 0 {
		remaining = 0
	}
	return domain.Decision{
		Allowed:   true,
		Key:       key,
		Limit:     limit,
		Remaining: remaining,
		Reset:     policy.Window(),
	}, nil
}

// deny nunca altera o contador; só consulta o TTL para o Reset.
func (s Service) deny(ctx context.Context, key domain.Key, limit int64) (domain.Decision, error) {
	ttl, err := s.Store.TTL(ctx, key)
	if err != nil {
		return domain.Decision{}, storeErr("ttl", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return domain.Decision{
		Allowed:   false,
		Key:       key,
		Limit:     limit,
		Remaining: 0,
		Reset:     ttl,
	}, nil
}

func storeErr(op string, key domain.Key, err error) error {
	if domain.IsStoreUnavailable(err) {
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, key, domain.ErrStoreUnavailable, err)
}
