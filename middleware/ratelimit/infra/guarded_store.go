package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"
)

// GuardedStore envolve um CounterStore e falha fechado enquanto o Supervisor
// não está READY. Qualquer erro do store vira ErrStoreUnavailable e, exceto
// cancelamento pelo chamador, é reportado ao Supervisor.
type GuardedStore struct {
	store domain.CounterStore
	sup   *Supervisor
}

var _ domain.CounterStore = (*GuardedStore)(nil)

func NewGuardedStore(store domain.CounterStore, sup *Supervisor) *GuardedStore {
	return &GuardedStore{store: store, sup: sup}
}

func (g *GuardedStore) ready() error {
	if g.sup != nil && !g.sup.Ready() {
		return fmt.Errorf("store %s: %w", g.sup.State(), domain.ErrStoreUnavailable)
	}
	return nil
}

func (g *GuardedStore) fail(err error) error {
	if err == nil {
		return nil
	}
	// cancelamento vem do cliente, não diz nada sobre a conexão.
	if g.sup != nil && !errors.Is(err, context.Canceled) {
		g.sup.ReportFailure(err)
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func (g *GuardedStore) Get(ctx context.Context, key domain.Key) (int64, error) {
	if err := g.ready(); err != nil {
		return 0, err
	}
	n, err := g.store.Get(ctx, key)
	return n, g.fail(err)
}

func (g *GuardedStore) IncrementAndExpireIfNew(ctx context.Context, key domain.Key, window time.Duration, ceiling int64) (int64, bool, error) {
	if err := g.ready(); err != nil {
		return 0, false, err
	}
	n, ok, err := g.store.IncrementAndExpireIfNew(ctx, key, window, ceiling)
	if err != nil {
		return 0, false, g.fail(err)
	}
	return n, ok, nil
}

func (g *GuardedStore) TTL(ctx context.Context, key domain.Key) (time.Duration, error) {
	if err := g.ready(); err != nil {
		return 0, err
	}
	d, err := g.store.TTL(ctx, key)
	return d, g.fail(err)
}
