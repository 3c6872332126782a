package infra

import (
	"context"
	"sync"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"
)

// MemoryCounterStore implementa domain.CounterStore em memória, com expiração
// por chave e limpeza periódica.
//
// Serve para um único processo (dev/testes). Para várias instâncias use o Redis.
type MemoryCounterStore struct {
	mu           sync.Mutex
	entries      map[domain.Key]*counterEntry
	cleanupEvery time.Duration
	now          func() time.Time
}

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

type MemoryStoreOption func(*MemoryCounterStore)

func WithCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryCounterStore) { s.cleanupEvery = d }
}

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryCounterStore) { s.now = now }
}

func NewMemoryCounterStore(opts ...MemoryStoreOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		entries:      make(map[domain.Key]*counterEntry),
		cleanupEvery: time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// live devolve a entrada se ela ainda não expirou. Chamar com mu travado.
func (s *MemoryCounterStore) live(key domain.Key, now time.Time) *counterEntry {
	ent, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !now.Before(ent.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return ent
}

func (s *MemoryCounterStore) Get(_ context.Context, key domain.Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent := s.live(key, s.now()); ent != nil {
		return ent.count, nil
	}
	return 0, nil
}

func (s *MemoryCounterStore) IncrementAndExpireIfNew(_ context.Context, key domain.Key, window time.Duration, ceiling int64) (int64, bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.live(key, now)
	if ent == nil {
		if ceiling <= 0 {
			return 0, false, nil
		}
		s.entries[key] = &counterEntry{count: 1, expiresAt: now.Add(window)}
		return 1, true, nil
	}
	if ent.count >= ceiling {
		return ent.count, false, nil
	}
	ent.count++
	return ent.count, true, nil
}

func (s *MemoryCounterStore) TTL(_ context.Context, key domain.Key) (time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent := s.live(key, now); ent != nil {
		return ent.expiresAt.Sub(now), nil
	}
	return 0, nil
}

func (s *MemoryCounterStore) Reset(_ context.Context, key domain.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Ping sempre funciona: não há conexão.
func (s *MemoryCounterStore) Ping(context.Context) error { return nil }

func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup remove as chaves cuja janela já terminou.
func (s *MemoryCounterStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !now.Before(ent.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryCounterStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
