package infra

import (
	"context"
	"errors"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// incrScript faz GET + comparação + INCR + PEXPIRE numa única execução no
// Redis. A expiração só é aplicada quando a chave nasce (ou está sem TTL), então
// incrementos concorrentes não reiniciam a janela.
//
// KEYS[1] = chave, ARGV[1] = janela em ms, ARGV[2] = teto.
// Retorna {contagem, 1 se incrementou / 0 se não}.
var incrScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[2]) then
  return {current, 0}
end
current = redis.call('INCR', KEYS[1])
if current == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {current, 1}
`)

// RedisCounterStore implementa domain.CounterStore sobre o Redis.
//
// O client é do chamador: o store não fecha a conexão (veja Supervisor).
type RedisCounterStore struct {
	rdb redis.UniversalClient
}

func NewRedisCounterStore(rdb redis.UniversalClient) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) Get(ctx context.Context, key domain.Key) (int64, error) {
	n, err := s.rdb.Get(ctx, string(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisCounterStore) IncrementAndExpireIfNew(ctx context.Context, key domain.Key, window time.Duration, ceiling int64) (int64, bool, error) {
	res, err := incrScript.Run(ctx, s.rdb, []string{string(key)}, window.Milliseconds(), ceiling).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, errors.New("redis: unexpected script reply")
	}
	return res[0], res[1] == 1, nil
}

func (s *RedisCounterStore) TTL(ctx context.Context, key domain.Key) (time.Duration, error) {
	d, err := s.rdb.PTTL(ctx, string(key)).Result()
	if err != nil {
		return 0, err
	}
	// -2 (não existe) e -1 (sem expiração) chegam como durações negativas
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *RedisCounterStore) Reset(ctx context.Context, key domain.Key) error {
	return s.rdb.Del(ctx, string(key)).Err()
}

func (s *RedisCounterStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
