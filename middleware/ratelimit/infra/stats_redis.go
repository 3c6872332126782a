package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de decisões em hashes do Redis:
//
//	<prefix>:total                 outcome -> n (não expira)
//	<prefix>:minute:<yyyymmddhhmm> outcome -> n (expira em ttl)
//	<prefix>:route                 "<METHOD> <path>:<outcome>" -> n
//	<prefix>:key:<key>             outcome -> n (só com trackKeys)
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil || ev.Outcome == "" {
		return nil
	}
	field := string(ev.Outcome)

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if s.bucket == "minute" {
		s.incrExpiring(ctx, pipe, fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504")), field)
	}
	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}
	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		s.incrExpiring(ctx, pipe, s.prefix+":key:"+k, field)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// Total lê os contadores acumulados.
func (s *RedisStatsStore) Total(ctx context.Context) (Counters, error) {
	m, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return Counters{}, err
	}
	var c Counters
	for field, raw := range m {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Counters{}, fmt.Errorf("stats field %s: %w", field, err)
		}
		switch domain.Outcome(field) {
		case domain.OutcomeAllowed:
			c.Allowed = n
		case domain.OutcomeDenied:
			c.Denied = n
		case domain.OutcomeBypassed:
			c.Bypassed = n
		case domain.OutcomeUnavailable:
			c.Unavailable = n
		}
	}
	return c, nil
}
