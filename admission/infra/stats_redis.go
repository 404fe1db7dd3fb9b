package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trade-admission/admission/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore agrega decisões de admissão e do flood guard no Redis.
//
// Layout:
//   - <prefix>:decisions                      allowed/denied geral e <source>:allowed|denied
//   - <prefix>:rules                          <source>:<rule> -> negações
//   - <prefix>:series:<source>:<yyyymmddhhmm> por minuto: allowed, denied e uma conta por regra
//   - <prefix>:client:<key>                   por cliente, só com WithStatsPerClient
//
// Série e cliente expiram após a retenção; decisions e rules são cumulativos.
type RedisStatsStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
	perClient bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsRetention define por quanto tempo séries e contadores por cliente vivem.
// 0 desliga a expiração.
func WithStatsRetention(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.retention = d }
}

// WithStatsPerClient liga o hash por cliente. Cuidado: uma chave por endereço.
func WithStatsPerClient(on bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.perClient = on }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:       rdb,
		prefix:    "admission:stats",
		retention: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.StatsStore = (*RedisStatsStore)(nil)

func (s *RedisStatsStore) decisionsKey() string { return s.prefix + ":decisions" }
func (s *RedisStatsStore) rulesKey() string     { return s.prefix + ":rules" }

func (s *RedisStatsStore) seriesKey(source string, at time.Time) string {
	return s.prefix + ":series:" + source + ":" + at.UTC().Format("200601021504")
}

func (s *RedisStatsStore) clientKey(key string) string { return s.prefix + ":client:" + key }

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	source := ev.Source
	if source == "" {
		source = domain.SourceAdmission
	}
	field := outcome(ev.Allowed)
	denyRule := !ev.Allowed && ev.Rule != ""

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.decisionsKey(), field, 1)
		pipe.HIncrBy(ctx, s.decisionsKey(), source+":"+field, 1)
		if denyRule {
			pipe.HIncrBy(ctx, s.rulesKey(), source+":"+string(ev.Rule), 1)
		}

		series := s.seriesKey(source, at)
		pipe.HIncrBy(ctx, series, field, 1)
		if denyRule {
			pipe.HIncrBy(ctx, series, string(ev.Rule), 1)
		}
		s.expire(ctx, pipe, series)

		if k := strings.TrimSpace(ev.Key); s.perClient && k != "" {
			pipe.HIncrBy(ctx, s.clientKey(k), field, 1)
			s.expire(ctx, pipe, s.clientKey(k))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: record stats: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStatsStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.retention > 0 {
		pipe.Expire(ctx, key, s.retention)
	}
}

// Totals lê os cumulativos de uma origem; source vazio devolve o geral.
func (s *RedisStatsStore) Totals(ctx context.Context, source string) (Counters, error) {
	allowed, denied := "allowed", "denied"
	if source != "" {
		allowed, denied = source+":allowed", source+":denied"
	}

	vals, err := s.rdb.HMGet(ctx, s.decisionsKey(), allowed, denied).Result()
	if err != nil {
		return Counters{}, fmt.Errorf("%w: read stats: %w", domain.ErrStoreUnavailable, err)
	}
	return Counters{Allowed: parseCount(vals[0]), Denied: parseCount(vals[1])}, nil
}

func parseCount(v interface{}) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(str, 10, 64)
	return n
}
