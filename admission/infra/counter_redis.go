package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trade-admission/admission/domain"

	"github.com/redis/go-redis/v9"
)

// incrScript cria-ou-incrementa e arma o TTL só no primeiro incremento (ttl <= 0 = sem expiração),
// tudo no servidor, então dois clientes concorrentes nunca veem o mesmo valor.
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisCounterStore guarda contadores de janela no Redis; a expiração é o TTL nativo.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisCounterOption func(*RedisCounterStore)

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(s *RedisCounterStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{
		rdb:    rdb,
		prefix: "admission:counter",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ domain.CounterStore  = (*RedisCounterStore)(nil)
	_ domain.CounterPurger = (*RedisCounterStore)(nil)
)

func (s *RedisCounterStore) key(subjectID string, bucket domain.BucketKey) string {
	return s.prefix + ":" + bucket.String() + ":" + subjectID
}

func (s *RedisCounterStore) IncrementAndGet(ctx context.Context, subjectID string, bucket domain.BucketKey, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, s.rdb, []string{s.key(subjectID, bucket)}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: counter incr: %w", domain.ErrStoreUnavailable, err)
	}
	return n, nil
}

// Purge apaga todos os contadores sob o prefixo.
func (s *RedisCounterStore) Purge(ctx context.Context) error {
	if err := deleteByPattern(ctx, s.rdb, s.prefix+":*"); err != nil {
		return fmt.Errorf("%w: counter purge: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
