package infra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trade-admission/admission/domain"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisSubmissionLog guarda anúncios no Redis.
//
// Layout:
//   - <prefix>:sub:<id>        JSON do anúncio; anônimos com TTL nativo de 7 dias
//   - <prefix>:idx:<kind>:<v>  ZSET (score = createdAt em ms) por fingerprint, endereço,
//     título, contatos, dono e nomes de item de cada lado
//   - <prefix>:idx:all         ZSET com todos os ids
//
// Membros de índice cujo registro já expirou são removidos preguiçosamente na leitura.
type RedisSubmissionLog struct {
	rdb      *redis.Client
	prefix   string
	indexTTL time.Duration
	now      func() time.Time
}

type RedisLogOption func(*RedisSubmissionLog)

func WithLogPrefix(prefix string) RedisLogOption {
	return func(l *RedisSubmissionLog) { l.prefix = strings.Trim(prefix, ":") }
}

// WithIndexTTL define a expiração dos índices com janela (não se aplica a dono nem a all).
func WithIndexTTL(d time.Duration) RedisLogOption {
	return func(l *RedisSubmissionLog) { l.indexTTL = d }
}

func WithRedisLogClock(now func() time.Time) RedisLogOption {
	return func(l *RedisSubmissionLog) { l.now = now }
}

func NewRedisSubmissionLog(rdb *redis.Client, opts ...RedisLogOption) *RedisSubmissionLog {
	l := &RedisSubmissionLog{
		rdb:      rdb,
		prefix:   "admission:trades",
		indexTTL: domain.AnonymousTTL + 24*time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ domain.SubmissionLog = (*RedisSubmissionLog)(nil)

func (l *RedisSubmissionLog) recordKey(id string) string { return l.prefix + ":sub:" + id }

func (l *RedisSubmissionLog) indexKey(kind, value string) string {
	return l.prefix + ":idx:" + kind + ":" + value
}

func (l *RedisSubmissionLog) allKey() string { return l.prefix + ":idx:all" }

// windowedIndexes são os índices que só servem a consultas com janela (<= 7 dias).
func (l *RedisSubmissionLog) windowedIndexes(s domain.Submission) []string {
	keys := []string{
		l.indexKey("fp", s.Fingerprint),
		l.indexKey("addr", s.Address),
		l.indexKey("title", s.Title),
	}
	if s.Discord != "" {
		keys = append(keys, l.indexKey("discord", s.Discord))
	}
	if s.Roblox != "" {
		keys = append(keys, l.indexKey("roblox", s.Roblox))
	}
	for _, n := range uniqueStrings(domain.FoldedNames(s.Side1)) {
		keys = append(keys, l.indexKey("s1", n))
	}
	for _, n := range uniqueStrings(domain.FoldedNames(s.Side2)) {
		keys = append(keys, l.indexKey("s2", n))
	}
	return keys
}

func (l *RedisSubmissionLog) allIndexes(s domain.Submission) []string {
	keys := append(l.windowedIndexes(s), l.allKey())
	if s.OwnerID != "" {
		keys = append(keys, l.indexKey("owner", s.OwnerID))
	}
	return keys
}

func (l *RedisSubmissionLog) Insert(ctx context.Context, s *domain.Submission) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = l.now()
	}

	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	var ttl time.Duration
	if exp := s.ExpiresAt(); !exp.IsZero() {
		ttl = exp.Sub(l.now())
		if ttl <= 0 {
			return "", fmt.Errorf("submission %s already expired", s.ID)
		}
	}

	member := redis.Z{Score: float64(s.CreatedAt.UnixMilli()), Member: s.ID}
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, l.recordKey(s.ID), data, ttl)
		for _, k := range l.windowedIndexes(*s) {
			pipe.ZAdd(ctx, k, member)
			if l.indexTTL > 0 {
				pipe.Expire(ctx, k, l.indexTTL)
			}
		}
		pipe.ZAdd(ctx, l.allKey(), member)
		if s.OwnerID != "" {
			pipe.ZAdd(ctx, l.indexKey("owner", s.OwnerID), member)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: insert submission: %w", domain.ErrStoreUnavailable, err)
	}
	return s.ID, nil
}

// candidateKeys escolhe os índices mais seletivos para a consulta.
// Ids vindos de mais de uma chave são unidos; q.Matches filtra o resto.
func (l *RedisSubmissionLog) candidateKeys(q domain.Query) []string {
	switch {
	case q.OwnerID != "":
		return []string{l.indexKey("owner", q.OwnerID)}
	case q.Fingerprint != "":
		return []string{l.indexKey("fp", q.Fingerprint)}
	case q.Title != "":
		return []string{l.indexKey("title", q.Title)}
	case !q.AnyOf.Empty():
		var keys []string
		if q.AnyOf.Fingerprint != "" {
			keys = append(keys, l.indexKey("fp", q.AnyOf.Fingerprint))
		}
		if q.AnyOf.Address != "" {
			keys = append(keys, l.indexKey("addr", q.AnyOf.Address))
		}
		if q.AnyOf.Discord != "" {
			keys = append(keys, l.indexKey("discord", q.AnyOf.Discord))
		}
		if q.AnyOf.Roblox != "" {
			keys = append(keys, l.indexKey("roblox", q.AnyOf.Roblox))
		}
		return keys
	case len(q.Side1Any) > 0:
		keys := make([]string, 0, len(q.Side1Any))
		for _, n := range uniqueStrings(q.Side1Any) {
			keys = append(keys, l.indexKey("s1", n))
		}
		return keys
	case len(q.Side2Any) > 0:
		keys := make([]string, 0, len(q.Side2Any))
		for _, n := range uniqueStrings(q.Side2Any) {
			keys = append(keys, l.indexKey("s2", n))
		}
		return keys
	default:
		return []string{l.allKey()}
	}
}

func (l *RedisSubmissionLog) Find(ctx context.Context, q domain.Query) ([]domain.Submission, error) {
	from := "-inf"
	if !q.Since.IsZero() {
		from = strconv.FormatInt(q.Since.UnixMilli(), 10)
	}

	keys := l.candidateKeys(q)
	seen := make(map[string]struct{})
	var ids []string
	for _, k := range keys {
		got, err := l.rdb.ZRevRangeByScore(ctx, k, &redis.ZRangeBy{Min: from, Max: "+inf"}).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: find submissions: %w", domain.ErrStoreUnavailable, err)
		}
		for _, id := range got {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []domain.Submission{}, nil
	}

	recKeys := make([]string, len(ids))
	for i, id := range ids {
		recKeys[i] = l.recordKey(id)
	}
	vals, err := l.rdb.MGet(ctx, recKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: load submissions: %w", domain.ErrStoreUnavailable, err)
	}

	out := make([]domain.Submission, 0, len(vals))
	var dead []interface{}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			dead = append(dead, ids[i])
			continue
		}
		var s domain.Submission
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("decode submission %s: %w", ids[i], err)
		}
		if q.Matches(s) {
			out = append(out, s)
		}
	}
	if len(dead) > 0 {
		l.dropMembers(ctx, keys, dead)
	}

	sortNewestFirst(out)
	return domain.Page(out, q.Skip, q.Limit), nil
}

// dropMembers é best-effort: um membro órfão só custa uma leitura a mais.
func (l *RedisSubmissionLog) dropMembers(ctx context.Context, keys []string, ids []interface{}) {
	pipe := l.rdb.Pipeline()
	for _, k := range keys {
		pipe.ZRem(ctx, k, ids...)
	}
	_, _ = pipe.Exec(ctx)
}

func (l *RedisSubmissionLog) Count(ctx context.Context, q domain.Query) (int, error) {
	q.Skip, q.Limit = 0, 0
	subs, err := l.Find(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

func (l *RedisSubmissionLog) CountActiveByOwner(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, nil
	}
	return l.Count(ctx, domain.Query{OwnerID: ownerID})
}

func (l *RedisSubmissionLog) Get(ctx context.Context, id string) (domain.Submission, error) {
	raw, err := l.rdb.Get(ctx, l.recordKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return domain.Submission{}, domain.ErrSubmissionNotFound
	case err != nil:
		return domain.Submission{}, fmt.Errorf("%w: get submission: %w", domain.ErrStoreUnavailable, err)
	}

	var s domain.Submission
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Submission{}, fmt.Errorf("decode submission %s: %w", id, err)
	}
	return s, nil
}

func (l *RedisSubmissionLog) UpdateDescription(ctx context.Context, id, ownerID, description string) error {
	if ownerID == "" {
		return domain.ErrSubmissionNotFound
	}
	key := l.recordKey(id)

	err := l.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSubmissionNotFound
		}
		if err != nil {
			return err
		}

		var s domain.Submission
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decode submission %s: %w", id, err)
		}
		if s.OwnerID != ownerID {
			return domain.ErrSubmissionNotFound
		}
		s.Description = description

		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode submission: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	return l.storeErr("update submission", err)
}

func (l *RedisSubmissionLog) Delete(ctx context.Context, id, ownerID string) error {
	if ownerID == "" {
		return domain.ErrSubmissionNotFound
	}
	s, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.OwnerID != ownerID {
		return domain.ErrSubmissionNotFound
	}

	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, l.recordKey(id))
		for _, k := range l.allIndexes(s) {
			pipe.ZRem(ctx, k, id)
		}
		return nil
	})
	return l.storeErr("delete submission", err)
}

// Purge apaga tudo sob o prefixo (override administrativo).
func (l *RedisSubmissionLog) Purge(ctx context.Context) error {
	return l.storeErr("purge submissions", deleteByPattern(ctx, l.rdb, l.prefix+":*"))
}

func (l *RedisSubmissionLog) storeErr(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrSubmissionNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}

// deleteByPattern varre com SCAN e apaga em lotes; chaves criadas durante a varredura podem sobrar.
func deleteByPattern(ctx context.Context, rdb *redis.Client, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
