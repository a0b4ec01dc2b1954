package infra

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"sync"
	"time"

	"codalyzer-backend/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

//go:embed admit.lua
var admitScript string

//go:embed refund.lua
var refundScript string

// RedisCounterStore implementa domain.CounterStore sobre Redis.
//
// Admit e Refund rodam como scripts Lua no servidor (redis.Script cuida de
// EVALSHA/NOSCRIPT): uma única ida ao servidor por operação, sem janela de
// check-then-act. O pool de conexões do client é compartilhado por todas as
// requisições concorrentes do processo.
type RedisCounterStore struct {
	rdb    *redis.Client
	admit  *redis.Script
	refund *redis.Script

	// timeout limita cada operação individual contra o store, separado do
	// timeout do provedor de análise: um store degradado não pode segurar a
	// requisição além disso.
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

type RedisStoreOption func(*RedisCounterStore)

// WithOpTimeout define o teto por operação (padrão 2s).
func WithOpTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisCounterStore) { s.timeout = d }
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisCounterStore {
	s := &RedisCounterStore{
		rdb:     rdb,
		admit:   redis.NewScript(admitScript),
		refund:  redis.NewScript(refundScript),
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read faz leituras simples dos dois contadores (chave ausente conta zero).
func (s *RedisCounterStore) Read(ctx context.Context, clientKey, globalKey string) (int64, int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	vals, err := s.rdb.MGet(ctx, clientKey, globalKey).Result()
	if err != nil {
		return 0, 0, storeErr("read", err)
	}
	if len(vals) != 2 {
		return 0, 0, storeErr("read", fmt.Errorf("expected 2 values, got %d", len(vals)))
	}
	return toCount(vals[0]), toCount(vals[1]), nil
}

// Admit incrementa atomicamente os dois contadores; a expiração é definida
// apenas na criação da chave, com o ttl informado.
func (s *RedisCounterStore) Admit(ctx context.Context, clientKey, globalKey string, ttl time.Duration) (int64, int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.admit.Run(ctx, s.rdb, []string{clientKey, globalKey}, int64(ttl.Seconds())).Result()
	if err != nil {
		return 0, 0, storeErr("admit", err)
	}
	return splitPair("admit", res)
}

// Refund decrementa atomicamente os contadores existentes, com piso em zero.
func (s *RedisCounterStore) Refund(ctx context.Context, clientKey, globalKey string) (int64, int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.refund.Run(ctx, s.rdb, []string{clientKey, globalKey}).Result()
	if err != nil {
		return 0, 0, storeErr("refund", err)
	}
	return splitPair("refund", res)
}

// Ping verifica a conectividade com o store (usado pelo health check).
func (s *RedisCounterStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

// Close libera as conexões do pool. Idempotente.
func (s *RedisCounterStore) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.rdb.Close() })
	return s.closeErr
}

func (s *RedisCounterStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// storeErr embrulha qualquer falha de transporte como ErrStoreUnavailable,
// que é o sinal de fail-closed para o controller.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

func splitPair(op string, res interface{}) (int64, int64, error) {
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, storeErr(op, fmt.Errorf("malformed script reply: %v", res))
	}
	a, okA := vals[0].(int64)
	b, okB := vals[1].(int64)
	if !okA || !okB {
		return 0, 0, storeErr(op, fmt.Errorf("non-integer script reply: %v", res))
	}
	return a, b, nil
}

func toCount(v interface{}) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case int64:
		return t
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
