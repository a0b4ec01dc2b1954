package infra

import (
	"context"
	"sync"
	"time"
)

type memCounter struct {
	value     int64
	expiresAt time.Time
}

// MemoryCounterStore é uma implementação em memória de domain.CounterStore
// com a mesma semântica atômica dos scripts Lua (mutex no lugar do servidor).
//
// Útil para testes e desenvolvimento. O estado é local ao processo, então não
// serve para impor um limite global entre réplicas.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*memCounter

	now func() time.Time
}

type MemoryStoreOption func(*MemoryCounterStore)

// WithClock injeta o relógio usado para expiração (testes de rollover).
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryCounterStore) { s.now = now }
}

func NewMemoryCounterStore(opts ...MemoryStoreOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		entries: make(map[string]*memCounter),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryCounterStore) Read(_ context.Context, clientKey, globalKey string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value(clientKey), s.value(globalKey), nil
}

func (s *MemoryCounterStore) Admit(_ context.Context, clientKey, globalKey string, ttl time.Duration) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incr(clientKey, ttl), s.incr(globalKey, ttl), nil
}

func (s *MemoryCounterStore) Refund(_ context.Context, clientKey, globalKey string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decr(clientKey), s.decr(globalKey), nil
}

func (s *MemoryCounterStore) Close() error { return nil }

// incr replica o admit.lua: expiração definida uma única vez, na criação.
func (s *MemoryCounterStore) incr(key string, ttl time.Duration) int64 {
	ent, ok := s.live(key)
	if !ok {
		ent = &memCounter{expiresAt: s.now().Add(ttl)}
		s.entries[key] = ent
	}
	ent.value++
	return ent.value
}

// decr replica o refund.lua: só decrementa chave existente, piso em zero,
// expiração intocada.
func (s *MemoryCounterStore) decr(key string) int64 {
	ent, ok := s.live(key)
	if !ok {
		return 0
	}
	if ent.value > 0 {
		ent.value--
	}
	return ent.value
}

func (s *MemoryCounterStore) value(key string) int64 {
	ent, ok := s.live(key)
	if !ok {
		return 0
	}
	return ent.value
}

// live retorna a entrada se ela existe e não expirou; entradas vencidas são
// removidas na hora (equivalente à expiração do lado do servidor).
func (s *MemoryCounterStore) live(key string) (*memCounter, bool) {
	ent, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !ent.expiresAt.After(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return ent, true
}
