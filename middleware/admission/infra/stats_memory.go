package infra

import (
	"context"
	"sync"

	"codalyzer-backend/middleware/admission/domain"
)

// MemoryRecorder é uma implementação simples em memória de domain.Recorder.
// Útil para testes e desenvolvimento.
type MemoryRecorder struct {
	mu        sync.Mutex
	byOutcome map[domain.Outcome]int64
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{byOutcome: make(map[domain.Outcome]int64)}
}

func (s *MemoryRecorder) Record(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOutcome[ev.Outcome]++
	return nil
}

// Count retorna o total registrado para um outcome.
func (s *MemoryRecorder) Count(o domain.Outcome) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byOutcome[o]
}
