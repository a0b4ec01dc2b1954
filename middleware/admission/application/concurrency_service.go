package application

import (
	"context"
	"time"

	"codalyzer-backend/middleware/admission/domain"
)

// ConcurrencyService concentra a regra de aquisição/liberação de vagas para
// análises em voo, com timeout opcional, sem saber nada sobre HTTP.
//
// Ele protege o processo (e o provedor de análise) de um pico de requisições
// simultâneas; não substitui a quota diária, que é distribuída.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout.
//
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}
