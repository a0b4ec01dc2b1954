package application

import (
	"context"
	"time"

	"codalyzer-backend/middleware/admission/domain"

	"go.uber.org/zap"
)

// Controller concentra a máquina de estados da admissão.
//
// Ele é stateless entre requisições: toda a contagem vive no CounterStore e a
// concorrência é resolvida inteiramente pelas transações atômicas do store,
// não por lock em processo. O Controller não sabe nada sobre HTTP — recebe a
// identidade do cliente e devolve uma decisão.
//
// Política de falha (deliberada, não simétrica):
//   - Configured=false: pass-through. O operador optou por não limitar.
//   - Configured=true e store nulo ou inacessível: rejeita (fail-closed).
type Controller struct {
	// Configured indica se o operador ligou a limitação de quota.
	Configured bool
	// Store é o contador compartilhado. Pode ser nulo mesmo com
	// Configured=true (store quebrado na inicialização): nesse caso toda
	// admissão degrada para rejeição.
	Store    domain.CounterStore
	Scheme   domain.KeyScheme
	Resolver domain.Resolver
	Quotas   domain.Quotas
	// TTLPadding estende a expiração dos contadores além do fim nominal do
	// bucket, tolerando skew de relógio.
	TTLPadding time.Duration

	Stats domain.Recorder
	Log   *zap.Logger

	// Now permite injetar relógio em testes. Nulo usa time.Now.
	Now func() time.Time
}

// Admit executa uma tentativa de admissão para o cliente.
//
// Retorna erro (embrulhando domain.ErrStoreUnavailable) somente no caminho
// degradado; qualquer outra saída é expressa na Decision. A rejeição por
// quota NÃO estorna o incremento: a própria tentativa consome orçamento —
// só falha de execução do downstream gera estorno (ver Refund).
func (c *Controller) Admit(ctx context.Context, clientID string) (domain.Decision, error) {
	now := c.now()
	dec := domain.Decision{
		ClientLimit: c.Quotas.Client,
		GlobalLimit: c.Quotas.Global,
		ResetAt:     c.Resolver.NextBoundary(now),
	}

	if !c.Configured {
		dec.Admitted = true
		dec.Unlimited = true
		return dec, nil
	}

	if c.Store == nil {
		c.record(ctx, clientID, domain.OutcomeDegraded, now)
		return domain.Decision{}, domain.ErrStoreUnavailable
	}

	bucket := c.Resolver.BucketID(now)
	ticket := domain.Ticket{
		ClientKey: c.Scheme.ClientKey(clientID, bucket),
		GlobalKey: c.Scheme.GlobalKey(bucket),
	}

	clientCount, globalCount, err := c.Store.Admit(
		ctx, ticket.ClientKey, ticket.GlobalKey, c.Resolver.TTL(now, c.TTLPadding))
	if err != nil {
		c.record(ctx, clientID, domain.OutcomeStoreError, now)
		c.record(ctx, clientID, domain.OutcomeDegraded, now)
		c.logger().Error("counter store admit failed",
			zap.String("client", clientID), zap.Error(err))
		return domain.Decision{}, err
	}

	dec.ClientCount = clientCount
	dec.GlobalCount = globalCount
	dec.Ticket = ticket

	// Comparação estrita: a requisição N exatamente no limite N é admitida;
	// a N+1 é rejeitada. Os dois escopos são avaliados de forma independente
	// e o escopo de cliente é reportado primeiro quando ambos estouram.
	switch {
	case clientCount > c.Quotas.Client:
		dec.Scope = domain.ScopeClient
		c.record(ctx, clientID, domain.OutcomeRejectedClient, now)
		c.logger().Warn("client quota exceeded",
			zap.String("client", clientID),
			zap.Int64("count", clientCount),
			zap.Int64("limit", c.Quotas.Client))
	case globalCount > c.Quotas.Global:
		dec.Scope = domain.ScopeGlobal
		c.record(ctx, clientID, domain.OutcomeRejectedGlobal, now)
		c.logger().Warn("global quota exceeded",
			zap.Int64("count", globalCount),
			zap.Int64("limit", c.Quotas.Global))
	default:
		dec.Admitted = true
		c.record(ctx, clientID, domain.OutcomeAdmitted, now)
	}
	return dec, nil
}

// Refund devolve uma unidade de quota aos dois contadores do ticket.
//
// É a compensação emitida quando a operação protegida falhou por culpa do
// servidor: a falha de infraestrutura não pode custar quota do usuário.
// Best-effort por contrato: falha aqui é logada e contada, nunca propaga nem
// muda a resposta que já está sendo devolvida ao chamador.
func (c *Controller) Refund(ctx context.Context, clientID string, t domain.Ticket) {
	if !c.Configured || c.Store == nil || t.ClientKey == "" {
		return
	}
	now := c.now()
	clientCount, _, err := c.Store.Refund(ctx, t.ClientKey, t.GlobalKey)
	if err != nil {
		c.record(ctx, clientID, domain.OutcomeRefundFailed, now)
		c.logger().Error("quota refund failed",
			zap.String("client", clientID), zap.Error(err))
		return
	}
	c.record(ctx, clientID, domain.OutcomeRefunded, now)
	c.logger().Info("quota refunded after downstream failure",
		zap.String("client", clientID), zap.Int64("client_count", clientCount))
}

// Status calcula o saldo remanescente para o endpoint consultivo.
//
// Em degradação (store configurado porém inacessível) retorna zeros em vez de
// erro: o endpoint é informativo e nunca reporta disponibilidade inventada.
func (c *Controller) Status(ctx context.Context, clientID string) domain.Status {
	now := c.now()
	st := domain.Status{
		ClientLimit: c.Quotas.Client,
		GlobalLimit: c.Quotas.Global,
		ResetAt:     c.Resolver.NextBoundary(now),
	}

	if !c.Configured {
		st.ClientRemaining = c.Quotas.Client
		st.GlobalRemaining = c.Quotas.Global
		return st
	}
	if c.Store == nil {
		return st
	}

	bucket := c.Resolver.BucketID(now)
	clientCount, globalCount, err := c.Store.Read(
		ctx, c.Scheme.ClientKey(clientID, bucket), c.Scheme.GlobalKey(bucket))
	if err != nil {
		c.record(ctx, clientID, domain.OutcomeStoreError, now)
		c.logger().Error("counter store read failed", zap.Error(err))
		return st
	}

	if rem := c.Quotas.Client - clientCount; rem > 0 {
		st.ClientRemaining = rem
	}
	if rem := c.Quotas.Global - globalCount; rem > 0 {
		st.GlobalRemaining = rem
	}
	return st
}

func (c *Controller) record(ctx context.Context, clientID string, o domain.Outcome, at time.Time) {
	if c.Stats == nil {
		return
	}
	_ = c.Stats.Record(ctx, domain.Event{ClientID: clientID, Outcome: o, At: at})
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}
