package domain

import (
	"context"
	"time"
)

// Outcome enumera os resultados observáveis de uma passagem pelo controle de
// admissão (incluindo os eventos de compensação).
type Outcome string

const (
	OutcomeAdmitted       Outcome = "admitted"
	OutcomeRejectedClient Outcome = "rejected_client"
	OutcomeRejectedGlobal Outcome = "rejected_global"
	OutcomeDegraded       Outcome = "degraded"
	OutcomeStoreError     Outcome = "store_error"
	OutcomeRefunded       Outcome = "refunded"
	OutcomeRefundFailed   Outcome = "refund_failed"
)

// Event representa um evento de decisão do controle de admissão.
//
// Observação: cuidado com cardinalidade — implementações não devem indexar
// por ClientID sem controle (explodiria o número de séries em uma base como
// Prometheus). O campo existe para logging/diagnóstico, não para rotular.
type Event struct {
	ClientID string
	Outcome  Outcome
	At       time.Time
}

// Recorder é a estratégia de registro das estatísticas locais do processo.
//
// É observabilidade apenas, nunca autoritativo: erro aqui é best-effort e não
// pode derrubar a requisição.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}
