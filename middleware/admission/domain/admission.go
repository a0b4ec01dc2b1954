package domain

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable indica falha de transporte ou timeout no counter store.
//
// Quem recebe esse erro deve falhar fechado: um store configurado porém
// quebrado nunca pode ser tratado como "sem limite".
var ErrStoreUnavailable = errors.New("counter store unavailable")

// Scope é o eixo ao longo do qual uma quota é medida.
type Scope string

const (
	ScopeClient Scope = "client"
	ScopeGlobal Scope = "global"
)

// Quotas são os tetos diários configurados. Ambos devem ser > 0.
type Quotas struct {
	Client int64
	Global int64
}

// Ticket identifica a cobrança a ser estornada: as chaves exatas do bucket em
// que o admit incrementou. Guardar as chaves (e não recalculá-las) garante que
// um rollover de bucket entre o admit e o refund não estorne o bucket errado.
type Ticket struct {
	ClientKey string
	GlobalKey string
}

// Decision é o resultado de uma tentativa de admissão. Produzida a cada
// requisição e nunca persistida.
type Decision struct {
	Admitted bool
	// Scope é o escopo da rejeição quando Admitted=false.
	Scope Scope
	// Unlimited indica o modo pass-through (limitação não configurada).
	Unlimited bool

	ClientCount int64
	GlobalCount int64
	ClientLimit int64
	GlobalLimit int64
	ResetAt     time.Time

	Ticket Ticket
}

// ClientRemaining é o saldo do cliente após esta decisão, nunca negativo.
func (d Decision) ClientRemaining() int64 {
	if rem := d.ClientLimit - d.ClientCount; rem > 0 {
		return rem
	}
	return 0
}

// GlobalRemaining é o saldo global após esta decisão, nunca negativo.
func (d Decision) GlobalRemaining() int64 {
	if rem := d.GlobalLimit - d.GlobalCount; rem > 0 {
		return rem
	}
	return 0
}

// Status é o snapshot consultivo devolvido pelo endpoint de inicialização.
type Status struct {
	ClientRemaining int64
	ClientLimit     int64
	GlobalRemaining int64
	GlobalLimit     int64
	ResetAt         time.Time
}

// CounterStore é o contrato com o armazenamento compartilhado de contadores.
//
// Cada operação é uma única ida ao servidor. Admit e Refund precisam ser
// transações atômicas do lado do store: dois incrementos independentes
// deixariam, sob corrida, um contador durável e o outro volátil, corrompendo
// a contabilidade do bucket.
//
// Semântica exigida das implementações:
//
//   - Admit incrementa as duas chaves e, somente quando o incremento criou a
//     chave, define sua expiração com o ttl informado. Retorna os dois valores
//     pós-incremento.
//   - Refund decrementa cada chave que existir, com piso em zero. Nunca cria
//     chave e nunca estende expiração.
//   - Read retorna os valores correntes (zero para chave ausente).
//
// Erros de transporte/timeout devem ser reportados embrulhando
// ErrStoreUnavailable.
type CounterStore interface {
	Read(ctx context.Context, clientKey, globalKey string) (client, global int64, err error)
	Admit(ctx context.Context, clientKey, globalKey string, ttl time.Duration) (client, global int64, err error)
	Refund(ctx context.Context, clientKey, globalKey string) (client, global int64, err error)
	// Close libera recursos (pool de conexões). Deve ser idempotente.
	Close() error
}
