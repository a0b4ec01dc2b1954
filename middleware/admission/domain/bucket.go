package domain

import "time"

// Resolver deriva o bucket corrente (a janela diária de contagem) a partir do
// relógio e de um fuso horário configurável.
//
// É função pura do instante recebido: processos independentes que compartilham
// o mesmo relógio derivam o mesmo BucketID. É isso que permite a uma frota
// stateless compartilhar contadores no store sem nenhuma coordenação extra.
type Resolver struct {
	loc *time.Location
}

// NewResolver cria um Resolver para o fuso IANA informado ("" vira UTC).
func NewResolver(tz string) (Resolver, error) {
	if tz == "" {
		return Resolver{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Resolver{}, err
	}
	return Resolver{loc: loc}, nil
}

// BucketID retorna o identificador do bucket diário (YYYYMMDD) no fuso
// configurado. A fronteira é a meia-noite local, não a meia-noite UTC.
func (r Resolver) BucketID(now time.Time) string {
	return now.In(r.location()).Format("20060102")
}

// NextBoundary retorna o instante (em UTC) em que o bucket corrente termina:
// a meia-noite do dia seguinte no fuso configurado.
func (r Resolver) NextBoundary(now time.Time) time.Time {
	local := now.In(r.location())
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, r.location()).UTC()
}

// TTL retorna a vida restante do bucket mais um padding configurável para
// tolerar skew de relógio entre instâncias e o servidor do store.
func (r Resolver) TTL(now time.Time, padding time.Duration) time.Duration {
	return r.NextBoundary(now).Sub(now) + padding
}

func (r Resolver) location() *time.Location {
	if r.loc == nil {
		return time.UTC
	}
	return r.loc
}
