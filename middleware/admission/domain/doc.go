// Package domain define contratos e tipos de domínio para o controle de
// admissão (quotas diárias por cliente e global).
//
// Este pacote não depende de net/http, de Redis nem de implementações
// concretas. A intenção é permitir testes de unidade puros e desacoplar a
// regra de negócio (quando admitir, quando estornar) dos detalhes de
// infraestrutura.
package domain
