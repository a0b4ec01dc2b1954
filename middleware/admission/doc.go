// Package admission fornece os adapters HTTP (net/http) do controle de
// admissão por quota diária, mais os middlewares auxiliares do pipeline
// (tamanho de corpo, concorrência, headers de segurança, CORS).
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (admitir/estornar/consultar) sem net/http
//   - infra: implementações concretas (Redis com Lua atômico, memória,
//     telemetria), detalhes de infraestrutura
//   - admission (este pacote): middlewares HTTP + extração de identidade +
//     tradução da decisão para status/headers/corpo JSON
//
// Fluxo da requisição protegida:
//
//  1. Extrai a identidade do cliente (XFF/X-Real-IP/RemoteAddr)
//  2. Chama a camada application para admitir (um incremento atômico no store)
//  3. Se rejeitado, responde 429 (quota) ou 503 (store degradado, fail-closed)
//  4. Se admitido, chama o handler protegido OBSERVANDO o resultado dele:
//     falha de servidor (>=500) gera o estorno compensatório da quota
//
// Variáveis de ambiente do binário (cmd/server) controlam o comportamento,
// como DAILY_RATE_LIMIT, GLOBAL_RATE_LIMIT, RATE_LIMIT_TIMEZONE e
// CONCURRENCY_MAX.
package admission
