// Package analysis implementa o provedor de análise de complexidade de
// código (o colaborador "caro" protegido pelo controle de admissão).
//
// O restante do sistema só observa o resultado final de Analyze: sucesso,
// erro de entrada do chamador (ErrInvalidInput — cobrado, sem estorno) ou
// falha de servidor (ErrTimeout/ErrUpstream/ErrBadModelOutput — elegível a
// estorno de quota). Retry e backoff contra a API são inteiramente internos
// a este pacote; ninguém re-tenta decisões de admissão.
package analysis
