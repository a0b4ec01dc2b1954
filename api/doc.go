// Package api expõe os handlers HTTP públicos do serviço: análise, status de
// quota, health, compartilhamento de resultados e raiz.
//
// O controle de admissão NÃO mora aqui: ele é um middleware
// (middleware/admission) aplicado em volta do handler de análise no wiring do
// binário. Os handlers apenas traduzem os erros do provedor para classes HTTP
// — e é essa classe (>=500 ou não) que decide o estorno de quota lá em cima.
package api
