// Package application contém os casos de uso do controle de admissão.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Controller.Admit(ctx, clientID) retorna uma Decision (admitido,
// rejeitado por escopo, ou erro de store para fail-closed) e o Ticket usado
// por Controller.Refund para o estorno compensatório.
package application
