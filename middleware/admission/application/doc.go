// Package application contém os casos de uso do controle de admissão.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Pipeline.Admit(ctx, rc) retorna um Verdict (allow/deny + status +
// motivo), GeoService.Resolve percorre a cadeia de estratégias de país.
package application
