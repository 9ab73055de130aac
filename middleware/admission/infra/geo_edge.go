package infra

import (
	"context"
	"strings"

	"admission-gateway/middleware/admission/domain"
)

// EdgeHeaderResolver confia no país já computado pela borda (ex: Cloudflare
// preenche CF-IPCountry em toda requisição). Estratégia mais barata e a
// primeira da cadeia.
type EdgeHeaderResolver struct{}

// Country implementa domain.CountryResolver.
//
// "XX" é o valor que a Cloudflare usa para país desconhecido; "T1" para a
// rede Tor. Nenhum dos dois é um país resolvido.
func (EdgeHeaderResolver) Country(_ context.Context, q domain.GeoQuery) domain.GeoVerdict {
	cc := strings.ToUpper(strings.TrimSpace(q.EdgeCountry))
	if cc == "" || cc == "XX" || cc == "T1" {
		return domain.Unresolved()
	}
	return domain.GeoVerdict{CountryCode: cc, Source: domain.GeoSourceHeader}
}
