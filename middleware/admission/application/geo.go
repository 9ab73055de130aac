package application

import (
	"context"

	"admission-gateway/middleware/admission/domain"
)

// GeoService percorre a cadeia de estratégias de resolução de país.
//
// Cada estratégia é consultada apenas se a anterior foi inconclusiva; a
// primeira que resolver vence. Se todas se esgotarem, retorna Unresolved —
// a política do que fazer com isso (liberar ou recusar) é do Pipeline,
// não daqui.
type GeoService struct {
	Resolvers []domain.CountryResolver
}

func (s GeoService) Resolve(ctx context.Context, q domain.GeoQuery) domain.GeoVerdict {
	for _, r := range s.Resolvers {
		if r == nil {
			continue
		}
		if v := r.Country(ctx, q); v.Resolved() {
			return v
		}
	}
	return domain.Unresolved()
}
