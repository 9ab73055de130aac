package domain

import "context"

// GeoSource indica qual estratégia resolveu o país.
type GeoSource string

const (
	GeoSourceHeader     GeoSource = "header"
	GeoSourceDatabase   GeoSource = "database"
	GeoSourceRemoteAPI  GeoSource = "remote_api"
	GeoSourceUnresolved GeoSource = "unresolved"
)

// GeoQuery carrega o que as estratégias precisam para resolver um país.
//
// EdgeCountry vem junto porque a estratégia mais barata é o header já
// computado pela borda, que é por requisição e não por IP.
type GeoQuery struct {
	IP          string
	EdgeCountry string
}

// GeoVerdict é o resultado transitório de uma resolução de país.
type GeoVerdict struct {
	CountryCode string
	Source      GeoSource
}

// Resolved informa se a estratégia chegou a um país.
func (v GeoVerdict) Resolved() bool {
	return v.Source != GeoSourceUnresolved && v.CountryCode != ""
}

// Unresolved é o veredito de quem não conseguiu (ou não quis) responder.
func Unresolved() GeoVerdict {
	return GeoVerdict{Source: GeoSourceUnresolved}
}

// CountryResolver é uma estratégia da cadeia de resolução geográfica.
//
// Nunca retorna erro: falha de infraestrutura vira Unresolved e a cadeia
// tenta a próxima estratégia. Implementações que fazem I/O devem honrar o
// ctx e impor timeout curto próprio.
type CountryResolver interface {
	Country(ctx context.Context, q GeoQuery) GeoVerdict
}
