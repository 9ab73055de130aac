package infra

import (
	"context"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"admission-gateway/middleware/admission/domain"
)

// MaxMindResolver resolve o país numa base GeoLite2/GeoIP2 local (.mmdb).
// Falhas de lookup (registro ausente, IP fora da base) são engolidas e
// viram Unresolved — a cadeia segue para a próxima estratégia.
type MaxMindResolver struct {
	reader *geoip2.Reader
}

// NewMaxMindResolver abre a base. O erro aqui é de boot (arquivo ausente ou
// corrompido); depois de aberto, o resolver nunca erra, só fica inconclusivo.
func NewMaxMindResolver(path string) (*MaxMindResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MaxMindResolver{reader: reader}, nil
}

// Country implementa domain.CountryResolver.
func (m *MaxMindResolver) Country(_ context.Context, q domain.GeoQuery) domain.GeoVerdict {
	ip := net.ParseIP(q.IP)
	if ip == nil {
		return domain.Unresolved()
	}

	record, err := m.reader.Country(ip)
	if err != nil || record == nil || record.Country.IsoCode == "" {
		return domain.Unresolved()
	}

	return domain.GeoVerdict{
		CountryCode: strings.ToUpper(record.Country.IsoCode),
		Source:      domain.GeoSourceDatabase,
	}
}

// Close libera o mmap da base.
func (m *MaxMindResolver) Close() error {
	return m.reader.Close()
}
