package application

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"admission-gateway/middleware/admission/domain"
)

// Limits agrega os limites das duas dimensões de rate limit.
type Limits struct {
	IPLimit      int
	IPWindow     time.Duration
	TenantLimit  int
	TenantWindow time.Duration
}

// DefaultLimits retorna os limites da referência: 60 req/min por IP e
// 120 req/min por tenant (limite mais frouxo, a loja agrega vários clientes).
func DefaultLimits() Limits {
	return Limits{
		IPLimit:      60,
		IPWindow:     60 * time.Second,
		TenantLimit:  120,
		TenantWindow: 60 * time.Second,
	}
}

// Policy concentra as decisões reversíveis do pipeline.
type Policy struct {
	// WriteMethod é o método de escrita aceito. Vazio = POST.
	WriteMethod string

	// AllowedCountry é o país permitido (ISO 3166-1 alfa-2).
	// Vazio desliga o estágio geográfico.
	AllowedCountry string

	// GeoFailClosed inverte a política quando nenhuma estratégia resolve o
	// país: o padrão (false) libera a requisição — disponibilidade acima de
	// rigor geográfico, como no sistema de referência.
	GeoFailClosed bool

	// AllowedShopDomains é a whitelist de domínios de loja. Vazia desliga
	// o estágio.
	AllowedShopDomains []string
}

// Pipeline concentra a regra de admissão: estágios em ordem fixa,
// curto-circuito na primeira falha.
//
// Ele não sabe nada sobre HTTP (headers/escrita de resposta), apenas recebe
// o RequestContext já montado e retorna um Verdict.
type Pipeline struct {
	Counters   domain.CounterStore
	Geo        GeoService
	Classifier domain.UserAgentClassifier
	Policy     Policy
	Limits     Limits
	Logger     *zap.Logger
}

// Admit executa os estágios em ordem estrita. Recusas antes dos contadores
// não incrementam contador nenhum; a requisição que estoura o limite é
// contada mesmo assim.
//
// Falha de infraestrutura (contador inacessível, geo inconclusivo) nunca
// vira erro para o chamador: cada uma degrada para a política nomeada.
func (p Pipeline) Admit(ctx context.Context, rc domain.RequestContext) domain.Verdict {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// 1. Só o método de escrita (preflight OPTIONS é tratado antes do pipeline).
	method := p.Policy.WriteMethod
	if method == "" {
		method = "POST"
	}
	if rc.Method != method {
		return reject(405, domain.ReasonMethodNotAllowed)
	}

	// 2. Transporte cifrado.
	if !rc.EncryptedTransport {
		return reject(403, domain.ReasonTransportInsecure)
	}

	// 3. Origin ou Referer — fetch de browser os envia; chamada crua de
	// script, não. Sinal fraco (ambos forjáveis), um entre vários.
	if rc.Origin == "" && rc.Referer == "" {
		return reject(403, domain.ReasonNoOriginEvidence)
	}

	// 4. Whitelist de domínios de loja, quando configurada.
	if len(p.Policy.AllowedShopDomains) > 0 && !p.shopAllowed(rc) {
		return reject(403, domain.ReasonShopNotAllowed)
	}

	// 5. Classificação do User-Agent.
	if p.classifier().IsAutomated(rc.UserAgent) {
		return reject(403, domain.ReasonBotDetected)
	}

	// 6. Restrição geográfica.
	if allowed := p.Policy.AllowedCountry; allowed != "" {
		v := p.Geo.Resolve(ctx, domain.GeoQuery{IP: rc.ClientIP, EdgeCountry: rc.EdgeCountry})
		switch {
		case v.Resolved():
			if !strings.EqualFold(v.CountryCode, allowed) {
				return reject(403, domain.ReasonGeoRestricted)
			}
		case p.Policy.GeoFailClosed:
			return reject(403, domain.ReasonGeoRestricted)
		default:
			log.Debug("resolução de país inconclusiva, liberando",
				zap.String("ip", rc.ClientIP))
		}
	}

	// 7 e 8. Contadores de janela fixa: por IP e, se houver, por tenant.
	lim := p.limits()
	if ok := p.increment(ctx, log, domain.IPKey(rc.ClientIP), lim.IPLimit, lim.IPWindow); !ok {
		return domain.Verdict{
			Allowed:    false,
			Status:     429,
			Reason:     domain.ReasonIPRateLimited,
			RetryAfter: lim.IPWindow,
		}
	}
	if rc.TenantID != "" {
		if ok := p.increment(ctx, log, domain.TenantKey(rc.TenantID), lim.TenantLimit, lim.TenantWindow); !ok {
			return domain.Verdict{
				Allowed:    false,
				Status:     429,
				Reason:     domain.ReasonTenantRateLimited,
				RetryAfter: lim.TenantWindow,
			}
		}
	}

	return domain.Verdict{Allowed: true, Status: 200, Reason: domain.ReasonOK}
}

// increment delega ao CounterStore com política fail open: sem store ou
// store indisponível, a requisição passa (indisponibilidade de storage não
// pode negar todo o tráfego).
func (p Pipeline) increment(ctx context.Context, log *zap.Logger, key string, limit int, window time.Duration) bool {
	if p.Counters == nil {
		return true
	}
	within, err := p.Counters.Increment(ctx, key, limit, window)
	if err != nil {
		log.Warn("contador indisponível, liberando",
			zap.String("key", key),
			zap.Error(err))
		return true
	}
	return within
}

func (p Pipeline) shopAllowed(rc domain.RequestContext) bool {
	for _, d := range p.Policy.AllowedShopDomains {
		if d == "" {
			continue
		}
		if strings.EqualFold(d, rc.ShopDomain) || strings.EqualFold(d, rc.ShopPermanentDomain) {
			return true
		}
	}
	return false
}

func (p Pipeline) classifier() domain.UserAgentClassifier {
	if p.Classifier.BotSignatures == nil && p.Classifier.BrowserTokens == nil {
		return domain.DefaultUserAgentClassifier()
	}
	return p.Classifier
}

func (p Pipeline) limits() Limits {
	lim := p.Limits
	def := DefaultLimits()
	if lim.IPLimit <= 0 {
		lim.IPLimit = def.IPLimit
	}
	if lim.IPWindow <= 0 {
		lim.IPWindow = def.IPWindow
	}
	if lim.TenantLimit <= 0 {
		lim.TenantLimit = def.TenantLimit
	}
	if lim.TenantWindow <= 0 {
		lim.TenantWindow = def.TenantWindow
	}
	return lim
}

func reject(status int, reason domain.Reason) domain.Verdict {
	return domain.Verdict{Allowed: false, Status: status, Reason: reason}
}
