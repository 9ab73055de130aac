package domain

// Camada de domínio do controle de admissão.
//
// RequestContext é o retrato imutável de uma requisição; Verdict é o resultado
// da avaliação. Ambos vivem apenas durante uma invocação do pipeline.

import "time"

// Reason identifica o motivo de um veredito (aceito ou recusado).
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonMethodNotAllowed  Reason = "method_not_allowed"
	ReasonTransportInsecure Reason = "transport_not_secure"
	ReasonNoOriginEvidence  Reason = "missing_origin_evidence"
	ReasonShopNotAllowed    Reason = "shop_not_allowed"
	ReasonBotDetected       Reason = "bot_detected"
	ReasonGeoRestricted     Reason = "geo_restricted"
	ReasonIPRateLimited     Reason = "ip_rate_limited"
	ReasonTenantRateLimited Reason = "tenant_rate_limited"
)

// RequestContext é o snapshot por requisição que o pipeline avalia.
//
// Ele é montado uma única vez pelo adapter HTTP e nunca é persistido.
// Campos opcionais ficam vazios ("") quando o header/corpo não os trouxe.
type RequestContext struct {
	Method             string
	EncryptedTransport bool

	Origin    string
	Referer   string
	UserAgent string

	// EdgeCountry é o país informado pelo header da borda (ex: CF-IPCountry).
	// Vazio quando a borda não informou ou quando proxies não são confiados.
	EdgeCountry string

	// ClientIP é o melhor palpite do IP real do cliente, já resolvido
	// pela cadeia de headers de forwarding.
	ClientIP string

	// TenantID é a segunda dimensão de rate limit (ex: jet_id da loja).
	TenantID string

	ShopDomain          string
	ShopPermanentDomain string
}

// Verdict é o resultado de uma passagem pelo pipeline.
//
// RetryAfter só é preenchido em recusas por rate limit.
type Verdict struct {
	Allowed    bool
	Status     int
	Reason     Reason
	RetryAfter time.Duration
}
