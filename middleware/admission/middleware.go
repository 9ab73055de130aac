package admission

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
)

// Header da borda com o país já resolvido (Cloudflare: CF-IPCountry).
const edgeCountryHeader = "CF-IPCountry"

// TenantInfo é o que o chamador já extraiu do corpo da requisição.
// O pipeline em si nunca faz parse de payload.
type TenantInfo struct {
	TenantID            string
	ShopDomain          string
	ShopPermanentDomain string
}

// TenantFunc entrega o tenant da requisição (ex: lido de um context value
// preenchido por um middleware de parse anterior).
type TenantFunc func(r *http.Request) TenantInfo

type Options struct {
	Pipeline application.Pipeline
	Stats    domain.StatsStore
	TenantFn TenantFunc

	// TrustProxyHeaders habilita os headers de forwarding (CF-*, XFF etc).
	// Desligado, só o peer da conexão identifica o cliente.
	TrustProxyHeaders bool

	// Debug inclui o motivo da recusa no corpo JSON.
	Debug bool

	Logger *zap.Logger
}

// Middleware aplica o pipeline de admissão antes do próximo handler.
//
// Recusas são respondidas aqui (status + Retry-After + corpo JSON);
// requisições admitidas seguem adiante intactas.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := BuildRequestContext(r, opts.TenantFn, opts.TrustProxyHeaders)

			verdict := opts.Pipeline.Admit(r.Context(), rc)

			if opts.Stats != nil {
				// best-effort: erro de auditoria não derruba a requisição.
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     statsKey(rc, verdict),
					Allowed: verdict.Allowed,
					Reason:  verdict.Reason,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}

			if !verdict.Allowed {
				log.Warn("requisição recusada",
					zap.String("reason", string(verdict.Reason)),
					zap.Int("status", verdict.Status),
					zap.String("ip", rc.ClientIP),
					zap.String("tenant", rc.TenantID))
				writeVerdict(w, verdict, opts.Debug)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BuildRequestContext monta o snapshot que o pipeline avalia.
func BuildRequestContext(r *http.Request, tenantFn TenantFunc, trustProxies bool) domain.RequestContext {
	rc := domain.RequestContext{
		Method:             r.Method,
		EncryptedTransport: isEncryptedTransport(r, trustProxies),
		Origin:             r.Header.Get("Origin"),
		Referer:            r.Header.Get("Referer"),
		UserAgent:          r.Header.Get("User-Agent"),
		ClientIP:           RealClientIP(r, trustProxies),
	}

	if trustProxies {
		rc.EdgeCountry = r.Header.Get(edgeCountryHeader)
	}

	if tenantFn != nil {
		info := tenantFn(r)
		rc.TenantID = info.TenantID
		rc.ShopDomain = info.ShopDomain
		rc.ShopPermanentDomain = info.ShopPermanentDomain
	}

	return rc
}

// isEncryptedTransport detecta transporte cifrado: TLS direto, o protocolo
// encaminhado pelo proxy confiável, ou a porta padrão de HTTPS.
func isEncryptedTransport(r *http.Request, trustProxies bool) bool {
	if r.TLS != nil {
		return true
	}
	if trustProxies && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	if _, port, err := net.SplitHostPort(r.Host); err == nil && port == "443" {
		return true
	}
	return false
}

// statsKey escolhe a dimensão que explica o veredito: na recusa por tenant,
// a chave do tenant; em todo o resto, a do IP.
func statsKey(rc domain.RequestContext, v domain.Verdict) string {
	if v.Reason == domain.ReasonTenantRateLimited {
		return domain.TenantKey(rc.TenantID)
	}
	return domain.IPKey(rc.ClientIP)
}

func writeVerdict(w http.ResponseWriter, v domain.Verdict, debug bool) {
	if v.RetryAfter > 0 {
		w.Header().Set("Retry-After", formatInt(int(v.RetryAfter.Seconds())))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(v.Status)

	body := map[string]any{
		"ok":    false,
		"error": rejectionMessage(v),
	}
	if debug {
		body["reason"] = string(v.Reason)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// rejectionMessage mantém as mensagens externas genéricas; o detalhe fica
// no motivo (logs/modo debug).
func rejectionMessage(v domain.Verdict) string {
	switch v.Reason {
	case domain.ReasonMethodNotAllowed:
		return "Method not allowed"
	case domain.ReasonTransportInsecure:
		return "HTTPS required"
	case domain.ReasonNoOriginEvidence:
		return "Origin or Referer required"
	case domain.ReasonIPRateLimited, domain.ReasonTenantRateLimited:
		return "Too many requests"
	default:
		return "Access denied"
	}
}
