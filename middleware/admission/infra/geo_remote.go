package infra

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"admission-gateway/middleware/admission/domain"
)

// RemoteAPIResolver é o último recurso da cadeia: consulta um serviço
// externo no estilo ipapi.co (`GET {base}/{ip}/country_code/` devolve o
// código em texto puro).
//
// Timeout curto para não segurar a requisição do cliente; falha de rede,
// timeout ou resposta estranha viram Unresolved, nunca erro. O budget
// (token bucket) protege a cota do serviço gratuito: estourou, a consulta é
// pulada sem bloquear.
type RemoteAPIResolver struct {
	client    *http.Client
	baseURL   string
	userAgent string
	budget    *rate.Limiter
}

type RemoteAPIOption func(*RemoteAPIResolver)

func WithRemoteTimeout(d time.Duration) RemoteAPIOption {
	return func(r *RemoteAPIResolver) { r.client.Timeout = d }
}

func WithRemoteUserAgent(ua string) RemoteAPIOption {
	return func(r *RemoteAPIResolver) { r.userAgent = ua }
}

// WithRemoteBudget limita as consultas de saída (ex: 1000/dia do plano
// gratuito ≈ 0.011 rps). budget nulo = sem limite.
func WithRemoteBudget(rps float64, burst int) RemoteAPIOption {
	return func(r *RemoteAPIResolver) { r.budget = rate.NewLimiter(rate.Limit(rps), burst) }
}

func NewRemoteAPIResolver(baseURL string, opts ...RemoteAPIOption) *RemoteAPIResolver {
	r := &RemoteAPIResolver{
		client:    &http.Client{Timeout: 2 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "admission-gateway/1.0",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Country implementa domain.CountryResolver.
func (r *RemoteAPIResolver) Country(ctx context.Context, q domain.GeoQuery) domain.GeoVerdict {
	if q.IP == "" || r.baseURL == "" {
		return domain.Unresolved()
	}
	if r.budget != nil && !r.budget.Allow() {
		return domain.Unresolved()
	}

	endpoint := r.baseURL + "/" + url.PathEscape(q.IP) + "/country_code/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Unresolved()
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.Unresolved()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.Unresolved()
	}

	// o corpo é só o código do país; o limite evita engolir resposta de
	// proxy/captive portal gigante por engano.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16))
	if err != nil {
		return domain.Unresolved()
	}

	cc := strings.ToUpper(strings.TrimSpace(string(body)))
	if len(cc) != 2 {
		return domain.Unresolved()
	}

	return domain.GeoVerdict{CountryCode: cc, Source: domain.GeoSourceRemoteAPI}
}
