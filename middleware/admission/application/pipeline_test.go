package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// fakeCounter registra chamadas e responde por chave.
type fakeCounter struct {
	calls  []string
	counts map[string]int
	limit  map[string]int
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int{}, limit: map[string]int{}}
}

func (f *fakeCounter) Increment(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	f.calls = append(f.calls, key)
	if f.err != nil {
		return false, f.err
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}

type fixedResolver struct {
	verdict domain.GeoVerdict
}

func (r fixedResolver) Country(context.Context, domain.GeoQuery) domain.GeoVerdict {
	return r.verdict
}

func browserContext() domain.RequestContext {
	return domain.RequestContext{
		Method:             "POST",
		EncryptedTransport: true,
		Origin:             "https://shop.example",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0",
		EdgeCountry:        "BG",
		ClientIP:           "203.0.113.7",
		TenantID:           "loja-1",
	}
}

func bgPipeline(counter domain.CounterStore) Pipeline {
	return Pipeline{
		Counters: counter,
		Geo:      GeoService{Resolvers: []domain.CountryResolver{fixedResolver{domain.GeoVerdict{CountryCode: "BG", Source: domain.GeoSourceHeader}}}},
		Policy:   Policy{AllowedCountry: "BG"},
	}
}

func TestPipeline_AllowsLegitimateRequest(t *testing.T) {
	p := bgPipeline(newFakeCounter())

	v := p.Admit(context.Background(), browserContext())
	if !v.Allowed {
		t.Fatalf("expected allowed, got reason %q", v.Reason)
	}
	if v.Status != 200 {
		t.Fatalf("expected status 200, got %d", v.Status)
	}
	if v.Reason != domain.ReasonOK {
		t.Fatalf("expected reason ok, got %q", v.Reason)
	}
}

func TestPipeline_RejectsWrongMethod(t *testing.T) {
	counter := newFakeCounter()
	p := bgPipeline(counter)

	rc := browserContext()
	rc.Method = "GET"

	v := p.Admit(context.Background(), rc)
	if v.Allowed || v.Status != 405 {
		t.Fatalf("expected 405, got allowed=%v status=%d", v.Allowed, v.Status)
	}
	if len(counter.calls) != 0 {
		t.Fatalf("expected no counter calls, got %d", len(counter.calls))
	}
}

func TestPipeline_RejectsInsecureTransportWithoutCounting(t *testing.T) {
	counter := newFakeCounter()
	p := bgPipeline(counter)

	rc := browserContext()
	rc.EncryptedTransport = false

	v := p.Admit(context.Background(), rc)
	if v.Allowed || v.Status != 403 || v.Reason != domain.ReasonTransportInsecure {
		t.Fatalf("expected 403 transport_not_secure, got %+v", v)
	}
	if len(counter.calls) != 0 {
		t.Fatalf("expected counters untouched, got calls %v", counter.calls)
	}
}

func TestPipeline_RejectsMissingOriginEvidence(t *testing.T) {
	p := bgPipeline(newFakeCounter())

	rc := browserContext()
	rc.Origin = ""
	rc.Referer = ""

	v := p.Admit(context.Background(), rc)
	if v.Allowed || v.Reason != domain.ReasonNoOriginEvidence {
		t.Fatalf("expected missing_origin_evidence, got %+v", v)
	}
}

func TestPipeline_RefererAloneIsEnoughEvidence(t *testing.T) {
	p := bgPipeline(newFakeCounter())

	rc := browserContext()
	rc.Origin = ""
	rc.Referer = "https://shop.example/produto/1"

	if v := p.Admit(context.Background(), rc); !v.Allowed {
		t.Fatalf("expected allowed with referer only, got %+v", v)
	}
}

func TestPipeline_RejectsBotUserAgent(t *testing.T) {
	p := bgPipeline(newFakeCounter())

	rc := browserContext()
	rc.UserAgent = "curl/8.0"

	v := p.Admit(context.Background(), rc)
	if v.Allowed || v.Reason != domain.ReasonBotDetected {
		t.Fatalf("expected bot_detected, got %+v", v)
	}
}

func TestPipeline_RejectsOtherCountry(t *testing.T) {
	p := bgPipeline(newFakeCounter())
	p.Geo = GeoService{Resolvers: []domain.CountryResolver{
		fixedResolver{domain.GeoVerdict{CountryCode: "US", Source: domain.GeoSourceDatabase}},
	}}

	v := p.Admit(context.Background(), browserContext())
	if v.Allowed || v.Reason != domain.ReasonGeoRestricted {
		t.Fatalf("expected geo_restricted, got %+v", v)
	}
}

func TestPipeline_GeoInconclusiveFailsOpenByDefault(t *testing.T) {
	p := bgPipeline(newFakeCounter())
	p.Geo = GeoService{}

	if v := p.Admit(context.Background(), browserContext()); !v.Allowed {
		t.Fatalf("expected fail open on inconclusive geo, got %+v", v)
	}
}

func TestPipeline_GeoInconclusiveRejectsWhenFailClosed(t *testing.T) {
	p := bgPipeline(newFakeCounter())
	p.Geo = GeoService{}
	p.Policy.GeoFailClosed = true

	v := p.Admit(context.Background(), browserContext())
	if v.Allowed || v.Reason != domain.ReasonGeoRestricted {
		t.Fatalf("expected geo_restricted on fail closed, got %+v", v)
	}
}

func TestPipeline_IPRateLimitRejectsWithRetryAfter(t *testing.T) {
	counter := newFakeCounter()
	p := bgPipeline(counter)
	p.Limits = Limits{IPLimit: 2, IPWindow: 60 * time.Second}

	ctx := context.Background()
	rc := browserContext()
	rc.TenantID = ""

	for i := 0; i < 2; i++ {
		if v := p.Admit(ctx, rc); !v.Allowed {
			t.Fatalf("expected call %d allowed, got %+v", i+1, v)
		}
	}

	v := p.Admit(ctx, rc)
	if v.Allowed || v.Status != 429 || v.Reason != domain.ReasonIPRateLimited {
		t.Fatalf("expected 429 ip_rate_limited, got %+v", v)
	}
	if v.RetryAfter != 60*time.Second {
		t.Fatalf("expected RetryAfter=60s, got %s", v.RetryAfter)
	}
}

func TestPipeline_TenantLimitIsIndependent(t *testing.T) {
	counter := newFakeCounter()
	p := bgPipeline(counter)
	p.Limits = Limits{IPLimit: 100, IPWindow: time.Minute, TenantLimit: 1, TenantWindow: time.Minute}

	ctx := context.Background()

	rc := browserContext()
	if v := p.Admit(ctx, rc); !v.Allowed {
		t.Fatalf("expected first request allowed, got %+v", v)
	}

	// mesmo tenant, outro IP: estoura a dimensão do tenant.
	rc.ClientIP = "203.0.113.8"
	v := p.Admit(ctx, rc)
	if v.Allowed || v.Reason != domain.ReasonTenantRateLimited {
		t.Fatalf("expected tenant_rate_limited, got %+v", v)
	}
	if v.RetryAfter != time.Minute {
		t.Fatalf("expected RetryAfter=1m, got %s", v.RetryAfter)
	}
}

func TestPipeline_SkipsTenantCounterWhenTenantEmpty(t *testing.T) {
	counter := newFakeCounter()
	p := bgPipeline(counter)

	rc := browserContext()
	rc.TenantID = ""

	if v := p.Admit(context.Background(), rc); !v.Allowed {
		t.Fatalf("expected allowed, got %+v", v)
	}
	if len(counter.calls) != 1 {
		t.Fatalf("expected only the IP counter call, got %v", counter.calls)
	}
}

func TestPipeline_TenantNeverRunsAfterIPReject(t *testing.T) {
	counter := newFakeCounter()
	p := bgPipeline(counter)
	p.Limits = Limits{IPLimit: 1, IPWindow: time.Minute, TenantLimit: 100, TenantWindow: time.Minute}

	ctx := context.Background()
	rc := browserContext()

	p.Admit(ctx, rc)
	calls := len(counter.calls)
	v := p.Admit(ctx, rc)
	if v.Allowed || v.Reason != domain.ReasonIPRateLimited {
		t.Fatalf("expected ip_rate_limited, got %+v", v)
	}
	if got := len(counter.calls) - calls; got != 1 {
		t.Fatalf("expected only the IP counter call after reject, got %d", got)
	}
}

func TestPipeline_CounterErrorFailsOpen(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("storage offline")
	p := bgPipeline(counter)

	if v := p.Admit(context.Background(), browserContext()); !v.Allowed {
		t.Fatalf("expected fail open on counter error, got %+v", v)
	}
}

func TestPipeline_NilCounterFailsOpen(t *testing.T) {
	p := bgPipeline(nil)

	if v := p.Admit(context.Background(), browserContext()); !v.Allowed {
		t.Fatalf("expected allowed without counter store, got %+v", v)
	}
}

func TestPipeline_ShopWhitelist(t *testing.T) {
	p := bgPipeline(newFakeCounter())
	p.Policy.AllowedShopDomains = []string{"loja-boa.myshopify.com"}

	rc := browserContext()
	rc.ShopDomain = "loja-ruim.myshopify.com"

	v := p.Admit(context.Background(), rc)
	if v.Allowed || v.Reason != domain.ReasonShopNotAllowed {
		t.Fatalf("expected shop_not_allowed, got %+v", v)
	}

	rc.ShopPermanentDomain = "LOJA-BOA.myshopify.com"
	if v := p.Admit(context.Background(), rc); !v.Allowed {
		t.Fatalf("expected allowed via permanent domain, got %+v", v)
	}
}

func TestPipeline_EmptyWhitelistDisablesShopStage(t *testing.T) {
	p := bgPipeline(newFakeCounter())

	rc := browserContext()
	rc.ShopDomain = "qualquer.myshopify.com"

	if v := p.Admit(context.Background(), rc); !v.Allowed {
		t.Fatalf("expected allowed with empty whitelist, got %+v", v)
	}
}
