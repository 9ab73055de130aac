package application

import (
	"context"
	"testing"

	"admission-gateway/middleware/admission/domain"
)

type recordingResolver struct {
	verdict domain.GeoVerdict
	called  int
}

func (r *recordingResolver) Country(context.Context, domain.GeoQuery) domain.GeoVerdict {
	r.called++
	return r.verdict
}

func TestGeoService_FirstResolvedWins(t *testing.T) {
	first := &recordingResolver{verdict: domain.GeoVerdict{CountryCode: "BG", Source: domain.GeoSourceHeader}}
	second := &recordingResolver{verdict: domain.GeoVerdict{CountryCode: "US", Source: domain.GeoSourceDatabase}}

	svc := GeoService{Resolvers: []domain.CountryResolver{first, second}}

	v := svc.Resolve(context.Background(), domain.GeoQuery{IP: "203.0.113.7"})
	if v.CountryCode != "BG" || v.Source != domain.GeoSourceHeader {
		t.Fatalf("expected header verdict, got %+v", v)
	}
	if second.called != 0 {
		t.Fatalf("expected second resolver not to be consulted")
	}
}

func TestGeoService_FallsThroughInconclusive(t *testing.T) {
	first := &recordingResolver{verdict: domain.Unresolved()}
	second := &recordingResolver{verdict: domain.GeoVerdict{CountryCode: "BG", Source: domain.GeoSourceRemoteAPI}}

	svc := GeoService{Resolvers: []domain.CountryResolver{first, second}}

	v := svc.Resolve(context.Background(), domain.GeoQuery{IP: "203.0.113.7"})
	if v.CountryCode != "BG" || v.Source != domain.GeoSourceRemoteAPI {
		t.Fatalf("expected remote verdict after fallthrough, got %+v", v)
	}
	if first.called != 1 {
		t.Fatalf("expected first resolver consulted once, got %d", first.called)
	}
}

func TestGeoService_AllInconclusiveReturnsUnresolved(t *testing.T) {
	svc := GeoService{Resolvers: []domain.CountryResolver{
		&recordingResolver{verdict: domain.Unresolved()},
		nil,
		&recordingResolver{verdict: domain.Unresolved()},
	}}

	v := svc.Resolve(context.Background(), domain.GeoQuery{IP: "203.0.113.7"})
	if v.Resolved() {
		t.Fatalf("expected unresolved, got %+v", v)
	}
	if v.Source != domain.GeoSourceUnresolved {
		t.Fatalf("expected unresolved source, got %q", v.Source)
	}
}

func TestGeoService_EmptyChainReturnsUnresolved(t *testing.T) {
	svc := GeoService{}
	if v := svc.Resolve(context.Background(), domain.GeoQuery{}); v.Resolved() {
		t.Fatalf("expected unresolved from empty chain, got %+v", v)
	}
}
