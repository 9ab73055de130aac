package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"admission-gateway/middleware/admission"
)

// lead é o payload mínimo do formulário: identifica o tenant e a loja para
// as etapas de admissão, e o produto para o eco de confirmação.
type lead struct {
	JetID               string `json:"jet_id"`
	ShopDomain          string `json:"shop_domain"`
	ShopPermanentDomain string `json:"shop_permanent_domain"`
	ProductID           string `json:"product_id"`
}

type leadCtxKey struct{}

const maxLeadBody = 64 << 10

// withLead lê o corpo uma única vez, extrai o lead e devolve o corpo ao
// Request para quem vier depois. Corpo ilegível vira lead vazio: quem decide
// rejeitar é o pipeline, não o parser.
func withLead(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ld, body := parseLead(r)
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), leadCtxKey{}, ld)))
	})
}

func parseLead(r *http.Request) (lead, []byte) {
	if r.Body == nil {
		return lead{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLeadBody))
	_ = r.Body.Close()
	if err != nil {
		return lead{}, nil
	}

	var ld lead
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") || bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		_ = json.Unmarshal(body, &ld)
		return ld, body
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return lead{}, body
	}
	ld.JetID = values.Get("jet_id")
	ld.ShopDomain = values.Get("shop_domain")
	ld.ShopPermanentDomain = values.Get("shop_permanent_domain")
	ld.ProductID = values.Get("product_id")
	return ld, body
}

func leadFrom(r *http.Request) lead {
	if ld, ok := r.Context().Value(leadCtxKey{}).(lead); ok {
		return ld
	}
	return lead{}
}

// leadTenant adapta o lead já estacionado no context para o middleware de
// admissão. Precisa rodar depois do withLead na cadeia.
func leadTenant(r *http.Request) admission.TenantInfo {
	ld := leadFrom(r)
	return admission.TenantInfo{
		TenantID:            ld.JetID,
		ShopDomain:          ld.ShopDomain,
		ShopPermanentDomain: ld.ShopPermanentDomain,
	}
}

func leadHandler(debug bool, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ld := leadFrom(r)

		logger.Info("lead aceito",
			zap.String("jetId", ld.JetID),
			zap.String("shopDomain", ld.ShopDomain),
			zap.String("productId", ld.ProductID),
			zap.String("ip", admission.RealClientIP(r, true)))

		resp := map[string]any{
			"ok":                    true,
			"jet_id":                ld.JetID,
			"shop_domain":           ld.ShopDomain,
			"shop_permanent_domain": ld.ShopPermanentDomain,
			"product_id":            ld.ProductID,
		}
		if debug {
			resp["debug"] = map[string]any{
				"ip":         admission.RealClientIP(r, true),
				"user_agent": r.UserAgent(),
				"origin":     r.Header.Get("Origin"),
				"referer":    r.Referer(),
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})
}

// corsHeaders libera o formulário embutido em lojas de terceiros. O controle
// de acesso de verdade é o pipeline de admissão, não o CORS.
func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
