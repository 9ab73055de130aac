package domain

import (
	"context"
	"regexp"
	"time"
)

// CounterStore é um contador de janela fixa, durável e seguro para concorrência.
//
// Increment abre/cria o registro da chave de forma atômica: se não existe ou a
// janela armazenada expirou, reinicia em {início: agora, count: 1}; senão
// incrementa. Retorna true se `count <= limit` avaliado DEPOIS do incremento
// (a requisição que estoura o limite é recusada, mas ainda conta).
//
// Chaves distintas não podem bloquear umas às outras; a mesma chave precisa
// serializar o read-modify-write. Erros de infraestrutura sobem para o
// chamador decidir a política (o pipeline libera — fail open).
type CounterStore interface {
	Increment(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeKey troca caracteres fora do conjunto seguro por "_", evitando
// injeção de chave no identificador de armazenamento.
func SanitizeKey(key string) string {
	return unsafeKeyChars.ReplaceAllString(key, "_")
}

// Prefixos das duas dimensões de rate limit.
const (
	IPKeyPrefix     = "ip_"
	TenantKeyPrefix = "tenant_"
)

// IPKey monta a chave sanitizada da dimensão por IP.
func IPKey(ip string) string { return SanitizeKey(IPKeyPrefix + ip) }

// TenantKey monta a chave sanitizada da dimensão por tenant.
func TenantKey(id string) string { return SanitizeKey(TenantKeyPrefix + id) }
