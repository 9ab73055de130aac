package domain

import (
	"context"
	"time"
)

// StatsEvent representa um veredito do pipeline para fins de auditoria.
//
// Observação: cuidado com cardinalidade (salvar Key sem controle pode
// explodir o número de chaves em uma base como Redis).
type StatsEvent struct {
	Key     string
	Allowed bool
	Reason  Reason

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas de veredito.
//
// Implementações podem armazenar em Redis, memória, etc. O middleware trata
// erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
