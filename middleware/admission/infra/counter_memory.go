package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter é o contador de janela fixa em memória, para deploy de
// processo único.
//
// O lock do mapa só protege a busca/criação da entrada; o read-modify-write
// de cada chave serializa no mutex da própria entrada, então chaves
// distintas não bloqueiam umas às outras.
//
// Janelas velhas não são apagadas na hora em que expiram (são sobrescritas
// preguiçosamente no próximo incremento); a limpeza periódica evita que o
// espaço de chaves cresça sem limite com IPs/tenants distintos.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*counterEntry

	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type counterEntry struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

type MemoryCounterOption func(*MemoryCounter)

// WithIdleTTL define há quanto tempo uma chave precisa estar sem uso para a
// limpeza descartá-la. Deve ser maior que a maior janela configurada, senão
// uma janela ativa pode ser zerada no meio.
func WithIdleTTL(d time.Duration) MemoryCounterOption {
	return func(c *MemoryCounter) { c.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) MemoryCounterOption {
	return func(c *MemoryCounter) { c.cleanupEvery = d }
}

func NewMemoryCounter(opts ...MemoryCounterOption) *MemoryCounter {
	c := &MemoryCounter{
		entries:      make(map[string]*counterEntry),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Increment implementa domain.CounterStore.
//
// Janela fixa: registro inexistente ou expirado reinicia em
// {início: agora, count: 1}; senão incrementa. O retorno avalia
// `count <= limit` depois de contar.
func (c *MemoryCounter) Increment(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	e := c.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if now.Sub(e.windowStart) >= window {
		e.windowStart = now
		e.count = 1
	} else {
		e.count++
	}
	e.lastSeen = now

	return e.count <= limit, nil
}

func (c *MemoryCounter) entry(key string) *counterEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e
	}
	e := &counterEntry{}
	c.entries[key] = e
	return e
}

// Len informa quantas chaves existem (visibilidade para testes/diagnóstico).
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup descarta entradas sem uso há mais de idleTTL.
func (c *MemoryCounter) Cleanup() {
	cutoff := time.Now().Add(-c.idleTTL)

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		e.mu.Lock()
		idle := e.lastSeen.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(c.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (c *MemoryCounter) StartJanitor(ctx DoneContext) {
	if c.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(c.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem exigir
// a interface inteira. (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
