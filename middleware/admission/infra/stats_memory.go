package infra

import (
	"context"
	"sync"

	"admission-gateway/middleware/admission/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

// MemoryStatsStore é uma implementação simples em memória da auditoria de
// vereditos. Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byReason map[domain.Reason]int64
	byKey    map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byReason: make(map[domain.Reason]int64),
		byKey:    make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Allowed {
		s.total.Allowed++
	} else {
		s.total.Denied++
	}

	if ev.Reason != "" {
		s.byReason[ev.Reason]++
	}

	if s.trackKeys && ev.Key != "" {
		c := s.byKey[ev.Key]
		if ev.Allowed {
			c.Allowed++
		} else {
			c.Denied++
		}
		s.byKey[ev.Key] = c
	}

	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByReason() map[domain.Reason]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Reason]int64, len(s.byReason))
	for k, v := range s.byReason {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
