package search

import (
	"context"
	"log"
)

// TicketSource supplies the current ticket set for reindexing.
type TicketSource interface {
	AllTickets(ctx context.Context) ([]TicketRecord, error)
}

// Service is the facade that tries Meilisearch first and falls back to
// the in-memory index.
type Service struct {
	meili    *Meili
	fallback *MemoryIndex
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili) *Service {
	return &Service{meili: meili, fallback: NewMemoryIndex()}
}

// Search tries Meilisearch if healthy, otherwise the in-memory index.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to memory: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexTicket indexes a ticket. The in-memory index is always kept
// current; Meilisearch writes are fire-and-forget.
func (s *Service) IndexTicket(t TicketRecord) {
	_ = s.fallback.IndexTicket(t)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTicket(t); err != nil {
			log.Printf("search: index ticket %d: %v", t.ID, err)
		}
	}()
}

// DeleteTicket removes a ticket from both indexes.
func (s *Service) DeleteTicket(id int) {
	_ = s.fallback.DeleteTicket(id)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTicket(id); err != nil {
			log.Printf("search: delete ticket %d: %v", id, err)
		}
	}()
}

// Reindex reads every ticket from the source and pushes them into both
// indexes. Called during startup.
func (s *Service) Reindex(ctx context.Context, source TicketSource) {
	tickets, err := source.AllTickets(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	for _, t := range tickets {
		_ = s.fallback.IndexTicket(t)
	}
	if s.meili != nil && s.meili.Healthy() {
		if err := s.meili.IndexTickets(tickets); err != nil {
			log.Printf("search: reindex tickets: %v", err)
		}
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
