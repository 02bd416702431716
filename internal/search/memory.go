package search

import (
	"sort"
	"strings"
	"sync"
)

// MemoryIndex is a substring-match fallback used when Meilisearch is
// not configured or unreachable. Good enough for small ticket volumes.
type MemoryIndex struct {
	mu      sync.RWMutex
	tickets map[int]TicketRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{tickets: make(map[int]TicketRecord)}
}

func (m *MemoryIndex) Healthy() bool { return true }

func (m *MemoryIndex) IndexTicket(t TicketRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t
	return nil
}

func (m *MemoryIndex) DeleteTicket(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tickets, id)
	return nil
}

// Search matches every query word case-insensitively against subject,
// body and requester. All words must match.
func (m *MemoryIndex) Search(q Query) ([]Result, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	words := strings.Fields(strings.ToLower(q.Text))

	var matched []TicketRecord
	for _, t := range m.tickets {
		if q.FilterStatus != "" && t.Status != q.FilterStatus {
			continue
		}
		haystack := strings.ToLower(t.Subject + " " + t.Body + " " + t.Requester)
		ok := true
		for _, word := range words {
			if !strings.Contains(haystack, word) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, t)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	if q.Offset >= len(matched) {
		return []Result{}, total, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	results := make([]Result, 0, len(matched))
	for _, t := range matched {
		results = append(results, Result{
			ID:      t.ID,
			Subject: t.Subject,
			Snippet: snippet(t.Body),
			Status:  t.Status,
		})
	}
	return results, total, nil
}

func snippet(body string) string {
	const max = 160
	if len(body) <= max {
		return body
	}
	cut := body[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
