package store

import (
	"context"
	"fmt"
	"sort"

	"opsdesk/api/internal/sheetdb"
)

func ticketFromRecord(rec sheetdb.Record) Ticket {
	return Ticket{
		ID:          recInt(rec, "id"),
		Subject:     rec.String("subject"),
		Body:        rec.String("body"),
		Requester:   rec.String("requester"),
		Assignee:    rec.String("assignee"),
		Priority:    rec.String("priority"),
		Status:      rec.String("status"),
		Attachments: recStrings(rec, "attachments"),
		CreatedAt:   recTime(rec, "created_at"),
		UpdatedAt:   recTime(rec, "updated_at"),
	}
}

func (s *Store) CreateTicket(ctx context.Context, item Ticket) (Ticket, error) {
	rec, err := s.db.Create(ctx, s.ticketsDef(), sheetdb.Record{
		"subject":     item.Subject,
		"body":        item.Body,
		"requester":   item.Requester,
		"assignee":    item.Assignee,
		"priority":    item.Priority,
		"status":      item.Status,
		"attachments": item.Attachments,
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return ticketFromRecord(rec), nil
}

func (s *Store) GetTicket(ctx context.Context, id int) (Ticket, error) {
	rec, err := s.db.Get(ctx, s.ticketsDef(), id)
	if err != nil {
		return Ticket{}, err
	}
	return ticketFromRecord(rec), nil
}

// ListTickets returns tickets newest first. Pass a non-empty status to
// restrict (e.g. "open").
func (s *Store) ListTickets(ctx context.Context, status string) ([]Ticket, error) {
	records, err := s.db.List(ctx, s.ticketsDef())
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	tickets := make([]Ticket, 0, len(records))
	for _, rec := range records {
		item := ticketFromRecord(rec)
		if status != "" && item.Status != status {
			continue
		}
		tickets = append(tickets, item)
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets, nil
}

func (s *Store) UpdateTicket(ctx context.Context, id int, patch sheetdb.Record) (Ticket, error) {
	rec, err := s.db.Update(ctx, s.ticketsDef(), id, patch)
	if err != nil {
		return Ticket{}, err
	}
	return ticketFromRecord(rec), nil
}

func (s *Store) DeleteTicket(ctx context.Context, id int) error {
	return s.db.Remove(ctx, s.ticketsDef(), id)
}
