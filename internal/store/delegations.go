package store

import (
	"context"
	"fmt"
	"sort"

	"opsdesk/api/internal/sheetdb"
)

func delegationFromRecord(rec sheetdb.Record) Delegation {
	return Delegation{
		ID:          recInt(rec, "id"),
		Title:       rec.String("title"),
		Description: rec.String("description"),
		AssignedTo:  rec.String("assigned_to"),
		AssignedBy:  rec.String("assigned_by"),
		Department:  rec.String("department"),
		DueDate:     recTime(rec, "due_date"),
		Status:      rec.String("status"),
		Done:        rec.Bool("done"),
		CreatedAt:   recTime(rec, "created_at"),
		UpdatedAt:   recTime(rec, "updated_at"),
	}
}

func (s *Store) CreateDelegation(ctx context.Context, item Delegation) (Delegation, error) {
	rec, err := s.db.Create(ctx, s.delegationsDef(), sheetdb.Record{
		"title":       item.Title,
		"description": item.Description,
		"assigned_to": item.AssignedTo,
		"assigned_by": item.AssignedBy,
		"department":  item.Department,
		"due_date":    timeCell(item.DueDate),
		"status":      item.Status,
		"done":        item.Done,
	})
	if err != nil {
		return Delegation{}, fmt.Errorf("create delegation: %w", err)
	}
	return delegationFromRecord(rec), nil
}

func (s *Store) GetDelegation(ctx context.Context, id int) (Delegation, error) {
	rec, err := s.db.Get(ctx, s.delegationsDef(), id)
	if err != nil {
		return Delegation{}, err
	}
	return delegationFromRecord(rec), nil
}

// ListDelegations returns every delegation, newest first. Pass a
// non-empty assignee to restrict to one person's tasks.
func (s *Store) ListDelegations(ctx context.Context, assignee string) ([]Delegation, error) {
	records, err := s.db.List(ctx, s.delegationsDef())
	if err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	delegations := make([]Delegation, 0, len(records))
	for _, rec := range records {
		item := delegationFromRecord(rec)
		if assignee != "" && item.AssignedTo != assignee {
			continue
		}
		delegations = append(delegations, item)
	}
	sort.SliceStable(delegations, func(i, j int) bool {
		return delegations[i].CreatedAt.After(delegations[j].CreatedAt)
	})
	return delegations, nil
}

func (s *Store) UpdateDelegation(ctx context.Context, id int, patch sheetdb.Record) (Delegation, error) {
	rec, err := s.db.Update(ctx, s.delegationsDef(), id, patch)
	if err != nil {
		return Delegation{}, err
	}
	return delegationFromRecord(rec), nil
}

func (s *Store) DeleteDelegation(ctx context.Context, id int) error {
	return s.db.Remove(ctx, s.delegationsDef(), id)
}
