package store

import (
	"context"
	"fmt"
	"sort"

	"opsdesk/api/internal/sheetdb"
)

func checklistFromRecord(rec sheetdb.Record) Checklist {
	return Checklist{
		ID:         recInt(rec, "id"),
		Question:   rec.String("question"),
		AssignedTo: rec.String("assigned_to"),
		DueDate:    recTime(rec, "due_date"),
		Done:       rec.Bool("done"),
		Notes:      rec.String("notes"),
		CreatedAt:  recTime(rec, "created_at"),
		UpdatedAt:  recTime(rec, "updated_at"),
	}
}

func (s *Store) CreateChecklist(ctx context.Context, item Checklist) (Checklist, error) {
	rec, err := s.db.Create(ctx, s.checklistsDef(), sheetdb.Record{
		"question":    item.Question,
		"assigned_to": item.AssignedTo,
		"due_date":    timeCell(item.DueDate),
		"done":        item.Done,
		"notes":       item.Notes,
	})
	if err != nil {
		return Checklist{}, fmt.Errorf("create checklist: %w", err)
	}
	return checklistFromRecord(rec), nil
}

func (s *Store) GetChecklist(ctx context.Context, id int) (Checklist, error) {
	rec, err := s.db.Get(ctx, s.checklistsDef(), id)
	if err != nil {
		return Checklist{}, err
	}
	return checklistFromRecord(rec), nil
}

// ListChecklists orders by due date ascending, ties broken newest
// created first. Items without a due date sort to the end.
func (s *Store) ListChecklists(ctx context.Context) ([]Checklist, error) {
	records, err := s.db.List(ctx, s.checklistsDef())
	if err != nil {
		return nil, fmt.Errorf("list checklists: %w", err)
	}
	checklists := make([]Checklist, 0, len(records))
	for _, rec := range records {
		checklists = append(checklists, checklistFromRecord(rec))
	}
	sort.SliceStable(checklists, func(i, j int) bool {
		a, b := checklists[i], checklists[j]
		if !a.DueDate.Equal(b.DueDate) {
			if a.DueDate.IsZero() {
				return false
			}
			if b.DueDate.IsZero() {
				return true
			}
			return a.DueDate.Before(b.DueDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return checklists, nil
}

func (s *Store) UpdateChecklist(ctx context.Context, id int, patch sheetdb.Record) (Checklist, error) {
	rec, err := s.db.Update(ctx, s.checklistsDef(), id, patch)
	if err != nil {
		return Checklist{}, err
	}
	return checklistFromRecord(rec), nil
}

func (s *Store) DeleteChecklist(ctx context.Context, id int) error {
	return s.db.Remove(ctx, s.checklistsDef(), id)
}
