package store

import (
	"context"
	"fmt"
	"sort"

	"opsdesk/api/internal/sheetdb"
)

func todoFromRecord(rec sheetdb.Record) Todo {
	return Todo{
		ID:        recInt(rec, "id"),
		Text:      rec.String("text"),
		Owner:     rec.String("owner"),
		DueDate:   recTime(rec, "due_date"),
		Done:      rec.Bool("done"),
		CreatedAt: recTime(rec, "created_at"),
		UpdatedAt: recTime(rec, "updated_at"),
	}
}

func (s *Store) CreateTodo(ctx context.Context, item Todo) (Todo, error) {
	rec, err := s.db.Create(ctx, s.todosDef(), sheetdb.Record{
		"text":     item.Text,
		"owner":    item.Owner,
		"due_date": timeCell(item.DueDate),
		"done":     item.Done,
	})
	if err != nil {
		return Todo{}, fmt.Errorf("create todo: %w", err)
	}
	return todoFromRecord(rec), nil
}

// ListTodos returns one owner's todos, open items before done ones,
// each half newest first.
func (s *Store) ListTodos(ctx context.Context, owner string) ([]Todo, error) {
	records, err := s.db.List(ctx, s.todosDef())
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	todos := make([]Todo, 0, len(records))
	for _, rec := range records {
		item := todoFromRecord(rec)
		if owner != "" && item.Owner != owner {
			continue
		}
		todos = append(todos, item)
	}
	sort.SliceStable(todos, func(i, j int) bool {
		a, b := todos[i], todos[j]
		if a.Done != b.Done {
			return !a.Done
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return todos, nil
}

func (s *Store) UpdateTodo(ctx context.Context, id int, patch sheetdb.Record) (Todo, error) {
	rec, err := s.db.Update(ctx, s.todosDef(), id, patch)
	if err != nil {
		return Todo{}, err
	}
	return todoFromRecord(rec), nil
}

func (s *Store) DeleteTodo(ctx context.Context, id int) error {
	return s.db.Remove(ctx, s.todosDef(), id)
}
