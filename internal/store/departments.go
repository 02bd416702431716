package store

import (
	"context"
	"fmt"
	"sort"

	"opsdesk/api/internal/sheetdb"
)

func departmentFromRecord(rec sheetdb.Record) Department {
	return Department{
		ID:        recInt(rec, "id"),
		Name:      rec.String("name"),
		Head:      rec.String("head"),
		CreatedAt: recTime(rec, "created_at"),
		UpdatedAt: recTime(rec, "updated_at"),
	}
}

func (s *Store) CreateDepartment(ctx context.Context, item Department) (Department, error) {
	rec, err := s.db.Create(ctx, s.departmentsDef(), sheetdb.Record{
		"name": item.Name,
		"head": item.Head,
	})
	if err != nil {
		return Department{}, fmt.Errorf("create department: %w", err)
	}
	return departmentFromRecord(rec), nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	records, err := s.db.List(ctx, s.departmentsDef())
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	departments := make([]Department, 0, len(records))
	for _, rec := range records {
		departments = append(departments, departmentFromRecord(rec))
	}
	sort.Slice(departments, func(i, j int) bool {
		return departments[i].Name < departments[j].Name
	})
	return departments, nil
}

func (s *Store) UpdateDepartment(ctx context.Context, id int, patch sheetdb.Record) (Department, error) {
	rec, err := s.db.Update(ctx, s.departmentsDef(), id, patch)
	if err != nil {
		return Department{}, err
	}
	return departmentFromRecord(rec), nil
}

func (s *Store) DeleteDepartment(ctx context.Context, id int) error {
	return s.db.Remove(ctx, s.departmentsDef(), id)
}
