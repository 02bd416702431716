package store

import (
	"context"
	"fmt"
	"strings"

	"opsdesk/api/internal/sheetdb"
)

func userFromRecord(rec sheetdb.Record) User {
	return User{
		ID:           recInt(rec, "id"),
		Name:         rec.String("name"),
		Email:        rec.String("email"),
		PasswordHash: rec.String("password_hash"),
		Role:         rec.String("role"),
		Department:   rec.String("department"),
		Active:       rec.Bool("active"),
		CreatedAt:    recTime(rec, "created_at"),
		UpdatedAt:    recTime(rec, "updated_at"),
	}
}

func (s *Store) CreateUser(ctx context.Context, item User) (User, error) {
	rec, err := s.db.Create(ctx, s.usersDef(), sheetdb.Record{
		"name":          item.Name,
		"email":         strings.ToLower(item.Email),
		"password_hash": item.PasswordHash,
		"role":          item.Role,
		"department":    item.Department,
		"active":        item.Active,
	})
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return userFromRecord(rec), nil
}

func (s *Store) GetUser(ctx context.Context, id int) (User, error) {
	rec, err := s.db.Get(ctx, s.usersDef(), id)
	if err != nil {
		return User{}, err
	}
	return userFromRecord(rec), nil
}

// GetUserByEmail matches case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	records, err := s.db.List(ctx, s.usersDef())
	if err != nil {
		return User{}, fmt.Errorf("list users: %w", err)
	}
	email = strings.ToLower(email)
	for _, rec := range records {
		if strings.ToLower(rec.String("email")) == email {
			return userFromRecord(rec), nil
		}
	}
	return User{}, sheetdb.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	records, err := s.db.List(ctx, s.usersDef())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]User, 0, len(records))
	for _, rec := range records {
		users = append(users, userFromRecord(rec))
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int, patch sheetdb.Record) (User, error) {
	if email, ok := patch["email"].(string); ok {
		patch["email"] = strings.ToLower(email)
	}
	rec, err := s.db.Update(ctx, s.usersDef(), id, patch)
	if err != nil {
		return User{}, err
	}
	return userFromRecord(rec), nil
}

func (s *Store) DeleteUser(ctx context.Context, id int) error {
	return s.db.Remove(ctx, s.usersDef(), id)
}
