package store

import (
	"context"
	"fmt"
	"sort"

	"opsdesk/api/internal/sheetdb"
)

func notificationFromRecord(rec sheetdb.Record) Notification {
	return Notification{
		ID:        recInt(rec, "id"),
		Recipient: rec.String("recipient"),
		Role:      rec.String("role"),
		Title:     rec.String("title"),
		Body:      rec.String("body"),
		Read:      rec.Bool("read"),
		CreatedAt: recTime(rec, "created_at"),
		UpdatedAt: recTime(rec, "updated_at"),
	}
}

// CreateNotification targets either one recipient or a whole role;
// leave the other field empty.
func (s *Store) CreateNotification(ctx context.Context, item Notification) (Notification, error) {
	rec, err := s.db.Create(ctx, s.notificationsDef(), sheetdb.Record{
		"recipient": item.Recipient,
		"role":      item.Role,
		"title":     item.Title,
		"body":      item.Body,
		"read":      item.Read,
	})
	if err != nil {
		return Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return notificationFromRecord(rec), nil
}

// ListNotificationsFor returns notifications addressed to the user
// directly or to the user's role, newest first.
func (s *Store) ListNotificationsFor(ctx context.Context, recipient, role string) ([]Notification, error) {
	records, err := s.db.List(ctx, s.notificationsDef())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	notifications := make([]Notification, 0, len(records))
	for _, rec := range records {
		item := notificationFromRecord(rec)
		direct := item.Recipient != "" && item.Recipient == recipient
		byRole := item.Role != "" && item.Role == role
		if !direct && !byRole {
			continue
		}
		notifications = append(notifications, item)
	}
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id int) (Notification, error) {
	rec, err := s.db.Update(ctx, s.notificationsDef(), id, sheetdb.Record{"read": true})
	if err != nil {
		return Notification{}, err
	}
	return notificationFromRecord(rec), nil
}

func (s *Store) DeleteNotification(ctx context.Context, id int) error {
	return s.db.Remove(ctx, s.notificationsDef(), id)
}
