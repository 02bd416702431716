package store

import (
	"context"
	"fmt"
	"sort"

	"opsdesk/api/internal/sheetdb"
)

func chatMessageFromRecord(rec sheetdb.Record) ChatMessage {
	return ChatMessage{
		ID:        recInt(rec, "id"),
		Channel:   rec.String("channel"),
		Author:    rec.String("author"),
		Body:      rec.String("body"),
		CreatedAt: recTime(rec, "created_at"),
		UpdatedAt: recTime(rec, "updated_at"),
	}
}

func (s *Store) CreateChatMessage(ctx context.Context, item ChatMessage) (ChatMessage, error) {
	rec, err := s.db.Create(ctx, s.chatMessagesDef(), sheetdb.Record{
		"channel": item.Channel,
		"author":  item.Author,
		"body":    item.Body,
	})
	if err != nil {
		return ChatMessage{}, fmt.Errorf("create chat message: %w", err)
	}
	return chatMessageFromRecord(rec), nil
}

// ListChatMessages returns a channel's messages oldest first.
func (s *Store) ListChatMessages(ctx context.Context, channel string) ([]ChatMessage, error) {
	records, err := s.db.List(ctx, s.chatMessagesDef())
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	messages := make([]ChatMessage, 0, len(records))
	for _, rec := range records {
		item := chatMessageFromRecord(rec)
		if channel != "" && item.Channel != channel {
			continue
		}
		messages = append(messages, item)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (s *Store) DeleteChatMessage(ctx context.Context, id int) error {
	return s.db.Remove(ctx, s.chatMessagesDef(), id)
}
