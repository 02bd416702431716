package store

import (
	"context"
	"fmt"
	"sort"

	"opsdesk/api/internal/sheetdb"
)

func minuteFromRecord(rec sheetdb.Record) Minute {
	return Minute{
		ID:          recInt(rec, "id"),
		Title:       rec.String("title"),
		MeetingDate: recTime(rec, "meeting_date"),
		Attendees:   recStrings(rec, "attendees"),
		Decisions:   rec.String("decisions"),
		FollowUp:    rec.String("follow_up"),
		CreatedAt:   recTime(rec, "created_at"),
		UpdatedAt:   recTime(rec, "updated_at"),
	}
}

func (s *Store) CreateMinute(ctx context.Context, item Minute) (Minute, error) {
	rec, err := s.db.Create(ctx, s.minutesDef(), sheetdb.Record{
		"title":        item.Title,
		"meeting_date": timeCell(item.MeetingDate),
		"attendees":    item.Attendees,
		"decisions":    item.Decisions,
		"follow_up":    item.FollowUp,
	})
	if err != nil {
		return Minute{}, fmt.Errorf("create minute: %w", err)
	}
	return minuteFromRecord(rec), nil
}

func (s *Store) GetMinute(ctx context.Context, id int) (Minute, error) {
	rec, err := s.db.Get(ctx, s.minutesDef(), id)
	if err != nil {
		return Minute{}, err
	}
	return minuteFromRecord(rec), nil
}

// ListMinutes returns minutes with the most recent meetings first.
func (s *Store) ListMinutes(ctx context.Context) ([]Minute, error) {
	records, err := s.db.List(ctx, s.minutesDef())
	if err != nil {
		return nil, fmt.Errorf("list minutes: %w", err)
	}
	minutes := make([]Minute, 0, len(records))
	for _, rec := range records {
		minutes = append(minutes, minuteFromRecord(rec))
	}
	sort.SliceStable(minutes, func(i, j int) bool {
		return minutes[i].MeetingDate.After(minutes[j].MeetingDate)
	})
	return minutes, nil
}

func (s *Store) UpdateMinute(ctx context.Context, id int, patch sheetdb.Record) (Minute, error) {
	rec, err := s.db.Update(ctx, s.minutesDef(), id, patch)
	if err != nil {
		return Minute{}, err
	}
	return minuteFromRecord(rec), nil
}

func (s *Store) DeleteMinute(ctx context.Context, id int) error {
	return s.db.Remove(ctx, s.minutesDef(), id)
}
