package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"opsdesk/api/internal/sheetdb"
	"opsdesk/api/internal/sheets"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := sheetdb.New(sheets.NewMemory())
	client.SetNow(func() time.Time {
		return time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	})
	s := New(client, "wb")
	if err := s.EnsureAll(context.Background()); err != nil {
		t.Fatalf("ensure tables: %v", err)
	}
	return s
}

func setClock(s *Store, t time.Time) {
	s.db.SetNow(func() time.Time { return t })
}

func TestCreateAndGetChecklist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateChecklist(ctx, Checklist{
		Question:   "Backups verified?",
		AssignedTo: "ravi",
		DueDate:    time.Date(2024, time.March, 5, 18, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create checklist: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("id = %d, want 1", created.ID)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not stamped: %+v", created)
	}

	got, err := s.GetChecklist(ctx, created.ID)
	if err != nil {
		t.Fatalf("get checklist: %v", err)
	}
	if got.Question != "Backups verified?" || got.AssignedTo != "ravi" {
		t.Fatalf("got = %+v", got)
	}
	if !got.DueDate.Equal(created.DueDate) {
		t.Fatalf("due date = %v, want %v", got.DueDate, created.DueDate)
	}
}

func TestListChecklistsSortsByDueDateThenNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	later := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)

	setClock(s, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	first, _ := s.CreateChecklist(ctx, Checklist{Question: "same due, older", DueDate: due})
	setClock(s, time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC))
	second, _ := s.CreateChecklist(ctx, Checklist{Question: "same due, newer", DueDate: due})
	third, _ := s.CreateChecklist(ctx, Checklist{Question: "later due", DueDate: later})
	fourth, _ := s.CreateChecklist(ctx, Checklist{Question: "no due date"})

	items, err := s.ListChecklists(ctx)
	if err != nil {
		t.Fatalf("list checklists: %v", err)
	}
	wantOrder := []int{second.ID, first.ID, third.ID, fourth.ID}
	if len(items) != len(wantOrder) {
		t.Fatalf("len = %d, want %d", len(items), len(wantOrder))
	}
	for i, want := range wantOrder {
		if items[i].ID != want {
			t.Fatalf("position %d: id = %d, want %d", i, items[i].ID, want)
		}
	}
}

func TestUpdateChecklistKeepsCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateChecklist(ctx, Checklist{Question: "Locks checked?"})
	if err != nil {
		t.Fatalf("create checklist: %v", err)
	}

	setClock(s, time.Date(2024, time.March, 2, 15, 30, 0, 0, time.UTC))
	updated, err := s.UpdateChecklist(ctx, created.ID, sheetdb.Record{"done": true})
	if err != nil {
		t.Fatalf("update checklist: %v", err)
	}
	if !updated.Done {
		t.Fatalf("done not set: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at not advanced: %v", updated.UpdatedAt)
	}
}

func TestDeleteChecklist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, _ := s.CreateChecklist(ctx, Checklist{Question: "gone soon"})
	if err := s.DeleteChecklist(ctx, created.ID); err != nil {
		t.Fatalf("delete checklist: %v", err)
	}
	if _, err := s.GetChecklist(ctx, created.ID); !errors.Is(err, sheetdb.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, User{Name: "Asha", Email: "Asha@Example.com", Role: "admin", Active: true}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "asha@example.COM")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if got.Email != "asha@example.com" {
		t.Fatalf("email stored as %q, want lowercase", got.Email)
	}
	if !got.Active || got.Role != "admin" {
		t.Fatalf("got = %+v", got)
	}

	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, sheetdb.ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestListNotificationsForMatchesUserAndRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	direct, _ := s.CreateNotification(ctx, Notification{Recipient: "asha", Title: "for asha"})
	byRole, _ := s.CreateNotification(ctx, Notification{Role: "admin", Title: "for admins"})
	s.CreateNotification(ctx, Notification{Recipient: "ravi", Title: "for ravi"})
	s.CreateNotification(ctx, Notification{Role: "staff", Title: "for staff"})

	items, err := s.ListNotificationsFor(ctx, "asha", "admin")
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	seen := map[int]bool{}
	for _, n := range items {
		seen[n.ID] = true
	}
	if !seen[direct.ID] || !seen[byRole.ID] {
		t.Fatalf("wrong notifications returned: %+v", items)
	}
}

func TestMinuteAttendeesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateMinute(ctx, Minute{
		Title:       "Q1 review",
		MeetingDate: time.Date(2024, time.February, 28, 10, 0, 0, 0, time.UTC),
		Attendees:   []string{"asha", "ravi", "meera"},
	})
	if err != nil {
		t.Fatalf("create minute: %v", err)
	}

	got, err := s.GetMinute(ctx, created.ID)
	if err != nil {
		t.Fatalf("get minute: %v", err)
	}
	if len(got.Attendees) != 3 || got.Attendees[0] != "asha" || got.Attendees[2] != "meera" {
		t.Fatalf("attendees = %v", got.Attendees)
	}
}

func TestListTodosOpenBeforeDone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done, _ := s.CreateTodo(ctx, Todo{Text: "done already", Owner: "asha", Done: true})
	open, _ := s.CreateTodo(ctx, Todo{Text: "still open", Owner: "asha"})
	s.CreateTodo(ctx, Todo{Text: "someone else", Owner: "ravi"})

	todos, err := s.ListTodos(ctx, "asha")
	if err != nil {
		t.Fatalf("list todos: %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("len = %d, want 2", len(todos))
	}
	if todos[0].ID != open.ID || todos[1].ID != done.ID {
		t.Fatalf("order = %d,%d want open before done", todos[0].ID, todos[1].ID)
	}
}

func TestChatMessagesOldestFirstPerChannel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	setClock(s, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	first, _ := s.CreateChatMessage(ctx, ChatMessage{Channel: "general", Author: "asha", Body: "morning"})
	setClock(s, time.Date(2024, time.March, 1, 9, 5, 0, 0, time.UTC))
	second, _ := s.CreateChatMessage(ctx, ChatMessage{Channel: "general", Author: "ravi", Body: "hello"})
	s.CreateChatMessage(ctx, ChatMessage{Channel: "sales", Author: "meera", Body: "numbers"})

	messages, err := s.ListChatMessages(ctx, "general")
	if err != nil {
		t.Fatalf("list chat messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("len = %d, want 2", len(messages))
	}
	if messages[0].ID != first.ID || messages[1].ID != second.ID {
		t.Fatalf("order = %d,%d want oldest first", messages[0].ID, messages[1].ID)
	}
}
