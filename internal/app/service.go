package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"opsdesk/api/internal/auth"
	"opsdesk/api/internal/authpw"
	"opsdesk/api/internal/config"
	"opsdesk/api/internal/email"
	"opsdesk/api/internal/export"
	"opsdesk/api/internal/files"
	"opsdesk/api/internal/rbac"
	"opsdesk/api/internal/search"
	"opsdesk/api/internal/session"
	"opsdesk/api/internal/sheetdb"
	"opsdesk/api/internal/store"
	"opsdesk/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       int
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// RefreshStore persists refresh sessions between restarts.
type RefreshStore interface {
	Save(ctx context.Context, tokenHash string, data session.TokenData, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (session.TokenData, error)
	Revoke(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg       config.Config
	store     *store.Store
	passwords *authpw.Service
	sessions  RefreshStore
	search    *search.Service
	email     *email.Service
	files     *files.Service
	exporter  *export.Service
	log       zerolog.Logger
}

// NewService wires the application service. email and attachments may
// be nil when not configured; search always has at least the in-memory
// fallback.
func NewService(cfg config.Config, st *store.Store, sessions RefreshStore, searchSvc *search.Service, emailSvc *email.Service, filesSvc *files.Service, logger zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		passwords: authpw.NewService(st),
		sessions:  sessions,
		search:    searchSvc,
		email:     emailSvc,
		files:     filesSvc,
		exporter:  export.NewService(st),
		log:       logger,
	}
}

// Bootstrap prepares the workbook and warms the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.store.EnsureAll(ctx); err != nil {
		return err
	}
	if s.search != nil {
		s.search.Reindex(ctx, ticketSource{store: s.store})
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) EmailConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) AttachmentsConfigured() bool {
	return s.files != nil
}

// storeErr translates storage failures into domain errors.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sheetdb.ErrNotFound) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	var schemaErr *sheetdb.SchemaError
	if errors.As(err, &schemaErr) {
		return domainError(http.StatusBadRequest, "UNKNOWN_COLUMN", "Unknown field", map[string]any{
			"table":  schemaErr.Table,
			"column": schemaErr.Column,
		})
	}
	return err
}

// ticketSource adapts the store for search reindexing.
type ticketSource struct {
	store *store.Store
}

func (t ticketSource) AllTickets(ctx context.Context) ([]search.TicketRecord, error) {
	tickets, err := t.store.ListTickets(ctx, "")
	if err != nil {
		return nil, err
	}
	records := make([]search.TicketRecord, 0, len(tickets))
	for _, ticket := range tickets {
		records = append(records, ticketRecord(ticket))
	}
	return records, nil
}

func ticketRecord(t store.Ticket) search.TicketRecord {
	return search.TicketRecord{
		ID:        t.ID,
		Subject:   t.Subject,
		Body:      t.Body,
		Requester: t.Requester,
		Assignee:  t.Assignee,
		Priority:  t.Priority,
		Status:    t.Status,
	}
}

// Sessions

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, emailAddr, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.Lookup(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.sessions.Revoke(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUser(ctx, data.UserID)
	if err != nil {
		return Session{}, storeErr(err)
	}
	if !user.Active {
		return Session{}, auth.ErrInvalidToken
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
		JTI:    jti,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.SessionTTL)
	err = s.sessions.Save(ctx, auth.HashToken(refresh), session.TokenData{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
	}, refreshExpires)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	if !user.Active {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, sess Session, current, next string) error {
	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return storeErr(err)
	}
	return s.passwords.ChangePassword(ctx, user, current, next)
}

// Users and departments

func (s *Service) ListUsers(ctx context.Context) ([]store.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	// Hashes stay server-side.
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int, patch sheetdb.Record) (store.User, error) {
	delete(patch, "password_hash")
	user, err := s.store.UpdateUser(ctx, id, patch)
	if err != nil {
		return store.User{}, storeErr(err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *Service) ListDepartments(ctx context.Context) ([]store.Department, error) {
	departments, err := s.store.ListDepartments(ctx)
	return departments, storeErr(err)
}

func (s *Service) CreateDepartment(ctx context.Context, item store.Department) (store.Department, error) {
	created, err := s.store.CreateDepartment(ctx, item)
	return created, storeErr(err)
}

func (s *Service) UpdateDepartment(ctx context.Context, id int, patch sheetdb.Record) (store.Department, error) {
	updated, err := s.store.UpdateDepartment(ctx, id, patch)
	return updated, storeErr(err)
}

func (s *Service) DeleteDepartment(ctx context.Context, id int) error {
	return storeErr(s.store.DeleteDepartment(ctx, id))
}

// Delegations

func (s *Service) ListDelegations(ctx context.Context, assignee string) ([]store.Delegation, error) {
	delegations, err := s.store.ListDelegations(ctx, assignee)
	return delegations, storeErr(err)
}

func (s *Service) CreateDelegation(ctx context.Context, sess Session, item store.Delegation) (store.Delegation, error) {
	item.AssignedBy = sess.UserName
	created, err := s.store.CreateDelegation(ctx, item)
	if err != nil {
		return store.Delegation{}, storeErr(err)
	}
	s.notifyAssignment(ctx, created.AssignedTo, "delegation", created.Title, sess.UserName, created.DueDate)
	return created, nil
}

func (s *Service) UpdateDelegation(ctx context.Context, id int, patch sheetdb.Record) (store.Delegation, error) {
	updated, err := s.store.UpdateDelegation(ctx, id, patch)
	return updated, storeErr(err)
}

func (s *Service) DeleteDelegation(ctx context.Context, id int) error {
	return storeErr(s.store.DeleteDelegation(ctx, id))
}

// notifyAssignment records an in-app notification and, when SMTP is
// configured, emails the assignee. Email failures only log.
func (s *Service) notifyAssignment(ctx context.Context, assignee, kind, title, assignedBy string, due time.Time) {
	if assignee == "" {
		return
	}
	_, err := s.store.CreateNotification(ctx, store.Notification{
		Recipient: assignee,
		Title:     "New " + kind + " assigned",
		Body:      title,
	})
	if err != nil {
		s.log.Error().Err(err).Str("assignee", assignee).Msg("create assignment notification")
	}

	if !s.EmailConfigured() {
		return
	}
	user, err := s.store.GetUserByEmail(ctx, assignee)
	if err != nil {
		// Assignees are usually referenced by name, not email.
		return
	}
	dueStr := ""
	if !due.IsZero() {
		dueStr = due.Format("02/01/2006")
	}
	if err := s.email.SendAssignmentEmail(user.Email, user.Name, kind, title, assignedBy, dueStr); err != nil {
		s.log.Error().Err(err).Str("assignee", assignee).Msg("send assignment email")
	}
}

// Checklists

func (s *Service) ListChecklists(ctx context.Context) ([]store.Checklist, error) {
	checklists, err := s.store.ListChecklists(ctx)
	return checklists, storeErr(err)
}

func (s *Service) CreateChecklist(ctx context.Context, item store.Checklist) (store.Checklist, error) {
	created, err := s.store.CreateChecklist(ctx, item)
	return created, storeErr(err)
}

func (s *Service) UpdateChecklist(ctx context.Context, id int, patch sheetdb.Record) (store.Checklist, error) {
	updated, err := s.store.UpdateChecklist(ctx, id, patch)
	return updated, storeErr(err)
}

func (s *Service) DeleteChecklist(ctx context.Context, id int) error {
	return storeErr(s.store.DeleteChecklist(ctx, id))
}

// Minutes

func (s *Service) ListMinutes(ctx context.Context) ([]store.Minute, error) {
	minutes, err := s.store.ListMinutes(ctx)
	return minutes, storeErr(err)
}

func (s *Service) GetMinute(ctx context.Context, id int) (store.Minute, error) {
	minute, err := s.store.GetMinute(ctx, id)
	return minute, storeErr(err)
}

func (s *Service) CreateMinute(ctx context.Context, item store.Minute) (store.Minute, error) {
	created, err := s.store.CreateMinute(ctx, item)
	return created, storeErr(err)
}

func (s *Service) UpdateMinute(ctx context.Context, id int, patch sheetdb.Record) (store.Minute, error) {
	updated, err := s.store.UpdateMinute(ctx, id, patch)
	return updated, storeErr(err)
}

func (s *Service) DeleteMinute(ctx context.Context, id int) error {
	return storeErr(s.store.DeleteMinute(ctx, id))
}

// Tickets

func (s *Service) ListTickets(ctx context.Context, status string) ([]store.Ticket, error) {
	tickets, err := s.store.ListTickets(ctx, status)
	return tickets, storeErr(err)
}

func (s *Service) GetTicket(ctx context.Context, id int) (store.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	return ticket, storeErr(err)
}

func (s *Service) CreateTicket(ctx context.Context, sess Session, item store.Ticket) (store.Ticket, error) {
	if item.Requester == "" {
		item.Requester = sess.UserName
	}
	if item.Status == "" {
		item.Status = "open"
	}
	created, err := s.store.CreateTicket(ctx, item)
	if err != nil {
		return store.Ticket{}, storeErr(err)
	}
	s.search.IndexTicket(ticketRecord(created))
	if created.Assignee != "" {
		s.notifyAssignment(ctx, created.Assignee, "ticket", created.Subject, sess.UserName, time.Time{})
	}
	return created, nil
}

func (s *Service) UpdateTicket(ctx context.Context, id int, patch sheetdb.Record) (store.Ticket, error) {
	updated, err := s.store.UpdateTicket(ctx, id, patch)
	if err != nil {
		return store.Ticket{}, storeErr(err)
	}
	s.search.IndexTicket(ticketRecord(updated))
	return updated, nil
}

func (s *Service) DeleteTicket(ctx context.Context, id int) error {
	if err := s.store.DeleteTicket(ctx, id); err != nil {
		return storeErr(err)
	}
	s.search.DeleteTicket(id)
	return nil
}

func (s *Service) SearchTickets(q search.Query) search.Response {
	return s.search.Search(q)
}

// AttachToTicket uploads a file and appends its key to the ticket's
// attachment list.
func (s *Service) AttachToTicket(ctx context.Context, id int, filename, contentType string, size int64, r io.Reader) (store.Ticket, error) {
	if s.files == nil {
		return store.Ticket{}, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage not configured", nil)
	}
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return store.Ticket{}, storeErr(err)
	}
	key, err := s.files.Upload(ctx, filename, contentType, size, r)
	if err != nil {
		return store.Ticket{}, err
	}
	attachments := append(ticket.Attachments, key)
	return s.UpdateTicket(ctx, id, sheetdb.Record{"attachments": attachments})
}

// AttachmentURL returns a short-lived download link.
func (s *Service) AttachmentURL(ctx context.Context, key string) (string, error) {
	if s.files == nil {
		return "", domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage not configured", nil)
	}
	return s.files.PresignedURL(ctx, key, 15*time.Minute)
}

// Todos

func (s *Service) ListTodos(ctx context.Context, owner string) ([]store.Todo, error) {
	todos, err := s.store.ListTodos(ctx, owner)
	return todos, storeErr(err)
}

func (s *Service) CreateTodo(ctx context.Context, sess Session, item store.Todo) (store.Todo, error) {
	if item.Owner == "" {
		item.Owner = sess.UserName
	}
	created, err := s.store.CreateTodo(ctx, item)
	return created, storeErr(err)
}

func (s *Service) UpdateTodo(ctx context.Context, id int, patch sheetdb.Record) (store.Todo, error) {
	updated, err := s.store.UpdateTodo(ctx, id, patch)
	return updated, storeErr(err)
}

func (s *Service) DeleteTodo(ctx context.Context, id int) error {
	return storeErr(s.store.DeleteTodo(ctx, id))
}

// Chat

func (s *Service) ListChatMessages(ctx context.Context, channel string) ([]store.ChatMessage, error) {
	messages, err := s.store.ListChatMessages(ctx, channel)
	return messages, storeErr(err)
}

func (s *Service) PostChatMessage(ctx context.Context, sess Session, channel, body string) (store.ChatMessage, error) {
	if body == "" {
		return store.ChatMessage{}, domainError(http.StatusBadRequest, "EMPTY_MESSAGE", "Message body required", nil)
	}
	if channel == "" {
		channel = "general"
	}
	created, err := s.store.CreateChatMessage(ctx, store.ChatMessage{
		Channel: channel,
		Author:  sess.UserName,
		Body:    body,
	})
	return created, storeErr(err)
}

// Notifications

func (s *Service) ListNotifications(ctx context.Context, sess Session) ([]store.Notification, error) {
	notifications, err := s.store.ListNotificationsFor(ctx, sess.UserName, sess.Role)
	return notifications, storeErr(err)
}

func (s *Service) MarkNotificationRead(ctx context.Context, id int) (store.Notification, error) {
	updated, err := s.store.MarkNotificationRead(ctx, id)
	return updated, storeErr(err)
}

// Orders

func (s *Service) ListOrders(ctx context.Context) ([]store.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	return orders, storeErr(err)
}

func (s *Service) GetOrder(ctx context.Context, partyID int) (store.Order, error) {
	order, err := s.store.GetOrder(ctx, partyID)
	return order, storeErr(err)
}

func (s *Service) CreateOrder(ctx context.Context, o store.Order) (store.Order, error) {
	if len(o.Lines) == 0 {
		return store.Order{}, domainError(http.StatusBadRequest, "EMPTY_ORDER", "An order needs at least one line", nil)
	}
	partyID, err := s.store.CreateOrder(ctx, o)
	if err != nil {
		return store.Order{}, storeErr(err)
	}
	created, err := s.store.GetOrder(ctx, partyID)
	return created, storeErr(err)
}

func (s *Service) UpdateOrder(ctx context.Context, partyID int, o store.Order) (store.Order, error) {
	if len(o.Lines) == 0 {
		return store.Order{}, domainError(http.StatusBadRequest, "EMPTY_ORDER", "An order needs at least one line", nil)
	}
	updated, err := s.store.UpdateOrder(ctx, partyID, o)
	return updated, storeErr(err)
}

func (s *Service) UpdateOrderFollowUp(ctx context.Context, partyID int, patch sheetdb.Record) (store.Order, error) {
	updated, err := s.store.UpdateOrderFollowUp(ctx, partyID, patch)
	return updated, storeErr(err)
}

func (s *Service) DeleteOrder(ctx context.Context, partyID int) error {
	return storeErr(s.store.DeleteOrder(ctx, partyID))
}

func (s *Service) ExportOrder(ctx context.Context, partyID int, format export.Format) (*export.Result, error) {
	result, err := s.exporter.Export(ctx, partyID, format)
	if err != nil {
		if errors.Is(err, sheetdb.ErrNotFound) {
			return nil, storeErr(err)
		}
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			return nil, domainError(http.StatusNotImplemented, "EXPORT_UNAVAILABLE", "Export dependencies not installed", nil)
		}
		return nil, err
	}
	return result, nil
}
