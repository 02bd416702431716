package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"opsdesk/api/internal/auth"
	"opsdesk/api/internal/authpw"
	"opsdesk/api/internal/dates"
	"opsdesk/api/internal/export"
	"opsdesk/api/internal/rbac"
	"opsdesk/api/internal/search"
	"opsdesk/api/internal/sheetdb"
	"opsdesk/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"workbook": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["workbook"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userName":      session.UserName,
			"userId":        session.UserID,
			"role":          session.Role,
		})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/change-password" {
		var body struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ChangePassword(r.Context(), session, body.CurrentPassword, body.NewPassword); err != nil {
			writeError(w, http.StatusBadRequest, "CHANGE_FAILED", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "users":
		s.handleUsers(w, r, session, parts[2:])
	case "departments":
		s.handleDepartments(w, r, session, parts[2:])
	case "delegations":
		s.handleDelegations(w, r, session, parts[2:])
	case "checklists":
		s.handleChecklists(w, r, session, parts[2:])
	case "minutes":
		s.handleMinutes(w, r, session, parts[2:])
	case "tickets":
		s.handleTickets(w, r, session, parts[2:])
	case "todos":
		s.handleTodos(w, r, session, parts[2:])
	case "chat":
		s.handleChat(w, r, session, parts[2:])
	case "notifications":
		s.handleNotifications(w, r, session, parts[2:])
	case "orders":
		s.handleOrders(w, r, session, parts[2:])
	case "attachments":
		s.handleAttachments(w, r, session)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		Name       string `json:"name"`
		Department string `json:"department"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	session, err := s.service.SignUp(r.Context(), authpw.SignUpRequest{
		Email:      body.Email,
		Password:   body.Password,
		Name:       body.Name,
		Department: body.Department,
	})
	if err != nil {
		if err.Error() == "email already registered" {
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		users, err := s.service.ListUsers(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(users))
		for _, u := range users {
			payload = append(payload, userJSON(u))
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": payload})

	case r.Method == http.MethodPut && len(parts) == 1:
		if !s.service.Can(session.Role, rbac.ActionAdmin) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		patch, err := decodePatch(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := s.service.UpdateUser(r.Context(), id, patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, userJSON(user))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDepartments(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		departments, err := s.service.ListDepartments(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(departments))
		for _, d := range departments {
			payload = append(payload, departmentJSON(d))
		}
		writeJSON(w, http.StatusOK, map[string]any{"departments": payload})

	case r.Method == http.MethodPost && len(parts) == 0:
		if !s.service.Can(session.Role, rbac.ActionAdmin) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			Name string `json:"name"`
			Head string `json:"head"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Name) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
			return
		}
		created, err := s.service.CreateDepartment(r.Context(), store.Department{
			Name: body.Name,
			Head: body.Head,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, departmentJSON(created))

	case r.Method == http.MethodPut && len(parts) == 1:
		if !s.service.Can(session.Role, rbac.ActionAdmin) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		patch, err := decodePatch(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateDepartment(r.Context(), id, patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, departmentJSON(updated))

	case r.Method == http.MethodDelete && len(parts) == 1:
		if !s.service.Can(session.Role, rbac.ActionAdmin) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		if err := s.service.DeleteDepartment(r.Context(), id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDelegations(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		assignee := strings.TrimSpace(r.URL.Query().Get("assignee"))
		delegations, err := s.service.ListDelegations(r.Context(), assignee)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(delegations))
		for _, d := range delegations {
			payload = append(payload, delegationJSON(d))
		}
		writeJSON(w, http.StatusOK, map[string]any{"delegations": payload})

	case r.Method == http.MethodPost && len(parts) == 0:
		if !s.service.Can(session.Role, rbac.ActionAssign) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			AssignedTo  string `json:"assignedTo"`
			Department  string `json:"department"`
			DueDate     string `json:"dueDate"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Title) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
			return
		}
		created, err := s.service.CreateDelegation(r.Context(), session, store.Delegation{
			Title:       body.Title,
			Description: body.Description,
			AssignedTo:  body.AssignedTo,
			Department:  body.Department,
			DueDate:     parseDateField(body.DueDate),
			Status:      "open",
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, delegationJSON(created))

	case r.Method == http.MethodPut && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		patch, err := decodePatch(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if _, reassigns := patch["assigned_to"]; reassigns && !s.service.Can(session.Role, rbac.ActionAssign) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		updated, err := s.service.UpdateDelegation(r.Context(), id, patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, delegationJSON(updated))

	case r.Method == http.MethodDelete && len(parts) == 1:
		if !s.service.Can(session.Role, rbac.ActionAssign) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		if err := s.service.DeleteDelegation(r.Context(), id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleChecklists(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		checklists, err := s.service.ListChecklists(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(checklists))
		for _, c := range checklists {
			payload = append(payload, checklistJSON(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"checklists": payload})

	case r.Method == http.MethodPost && len(parts) == 0:
		var body struct {
			Question   string `json:"question"`
			AssignedTo string `json:"assignedTo"`
			DueDate    string `json:"dueDate"`
			Notes      string `json:"notes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Question) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "question is required", nil)
			return
		}
		created, err := s.service.CreateChecklist(r.Context(), store.Checklist{
			Question:   body.Question,
			AssignedTo: body.AssignedTo,
			DueDate:    parseDateField(body.DueDate),
			Notes:      body.Notes,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, checklistJSON(created))

	case r.Method == http.MethodPut && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		patch, err := decodePatch(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateChecklist(r.Context(), id, patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checklistJSON(updated))

	case r.Method == http.MethodDelete && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		if err := s.service.DeleteChecklist(r.Context(), id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleMinutes(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		minutes, err := s.service.ListMinutes(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(minutes))
		for _, m := range minutes {
			payload = append(payload, minuteJSON(m))
		}
		writeJSON(w, http.StatusOK, map[string]any{"minutes": payload})

	case r.Method == http.MethodGet && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		minute, err := s.service.GetMinute(r.Context(), id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, minuteJSON(minute))

	case r.Method == http.MethodPost && len(parts) == 0:
		var body struct {
			Title       string   `json:"title"`
			MeetingDate string   `json:"meetingDate"`
			Attendees   []string `json:"attendees"`
			Decisions   string   `json:"decisions"`
			FollowUp    string   `json:"followUp"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Title) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
			return
		}
		created, err := s.service.CreateMinute(r.Context(), store.Minute{
			Title:       body.Title,
			MeetingDate: parseDateField(body.MeetingDate),
			Attendees:   body.Attendees,
			Decisions:   body.Decisions,
			FollowUp:    body.FollowUp,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, minuteJSON(created))

	case r.Method == http.MethodPut && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		patch, err := decodePatch(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateMinute(r.Context(), id, patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, minuteJSON(updated))

	case r.Method == http.MethodDelete && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		if err := s.service.DeleteMinute(r.Context(), id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleTickets(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "search":
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filterStatus := strings.TrimSpace(r.URL.Query().Get("status"))
		limit := 20
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		offset := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
				return
			}
			offset = parsed
		}
		resp := s.service.SearchTickets(search.Query{
			Text:         q,
			FilterStatus: filterStatus,
			Limit:        limit,
			Offset:       offset,
		})
		results := make([]map[string]any, 0, len(resp.Results))
		for _, hit := range resp.Results {
			results = append(results, map[string]any{
				"id":      hit.ID,
				"subject": hit.Subject,
				"snippet": hit.Snippet,
				"status":  hit.Status,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results": results,
			"total":   resp.Total,
		})

	case r.Method == http.MethodGet && len(parts) == 0:
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		tickets, err := s.service.ListTickets(r.Context(), status)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(tickets))
		for _, t := range tickets {
			payload = append(payload, ticketJSON(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"tickets": payload})

	case r.Method == http.MethodGet && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		ticket, err := s.service.GetTicket(r.Context(), id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticketJSON(ticket))

	case r.Method == http.MethodPost && len(parts) == 0:
		var body struct {
			Subject  string `json:"subject"`
			Body     string `json:"body"`
			Priority string `json:"priority"`
			Assignee string `json:"assignee"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Subject) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "subject is required", nil)
			return
		}
		if body.Assignee != "" && !s.service.Can(session.Role, rbac.ActionAssign) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		created, err := s.service.CreateTicket(r.Context(), session, store.Ticket{
			Subject:  body.Subject,
			Body:     body.Body,
			Priority: body.Priority,
			Assignee: body.Assignee,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ticketJSON(created))

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "attachments":
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		s.handleTicketAttachment(w, r, id)

	case r.Method == http.MethodPut && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		patch, err := decodePatch(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if _, reassigns := patch["assignee"]; reassigns && !s.service.Can(session.Role, rbac.ActionAssign) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		updated, err := s.service.UpdateTicket(r.Context(), id, patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticketJSON(updated))

	case r.Method == http.MethodDelete && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		if err := s.service.DeleteTicket(r.Context(), id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

const maxAttachmentSize = 20 << 20

func (s *HTTPServer) handleTicketAttachment(w http.ResponseWriter, r *http.Request, id int) {
	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field required", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ticket, err := s.service.AttachToTicket(r.Context(), id, header.Filename, contentType, header.Size, file)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketJSON(ticket))
}

func (s *HTTPServer) handleAttachments(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "key is required", nil)
		return
	}
	url, err := s.service.AttachmentURL(r.Context(), key)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (s *HTTPServer) handleTodos(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		owner := strings.TrimSpace(r.URL.Query().Get("owner"))
		if owner == "" {
			owner = session.UserName
		}
		todos, err := s.service.ListTodos(r.Context(), owner)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(todos))
		for _, t := range todos {
			payload = append(payload, todoJSON(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"todos": payload})

	case r.Method == http.MethodPost && len(parts) == 0:
		var body struct {
			Text    string `json:"text"`
			DueDate string `json:"dueDate"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Text) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
			return
		}
		created, err := s.service.CreateTodo(r.Context(), session, store.Todo{
			Text:    body.Text,
			DueDate: parseDateField(body.DueDate),
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, todoJSON(created))

	case r.Method == http.MethodPut && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		patch, err := decodePatch(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateTodo(r.Context(), id, patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, todoJSON(updated))

	case r.Method == http.MethodDelete && len(parts) == 1:
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		if err := s.service.DeleteTodo(r.Context(), id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		channel := strings.TrimSpace(r.URL.Query().Get("channel"))
		messages, err := s.service.ListChatMessages(r.Context(), channel)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(messages))
		for _, m := range messages {
			payload = append(payload, chatMessageJSON(m))
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": payload})

	case r.Method == http.MethodPost && len(parts) == 0:
		var body struct {
			Channel string `json:"channel"`
			Body    string `json:"body"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.PostChatMessage(r.Context(), session, body.Channel, body.Body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, chatMessageJSON(created))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		notifications, err := s.service.ListNotifications(r.Context(), session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(notifications))
		for _, n := range notifications {
			payload = append(payload, notificationJSON(n))
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": payload})

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "read":
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		updated, err := s.service.MarkNotificationRead(r.Context(), id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, notificationJSON(updated))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleOrders(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		orders, err := s.service.ListOrders(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(orders))
		for _, o := range orders {
			payload = append(payload, orderJSON(o))
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": payload})

	case r.Method == http.MethodGet && len(parts) == 1:
		partyID, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		order, err := s.service.GetOrder(r.Context(), partyID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orderJSON(order))

	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "export":
		partyID, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		format := export.Format(strings.TrimSpace(r.URL.Query().Get("format")))
		if format == "" {
			format = export.FormatPDF
		}
		result, err := s.service.ExportOrder(r.Context(), partyID, format)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	case r.Method == http.MethodPost && len(parts) == 0:
		body, err := decodeOrderBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.CreateOrder(r.Context(), body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, orderJSON(created))

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "follow-up":
		partyID, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		patch, err := decodePatch(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateOrderFollowUp(r.Context(), partyID, patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orderJSON(updated))

	case r.Method == http.MethodPut && len(parts) == 1:
		partyID, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		body, err := decodeOrderBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateOrder(r.Context(), partyID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orderJSON(updated))

	case r.Method == http.MethodDelete && len(parts) == 1:
		partyID, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		if err := s.service.DeleteOrder(r.Context(), partyID); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func decodeOrderBody(r *http.Request) (store.Order, error) {
	var body struct {
		Customer  string `json:"customer"`
		Address   string `json:"address"`
		Phone     string `json:"phone"`
		OrderDate string `json:"orderDate"`
		Lines     []struct {
			ID       int     `json:"id"`
			Item     string  `json:"item"`
			Quantity float64 `json:"quantity"`
			UnitCost float64 `json:"unitCost"`
			Status   string  `json:"status"`
			Notes    string  `json:"notes"`
		} `json:"lines"`
	}
	if err := decodeBody(r, &body); err != nil {
		return store.Order{}, err
	}
	order := store.Order{
		Customer:  body.Customer,
		Address:   body.Address,
		Phone:     body.Phone,
		OrderDate: parseDateField(body.OrderDate),
	}
	for _, line := range body.Lines {
		order.Lines = append(order.Lines, store.OrderLine{
			ID:       line.ID,
			Item:     line.Item,
			Quantity: line.Quantity,
			UnitCost: line.UnitCost,
			Status:   line.Status,
			Notes:    line.Notes,
		})
	}
	return order, nil
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.service.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// decodePatch reads a JSON object of column-name keys. Unknown columns
// are rejected downstream by the schema check.
func decodePatch(r *http.Request) (sheetdb.Record, error) {
	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("invalid JSON body")
	}
	return sheetdb.Record(raw), nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseID(w http.ResponseWriter, raw string) (int, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func parseDateField(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, kind := dates.Parse(raw)
	if kind == dates.KindInvalid {
		return time.Time{}
	}
	return t
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sheetdb.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func jsonTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func userJSON(u store.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"role":       u.Role,
		"department": u.Department,
		"active":     u.Active,
		"createdAt":  jsonTime(u.CreatedAt),
		"updatedAt":  jsonTime(u.UpdatedAt),
	}
}

func departmentJSON(d store.Department) map[string]any {
	return map[string]any{
		"id":        d.ID,
		"name":      d.Name,
		"head":      d.Head,
		"createdAt": jsonTime(d.CreatedAt),
		"updatedAt": jsonTime(d.UpdatedAt),
	}
}

func delegationJSON(d store.Delegation) map[string]any {
	return map[string]any{
		"id":          d.ID,
		"title":       d.Title,
		"description": d.Description,
		"assignedTo":  d.AssignedTo,
		"assignedBy":  d.AssignedBy,
		"department":  d.Department,
		"dueDate":     jsonTime(d.DueDate),
		"status":      d.Status,
		"done":        d.Done,
		"createdAt":   jsonTime(d.CreatedAt),
		"updatedAt":   jsonTime(d.UpdatedAt),
	}
}

func checklistJSON(c store.Checklist) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"question":   c.Question,
		"assignedTo": c.AssignedTo,
		"dueDate":    jsonTime(c.DueDate),
		"done":       c.Done,
		"notes":      c.Notes,
		"createdAt":  jsonTime(c.CreatedAt),
		"updatedAt":  jsonTime(c.UpdatedAt),
	}
}

func minuteJSON(m store.Minute) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"title":       m.Title,
		"meetingDate": jsonTime(m.MeetingDate),
		"attendees":   m.Attendees,
		"decisions":   m.Decisions,
		"followUp":    m.FollowUp,
		"createdAt":   jsonTime(m.CreatedAt),
		"updatedAt":   jsonTime(m.UpdatedAt),
	}
}

func ticketJSON(t store.Ticket) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"subject":     t.Subject,
		"body":        t.Body,
		"requester":   t.Requester,
		"assignee":    t.Assignee,
		"priority":    t.Priority,
		"status":      t.Status,
		"attachments": t.Attachments,
		"createdAt":   jsonTime(t.CreatedAt),
		"updatedAt":   jsonTime(t.UpdatedAt),
	}
}

func todoJSON(t store.Todo) map[string]any {
	return map[string]any{
		"id":        t.ID,
		"text":      t.Text,
		"owner":     t.Owner,
		"dueDate":   jsonTime(t.DueDate),
		"done":      t.Done,
		"createdAt": jsonTime(t.CreatedAt),
		"updatedAt": jsonTime(t.UpdatedAt),
	}
}

func chatMessageJSON(m store.ChatMessage) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"channel":   m.Channel,
		"author":    m.Author,
		"body":      m.Body,
		"createdAt": jsonTime(m.CreatedAt),
	}
}

func notificationJSON(n store.Notification) map[string]any {
	return map[string]any{
		"id":        n.ID,
		"recipient": n.Recipient,
		"role":      n.Role,
		"title":     n.Title,
		"body":      n.Body,
		"read":      n.Read,
		"createdAt": jsonTime(n.CreatedAt),
	}
}

func orderLineJSON(l store.OrderLine) map[string]any {
	stages := make([]map[string]any, 0, len(l.Stages))
	for _, stage := range l.Stages {
		stages = append(stages, map[string]any{
			"planned": jsonTime(stage.Planned),
			"actual":  jsonTime(stage.Actual),
		})
	}
	return map[string]any{
		"id":        l.ID,
		"item":      l.Item,
		"quantity":  l.Quantity,
		"unitCost":  l.UnitCost,
		"totalCost": l.TotalCost,
		"status":    l.Status,
		"notes":     l.Notes,
		"stages":    stages,
		"createdAt": jsonTime(l.CreatedAt),
		"updatedAt": jsonTime(l.UpdatedAt),
	}
}

func orderJSON(o store.Order) map[string]any {
	lines := make([]map[string]any, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, orderLineJSON(line))
	}
	return map[string]any{
		"partyId":   o.PartyID,
		"customer":  o.Customer,
		"address":   o.Address,
		"phone":     o.Phone,
		"orderDate": jsonTime(o.OrderDate),
		"total":     export.OrderTotal(o),
		"lines":     lines,
	}
}
