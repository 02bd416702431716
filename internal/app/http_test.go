package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"opsdesk/api/internal/logging"
)

func newTestServer(t *testing.T) (*HTTPServer, *Service) {
	t.Helper()
	svc := newTestService(t)
	return NewHTTPServer(svc, "http://localhost:3000"), svc
}

func doJSON(t *testing.T, server *HTTPServer, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func signUpOverHTTP(t *testing.T, server *HTTPServer, email, name string) (token string, userID int) {
	t.Helper()
	resp := doJSON(t, server, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":    email,
		"password": "hunter2hunter2",
		"name":     name,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("signup returned %d: %s", resp.Code, resp.Body.String())
	}
	payload := decodeJSON(t, resp)
	return payload["accessToken"].(string), int(payload["userId"].(float64))
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodGet, "/api/health", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("health returned %d", resp.Code)
	}
	if resp.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestMiddlewareLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestServiceWithLogger(t, logging.New(&buf))
	server := NewHTTPServer(svc, "*")

	resp := doJSON(t, server, http.MethodGet, "/api/health", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("health returned %d", resp.Code)
	}

	line := buf.String()
	for _, field := range []string{`"path":"/api/health"`, `"method":"GET"`, `"status":200`, `"request_id"`} {
		if !strings.Contains(line, field) {
			t.Errorf("access log missing %s: %s", field, line)
		}
	}
}

func TestReadyEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodGet, "/api/ready", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("ready returned %d: %s", resp.Code, resp.Body.String())
	}
	payload := decodeJSON(t, resp)
	if payload["ok"] != true {
		t.Fatalf("expected ready, got %v", payload)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodGet, "/api/checklists", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.Code)
	}

	resp = doJSON(t, server, http.MethodGet, "/api/checklists", "nonsense", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad token, got %d", resp.Code)
	}
}

func TestSessionEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodGet, "/api/session", "", nil)
	payload := decodeJSON(t, resp)
	if payload["authenticated"] != false {
		t.Fatalf("expected unauthenticated, got %v", payload)
	}

	token, _ := signUpOverHTTP(t, server, "asha@example.com", "Asha")
	resp = doJSON(t, server, http.MethodGet, "/api/session", token, nil)
	payload = decodeJSON(t, resp)
	if payload["authenticated"] != true || payload["userName"] != "Asha" {
		t.Fatalf("expected authenticated session, got %v", payload)
	}
}

func TestChecklistCRUDOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	token, _ := signUpOverHTTP(t, server, "asha@example.com", "Asha")

	resp := doJSON(t, server, http.MethodPost, "/api/checklists", token, map[string]any{
		"question":   "Backups verified?",
		"assignedTo": "ravi",
		"dueDate":    "2024-03-05T18:00:00.000Z",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", resp.Code, resp.Body.String())
	}
	created := decodeJSON(t, resp)
	id := int(created["id"].(float64))
	if created["question"] != "Backups verified?" {
		t.Fatalf("unexpected create payload %v", created)
	}

	resp = doJSON(t, server, http.MethodGet, "/api/checklists", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list returned %d", resp.Code)
	}
	list := decodeJSON(t, resp)
	if items := list["checklists"].([]any); len(items) != 1 {
		t.Fatalf("expected one checklist, got %d", len(items))
	}

	resp = doJSON(t, server, http.MethodPut, fmt.Sprintf("/api/checklists/%d", id), token, map[string]any{
		"done": true,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", resp.Code, resp.Body.String())
	}
	updated := decodeJSON(t, resp)
	if updated["done"] != true {
		t.Fatalf("expected done=true, got %v", updated)
	}

	resp = doJSON(t, server, http.MethodDelete, fmt.Sprintf("/api/checklists/%d", id), token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete returned %d", resp.Code)
	}

	resp = doJSON(t, server, http.MethodPut, fmt.Sprintf("/api/checklists/%d", id), token, map[string]any{
		"done": false,
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestUnknownColumnRejected(t *testing.T) {
	server, _ := newTestServer(t)
	token, _ := signUpOverHTTP(t, server, "asha@example.com", "Asha")

	resp := doJSON(t, server, http.MethodPost, "/api/checklists", token, map[string]any{
		"question": "Fire drill done?",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create returned %d", resp.Code)
	}
	id := int(decodeJSON(t, resp)["id"].(float64))

	resp = doJSON(t, server, http.MethodPut, fmt.Sprintf("/api/checklists/%d", id), token, map[string]any{
		"no_such_column": "x",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown column, got %d: %s", resp.Code, resp.Body.String())
	}
	if decodeJSON(t, resp)["code"] != "UNKNOWN_COLUMN" {
		t.Fatalf("unexpected error payload: %s", resp.Body.String())
	}
}

func TestDepartmentWritesAreAdminOnly(t *testing.T) {
	server, svc := newTestServer(t)
	token, userID := signUpOverHTTP(t, server, "asha@example.com", "Asha")

	resp := doJSON(t, server, http.MethodPost, "/api/departments", token, map[string]any{
		"name": "Operations",
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", resp.Code)
	}

	promote(t, svc, userID, "admin")

	resp = doJSON(t, server, http.MethodPost, "/api/departments", token, map[string]any{
		"name": "Operations",
		"head": "Mira",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, server, http.MethodGet, "/api/departments", token, nil)
	payload := decodeJSON(t, resp)
	if items := payload["departments"].([]any); len(items) != 1 {
		t.Fatalf("expected one department, got %d", len(items))
	}
}

func TestDelegationAssignmentNeedsManager(t *testing.T) {
	server, svc := newTestServer(t)
	token, userID := signUpOverHTTP(t, server, "mira@example.com", "Mira")

	resp := doJSON(t, server, http.MethodPost, "/api/delegations", token, map[string]any{
		"title":      "Close out Q3 vendor audits",
		"assignedTo": "Ravi",
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", resp.Code)
	}

	promote(t, svc, userID, "manager")

	resp = doJSON(t, server, http.MethodPost, "/api/delegations", token, map[string]any{
		"title":      "Close out Q3 vendor audits",
		"assignedTo": "Ravi",
		"dueDate":    "15/09/2024",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for manager, got %d: %s", resp.Code, resp.Body.String())
	}
	created := decodeJSON(t, resp)
	if created["assignedBy"] != "Mira" {
		t.Fatalf("expected assignedBy Mira, got %v", created["assignedBy"])
	}
}

func TestTicketSearchEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	token, _ := signUpOverHTTP(t, server, "asha@example.com", "Asha")

	resp := doJSON(t, server, http.MethodPost, "/api/tickets", token, map[string]any{
		"subject": "VPN drops every hour",
		"body":    "Connection resets on the hour, every hour.",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create ticket returned %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, server, http.MethodGet, "/api/tickets/search?q=vpn+drops", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("search returned %d", resp.Code)
	}
	payload := decodeJSON(t, resp)
	results := payload["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected one hit, got %v", payload)
	}
}

func TestOrdersFlowOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	token, _ := signUpOverHTTP(t, server, "asha@example.com", "Asha")

	resp := doJSON(t, server, http.MethodPost, "/api/orders", token, map[string]any{
		"customer":  "Acme Traders",
		"phone":     "9876501234",
		"orderDate": "01/03/2024",
		"lines": []map[string]any{
			{"item": "Steel brackets", "quantity": 10, "unitCost": 250},
			{"item": "Hinge sets", "quantity": 40, "unitCost": 35},
		},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create order returned %d: %s", resp.Code, resp.Body.String())
	}
	created := decodeJSON(t, resp)
	partyID := int(created["partyId"].(float64))
	if total := created["total"].(float64); total != 3900 {
		t.Fatalf("expected order total 3900, got %v", total)
	}
	lines := created["lines"].([]any)
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(lines))
	}

	resp = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/orders/%d", partyID), token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get order returned %d", resp.Code)
	}

	resp = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/orders/%d/follow-up", partyID), token, map[string]any{
		"status": "dispatched",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("follow-up returned %d: %s", resp.Code, resp.Body.String())
	}
	followedUp := decodeJSON(t, resp)
	firstLine := followedUp["lines"].([]any)[0].(map[string]any)
	if firstLine["status"] != "dispatched" {
		t.Fatalf("expected follow-up to touch every line, got %v", firstLine)
	}

	resp = doJSON(t, server, http.MethodDelete, fmt.Sprintf("/api/orders/%d", partyID), token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete order returned %d", resp.Code)
	}

	resp = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/orders/%d", partyID), token, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestEmptyOrderRejected(t *testing.T) {
	server, _ := newTestServer(t)
	token, _ := signUpOverHTTP(t, server, "asha@example.com", "Asha")

	resp := doJSON(t, server, http.MethodPost, "/api/orders", token, map[string]any{
		"customer": "Acme Traders",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an order without lines, got %d", resp.Code)
	}
}

func TestNotificationsOverHTTP(t *testing.T) {
	server, svc := newTestServer(t)
	managerToken, managerID := signUpOverHTTP(t, server, "mira@example.com", "Mira")
	promote(t, svc, managerID, "manager")
	raviToken, _ := signUpOverHTTP(t, server, "ravi@example.com", "Ravi")

	resp := doJSON(t, server, http.MethodPost, "/api/delegations", managerToken, map[string]any{
		"title":      "Prepare the audit binder",
		"assignedTo": "Ravi",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create delegation returned %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, server, http.MethodGet, "/api/notifications", raviToken, nil)
	payload := decodeJSON(t, resp)
	notifications := payload["notifications"].([]any)
	if len(notifications) != 1 {
		t.Fatalf("expected one notification, got %v", payload)
	}
	first := notifications[0].(map[string]any)
	if first["read"] != false {
		t.Fatalf("expected unread notification, got %v", first)
	}
	id := int(first["id"].(float64))

	resp = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), raviToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("mark read returned %d", resp.Code)
	}
	if decodeJSON(t, resp)["read"] != true {
		t.Fatalf("expected read=true: %s", resp.Body.String())
	}
}
