package export

import (
	"strings"
	"testing"
	"time"

	"opsdesk/api/internal/store"
)

func sampleOrder() store.Order {
	return store.Order{
		PartyID:   12,
		Customer:  "Lakshmi Traders",
		Address:   "14 Mount Road",
		Phone:     "044-2345678",
		OrderDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Lines: []store.OrderLine{
			{ID: 31, Item: "Steel pipe 2in", Quantity: 10, UnitCost: 250, TotalCost: 2500, Status: "dispatched"},
			{ID: 32, Item: "Elbow joint", Quantity: 40, UnitCost: 35, TotalCost: 1400},
		},
	}
}

func TestRenderOrderHTML(t *testing.T) {
	html, err := RenderOrderHTML(sampleOrder())
	if err != nil {
		t.Fatalf("RenderOrderHTML failed: %v", err)
	}

	for _, want := range []string{
		"Order #12",
		"Lakshmi Traders",
		"14 Mount Road",
		"01/03/2024",
		"Steel pipe 2in",
		"2500.00",
		"dispatched",
		"3900.00", // grand total
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderOrderHTMLEscapesContent(t *testing.T) {
	order := sampleOrder()
	order.Customer = `<script>alert("x")</script>`

	html, err := RenderOrderHTML(order)
	if err != nil {
		t.Fatalf("RenderOrderHTML failed: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("customer name not escaped")
	}
}

func TestOrderTotal(t *testing.T) {
	if got := OrderTotal(sampleOrder()); got != 3900 {
		t.Fatalf("OrderTotal = %v, want 3900", got)
	}
	if got := OrderTotal(store.Order{}); got != 0 {
		t.Fatalf("OrderTotal(empty) = %v, want 0", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"order-12-Lakshmi Traders", "order-12-Lakshmi-Traders"},
		{"a/b\\c:d", "abcd"},
		{"", "order"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b&c")
	if got != "a%20b%26c" {
		t.Fatalf("percentEncodeForDataURL = %q", got)
	}
}
