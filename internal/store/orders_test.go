package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"opsdesk/api/internal/sheetdb"
)

func placeTestOrder(t *testing.T, s *Store) int {
	t.Helper()
	partyID, err := s.CreateOrder(context.Background(), Order{
		Customer:  "Lakshmi Traders",
		Address:   "14 Mount Road",
		Phone:     "044-2345678",
		OrderDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Lines: []OrderLine{
			{Item: "Steel pipe 2in", Quantity: 10, UnitCost: 250},
			{Item: "Elbow joint", Quantity: 40, UnitCost: 35},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return partyID
}

func TestCreateOrderAssignsIDsAndTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	partyID := placeTestOrder(t, s)
	if partyID != 1 {
		t.Fatalf("party id = %d, want 1", partyID)
	}

	order, err := s.GetOrder(ctx, partyID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Customer != "Lakshmi Traders" || len(order.Lines) != 2 {
		t.Fatalf("order = %+v", order)
	}
	if order.Lines[0].ID != 1 || order.Lines[1].ID != 2 {
		t.Fatalf("line ids = %d,%d", order.Lines[0].ID, order.Lines[1].ID)
	}
	if order.Lines[0].TotalCost != 2500 || order.Lines[1].TotalCost != 1400 {
		t.Fatalf("totals = %v,%v", order.Lines[0].TotalCost, order.Lines[1].TotalCost)
	}
}

func TestUpdateOrderPreservesKeptLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	partyID := placeTestOrder(t, s)

	dispatched := time.Date(2024, time.March, 3, 11, 0, 0, 0, time.UTC)
	if _, err := s.UpdateOrderFollowUp(ctx, partyID, sheetdb.Record{
		actualColumn(3): timeCell(dispatched),
		"status":        "dispatched",
	}); err != nil {
		t.Fatalf("follow up: %v", err)
	}

	before, err := s.GetOrder(ctx, partyID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}

	setClock(s, time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC))
	after, err := s.UpdateOrder(ctx, partyID, Order{
		Customer:  "Lakshmi Traders",
		Address:   "14 Mount Road",
		Phone:     "044-2345678",
		OrderDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Lines: []OrderLine{
			{ID: before.Lines[0].ID, Item: "Steel pipe 2in", Quantity: 15},
			{Item: "Coupling", Quantity: 20, UnitCost: 60},
		},
	})
	if err != nil {
		t.Fatalf("update order: %v", err)
	}
	if len(after.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(after.Lines))
	}

	kept := after.Lines[0]
	if kept.ID != before.Lines[0].ID {
		t.Fatalf("kept line id = %d, want %d", kept.ID, before.Lines[0].ID)
	}
	if !kept.Stages[2].Actual.Equal(dispatched) {
		t.Fatalf("actual stage 3 = %v, want %v", kept.Stages[2].Actual, dispatched)
	}
	if kept.Status != "dispatched" {
		t.Fatalf("status = %q, want dispatched", kept.Status)
	}
	if kept.UnitCost != 250 || kept.TotalCost != 3750 {
		t.Fatalf("unit/total = %v/%v, want 250/3750", kept.UnitCost, kept.TotalCost)
	}
	if !kept.CreatedAt.Equal(before.Lines[0].CreatedAt) {
		t.Fatalf("created_at changed on kept line")
	}

	fresh := after.Lines[1]
	if fresh.ID == before.Lines[0].ID || fresh.ID == before.Lines[1].ID {
		t.Fatalf("fresh line reused id %d", fresh.ID)
	}
	if fresh.TotalCost != 1200 {
		t.Fatalf("fresh total = %v, want 1200", fresh.TotalCost)
	}
	if !fresh.CreatedAt.After(before.Lines[0].CreatedAt) {
		t.Fatalf("fresh line created_at = %v", fresh.CreatedAt)
	}

	// The dropped second line must be gone.
	for _, line := range after.Lines {
		if line.ID == before.Lines[1].ID {
			t.Fatalf("dropped line still present: %+v", line)
		}
	}
}

func TestListOrdersGroupsByParty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := placeTestOrder(t, s)
	second, err := s.CreateOrder(ctx, Order{
		Customer: "Verma Hardware",
		Lines:    []OrderLine{{Item: "Hinge", Quantity: 100, UnitCost: 12}},
	})
	if err != nil {
		t.Fatalf("create second order: %v", err)
	}

	orders, err := s.ListOrders(ctx)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("len = %d, want 2", len(orders))
	}
	if orders[0].PartyID != first || orders[1].PartyID != second {
		t.Fatalf("party ids = %d,%d", orders[0].PartyID, orders[1].PartyID)
	}
	if len(orders[0].Lines) != 2 || len(orders[1].Lines) != 1 {
		t.Fatalf("line counts = %d,%d", len(orders[0].Lines), len(orders[1].Lines))
	}
}

func TestDeleteOrderRemovesAllRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	partyID := placeTestOrder(t, s)

	if err := s.DeleteOrder(ctx, partyID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if _, err := s.GetOrder(ctx, partyID); !errors.Is(err, sheetdb.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
}
