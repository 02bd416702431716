package store

import (
	"context"
	"fmt"

	"opsdesk/api/internal/sheetdb"
)

func orderSharedRecord(o Order) sheetdb.Record {
	return sheetdb.Record{
		"customer":   o.Customer,
		"address":    o.Address,
		"phone":      o.Phone,
		"order_date": timeCell(o.OrderDate),
	}
}

// orderLineRecord carries only the fields the caller actually set.
// Omitted columns fall back to their stored values on lines that keep
// their row id, so a reorder does not wipe pipeline timestamps.
func orderLineRecord(line OrderLine) sheetdb.Record {
	rec := sheetdb.Record{
		"item":     line.Item,
		"quantity": line.Quantity,
	}
	if line.ID > 0 {
		rec[sheetdb.ColID] = line.ID
	}
	if line.UnitCost != 0 {
		rec["unit_cost"] = line.UnitCost
	}
	if line.Status != "" {
		rec["status"] = line.Status
	}
	if line.Notes != "" {
		rec["notes"] = line.Notes
	}
	for i, stage := range line.Stages {
		if !stage.Planned.IsZero() {
			rec[plannedColumn(i+1)] = timeCell(stage.Planned)
		}
		if !stage.Actual.IsZero() {
			rec[actualColumn(i+1)] = timeCell(stage.Actual)
		}
	}
	return rec
}

func orderLineFromRecord(rec sheetdb.Record) OrderLine {
	line := OrderLine{
		ID:        recInt(rec, "id"),
		Item:      rec.String("item"),
		Quantity:  recFloat(rec, "quantity"),
		UnitCost:  recFloat(rec, "unit_cost"),
		TotalCost: recFloat(rec, "total_cost"),
		Status:    rec.String("status"),
		Notes:     rec.String("notes"),
		CreatedAt: recTime(rec, "created_at"),
		UpdatedAt: recTime(rec, "updated_at"),
	}
	for i := 0; i < pipelineStages; i++ {
		line.Stages[i] = StageTimes{
			Planned: recTime(rec, plannedColumn(i+1)),
			Actual:  recTime(rec, actualColumn(i+1)),
		}
	}
	return line
}

func orderFromRecords(records []sheetdb.Record) Order {
	if len(records) == 0 {
		return Order{}
	}
	first := records[0]
	order := Order{
		PartyID:   recInt(first, "party_id"),
		Customer:  first.String("customer"),
		Address:   first.String("address"),
		Phone:     first.String("phone"),
		OrderDate: recTime(first, "order_date"),
		Lines:     make([]OrderLine, 0, len(records)),
	}
	for _, rec := range records {
		order.Lines = append(order.Lines, orderLineFromRecord(rec))
	}
	return order
}

// CreateOrder writes one row per line and returns the new party id.
func (s *Store) CreateOrder(ctx context.Context, o Order) (int, error) {
	items := make([]sheetdb.Record, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, orderLineRecord(line))
	}
	partyID, err := s.db.CreateGroup(ctx, s.ordersDef(), orderSharedRecord(o), items)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	return partyID, nil
}

func (s *Store) GetOrder(ctx context.Context, partyID int) (Order, error) {
	records, err := s.db.GetGroup(ctx, s.ordersDef(), partyID)
	if err != nil {
		return Order{}, err
	}
	return orderFromRecords(records), nil
}

func (s *Store) ListOrders(ctx context.Context) ([]Order, error) {
	groups, err := s.db.ListGroups(ctx, s.ordersDef())
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]Order, 0, len(groups))
	for _, records := range groups {
		orders = append(orders, orderFromRecords(records))
	}
	return orders, nil
}

// UpdateOrder replaces the order's line set. Lines carrying a known row
// id keep their identity, created_at and pipeline timestamps; lines
// without one are treated as new.
func (s *Store) UpdateOrder(ctx context.Context, partyID int, o Order) (Order, error) {
	items := make([]sheetdb.Record, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, orderLineRecord(line))
	}
	if err := s.db.UpdateGroup(ctx, s.ordersDef(), partyID, orderSharedRecord(o), items); err != nil {
		return Order{}, err
	}
	return s.GetOrder(ctx, partyID)
}

// UpdateOrderFollowUp applies the same patch to every row of the order
// in place, without touching group membership. Used for pipeline
// timestamps and status flips after the order is placed.
func (s *Store) UpdateOrderFollowUp(ctx context.Context, partyID int, patch sheetdb.Record) (Order, error) {
	if err := s.db.UpdateGroupFollowUp(ctx, s.ordersDef(), partyID, patch); err != nil {
		return Order{}, err
	}
	return s.GetOrder(ctx, partyID)
}

func (s *Store) DeleteOrder(ctx context.Context, partyID int) error {
	return s.db.RemoveGroup(ctx, s.ordersDef(), partyID)
}
