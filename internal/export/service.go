package export

import (
	"context"
	"fmt"

	"opsdesk/api/internal/store"
)

// OrderSource supplies orders for export.
type OrderSource interface {
	GetOrder(ctx context.Context, partyID int) (store.Order, error)
}

// Service provides order export functionality
type Service struct {
	orders OrderSource
}

// NewService creates a new export service
func NewService(orders OrderSource) *Service {
	return &Service{orders: orders}
}

// Export renders an order in the requested format.
func (s *Service) Export(ctx context.Context, partyID int, format Format) (*Result, error) {
	order, err := s.orders.GetOrder(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	html, err := RenderOrderHTML(order)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := fmt.Sprintf("order-%d-%s", order.PartyID, order.Customer)
	switch format {
	case FormatPDF:
		return exportPDF(html, title)
	case FormatDOCX:
		return exportDOCX(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
