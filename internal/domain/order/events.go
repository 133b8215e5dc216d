package order

import "time"

// OrderConfirmedEvent is emitted once payment for an order is captured. It is
// handled by the shipping and notification contexts.
type OrderConfirmedEvent struct {
	OrderID    string
	CustomerID string
	Total      int64
	OccurredAt time.Time
}

func (OrderConfirmedEvent) EventName() string { return "order.confirmed" }

func NewOrderConfirmedEvent(o *Order) OrderConfirmedEvent {
	return OrderConfirmedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Total:      o.Total,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted when a pending-payment order is cancelled
// during reconciliation.
type OrderCancelledEvent struct {
	OrderID    string
	Reason     string
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order, reason string) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
