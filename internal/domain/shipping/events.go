package shipping

import "time"

// LabelPendingEvent is emitted when inline label issuance fails after payment
// was captured. The shipping worker retries in the background; issuance is
// idempotent per order id so replays are safe.
type LabelPendingEvent struct {
	OrderID    string
	Reason     string
	OccurredAt time.Time
}

func (LabelPendingEvent) EventName() string { return "shipping.label_pending" }

func NewLabelPendingEvent(orderID, reason string) LabelPendingEvent {
	return LabelPendingEvent{
		OrderID:    orderID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
