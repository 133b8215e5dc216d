package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrInvalidItems           = errors.New("order: at least one item is required")
	ErrInvalidAmount          = errors.New("order: amounts must be zero or greater")
	ErrTotalMismatch          = errors.New("order: total must equal subtotal plus tax plus shipping")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Item is a frozen order line. Prices are the ones the customer saw at
// checkout; they are never recomputed from the live catalog.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

// Order is the durable aggregate produced by a successful (or
// provider-pending) payment capture. Totals are computed once at creation;
// after the order advances past confirmed only Status, TrackingNumber and
// LabelPending may change, and only through the repository update path.
type Order struct {
	ID             string
	CustomerID     string
	IdempotencyKey string
	Items          []Item
	Subtotal       int64
	Tax            int64
	ShippingCost   int64
	Total          int64
	Currency       string
	Status         Status
	FailureReason  string
	PaymentID      string
	PaymentMethod  string
	// ReservationToken is kept only while payment is provider-pending so
	// reconciliation can confirm or release the underlying stock hold.
	ReservationToken string
	TrackingNumber   string
	LabelPending     bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func New(id, customerID, idempotencyKey string, items []Item, subtotal, tax, shippingCost int64, currency string, status Status) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrInvalidItems
	}
	if subtotal < 0 || tax < 0 || shippingCost < 0 {
		return nil, ErrInvalidAmount
	}
	if status != StatusPending && status != StatusConfirmed {
		return nil, ErrInvalidStateTransition
	}

	copied := make([]Item, len(items))
	copy(copied, items)

	now := time.Now().UTC()
	return &Order{
		ID:             id,
		CustomerID:     customerID,
		IdempotencyKey: idempotencyKey,
		Items:          copied,
		Subtotal:       subtotal,
		Tax:            tax,
		ShippingCost:   shippingCost,
		Total:          subtotal + tax + shippingCost,
		Currency:       currency,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// PaymentConfirmed transitions a pending-payment order to confirmed.
func (o *Order) PaymentConfirmed() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnPaymentConfirmed(o) })
}

// Cancelled terminates the order, recording why.
func (o *Order) Cancelled(reason string) error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnCancelled(o, reason) })
}

// StartedProcessing moves a confirmed order into fulfilment.
func (o *Order) StartedProcessing() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnStartedProcessing(o) })
}

// Shipped marks the parcel as handed to the carrier.
func (o *Order) Shipped() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnShipped(o) })
}

// Delivered marks the parcel as received.
func (o *Order) Delivered() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnDelivered(o) })
}

// LabelIssued records the tracking number and clears the pending-label flag.
// Allowed only while the order is confirmed or processing.
func (o *Order) LabelIssued(trackingNumber string) error {
	if o.Status != StatusConfirmed && o.Status != StatusProcessing {
		return ErrInvalidStateTransition
	}
	o.TrackingNumber = trackingNumber
	o.LabelPending = false
	o.touch()
	return nil
}

// MarkLabelPending flags the order for background label retry.
func (o *Order) MarkLabelPending() {
	o.LabelPending = true
	o.touch()
}

func (o *Order) apply(fn func(OrderState) (OrderState, error)) error {
	next, err := fn(stateFor(o.Status))
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = make([]Item, len(o.Items))
	copy(clone.Items, o.Items)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
