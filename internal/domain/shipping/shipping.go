package shipping

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLabelNotFound   = errors.New("shipping: label not found")
	ErrLabelExists     = errors.New("shipping: label already issued for order")
	ErrCarrierRejected = errors.New("shipping: carrier rejected the shipment")
	ErrCarrierTimeout  = errors.New("shipping: carrier request timed out")
)

// Label is the purchased shipping artifact for one order. At most one label
// exists per order id; regeneration returns the stored label unchanged.
type Label struct {
	OrderID        string
	TrackingNumber string
	CarrierCode    string
	LabelPDFRef    string
	BarcodePayload string
	QRPayload      string
	IssuedAt       time.Time
}

// Shipment is the purchase request handed to the carrier.
type Shipment struct {
	OrderID     string
	WeightGrams int
	ItemCount   int
}

// PurchaseResult is the carrier response for a label purchase.
type PurchaseResult struct {
	TrackingNumber string
	CarrierCode    string
	LabelPDFRef    string
}

// CarrierGateway is the network-bound port to the parcel carrier.
type CarrierGateway interface {
	PurchaseLabel(ctx context.Context, shipment Shipment) (*PurchaseResult, error)
}

// Store persists issued labels keyed by order id.
type Store interface {
	Get(ctx context.Context, orderID string) (*Label, error)
	Put(ctx context.Context, label *Label) error
}
