package inventory

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrVersionConflict   = errors.New("inventory: version conflict")
	ErrContention        = errors.New("inventory: too much contention, retry later")
	ErrTokenNotFound     = errors.New("inventory: reservation token not found")
	ErrAlreadyReleased   = errors.New("inventory: reservation already released")
)

// Record is the per-product stock counter pair. Version supports optimistic
// concurrency: a save with a stale version fails with ErrVersionConflict.
type Record struct {
	ProductID string
	Available int
	Reserved  int
	Version   uint64
	UpdatedAt time.Time
}

func NewRecord(productID string, available int) (*Record, error) {
	if available < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Record{
		ProductID: productID,
		Available: available,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Hold moves qty from available to reserved.
func (r *Record) Hold(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > r.Available {
		return ErrInsufficientStock
	}
	r.Available -= qty
	r.Reserved += qty
	r.touch()
	return nil
}

// ReleaseHold returns qty from reserved to available.
func (r *Record) ReleaseHold(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > r.Reserved {
		qty = r.Reserved
	}
	r.Reserved -= qty
	r.Available += qty
	r.touch()
	return nil
}

// CommitHold permanently removes qty from the reserved pool.
func (r *Record) CommitHold(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > r.Reserved {
		qty = r.Reserved
	}
	r.Reserved -= qty
	r.touch()
	return nil
}

func (r *Record) touch() {
	r.UpdatedAt = time.Now().UTC()
}

// ReservationState tracks the lifecycle of a reservation token.
type ReservationState string

const (
	ReservationHeld      ReservationState = "held"
	ReservationConfirmed ReservationState = "confirmed"
	ReservationReleased  ReservationState = "released"
)

// ReservationLine is one held position inside a reservation.
type ReservationLine struct {
	ProductID string
	Quantity  int
}

// Reservation is the opaque handle returned by a successful Reserve call. It
// is owned by the orchestrator run that created it until confirmed or released.
type Reservation struct {
	Token     string
	Lines     []ReservationLine
	State     ReservationState
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r *Reservation) Expired(now time.Time) bool {
	return r.State == ReservationHeld && now.After(r.ExpiresAt)
}
