package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	dominv "github.com/shoplite/checkout-engine/internal/domain/inventory"
	"github.com/shoplite/checkout-engine/internal/observability"
	"github.com/shoplite/checkout-engine/internal/observability/logctx"
)

const (
	ledgerService = "inventory-ledger"

	// Bounded optimistic retries per product line before surfacing contention.
	defaultMaxAttempts = 5
	defaultHoldTTL     = 15 * time.Minute
)

type IDGenerator interface {
	NewID() string
}

// Ledger coordinates stock holds across concurrent checkouts. Conflicting
// updates serialize per product id through the repository's optimistic
// versioning; unrelated products never contend.
type Ledger struct {
	repo        dominv.Repository
	idGen       IDGenerator
	maxAttempts int
	holdTTL     time.Duration

	mu           sync.Mutex
	reservations map[string]*dominv.Reservation

	log         observability.Logger
	conflictCtr observability.Counter
}

type LedgerOption func(*Ledger)

// WithHoldTTL overrides the default expiry for new reservations.
func WithHoldTTL(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.holdTTL = d
		}
	}
}

// WithMaxAttempts overrides the bounded CAS retry count.
func WithMaxAttempts(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func NewLedger(repo dominv.Repository, idGen IDGenerator, tel observability.Observability, opts ...LedgerOption) *Ledger {
	if tel == nil {
		tel = observability.Nop()
	}
	l := &Ledger{
		repo:         repo,
		idGen:        idGen,
		maxAttempts:  defaultMaxAttempts,
		holdTTL:      defaultHoldTTL,
		reservations: make(map[string]*dominv.Reservation),
		log:          tel.Logger().With(observability.F("service", ledgerService)),
		conflictCtr:  tel.Metrics().Counter(observability.MReservationConflicts),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve atomically holds every requested line or none of them. Lines already
// held by this call are rolled back before an error is returned, so a failed
// reservation never leaks partial holds.
func (l *Ledger) Reserve(ctx context.Context, lines []dominv.ReservationLine) (*dominv.Reservation, error) {
	if len(lines) == 0 {
		return nil, dominv.ErrInvalidQuantity
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, dominv.ErrInvalidQuantity
		}
	}

	logger := logctx.FromOr(ctx, l.log)

	held := make([]dominv.ReservationLine, 0, len(lines))
	for _, line := range lines {
		if err := l.holdLine(ctx, line); err != nil {
			l.rollback(ctx, held)
			return nil, err
		}
		held = append(held, line)
	}

	now := time.Now().UTC()
	res := &dominv.Reservation{
		Token:     l.idGen.NewID(),
		Lines:     held,
		State:     dominv.ReservationHeld,
		ExpiresAt: now.Add(l.holdTTL),
		CreatedAt: now,
	}

	l.mu.Lock()
	l.reservations[res.Token] = res
	l.mu.Unlock()

	logger.Debug("reservation_held",
		observability.F("token", res.Token),
		observability.F("lines", len(held)),
	)
	return cloneReservation(res), nil
}

// Confirm permanently decrements the held stock and retires the token.
// Confirming an already-confirmed token is a no-op.
func (l *Ledger) Confirm(ctx context.Context, token string) error {
	l.mu.Lock()
	res, ok := l.reservations[token]
	if !ok {
		l.mu.Unlock()
		return dominv.ErrTokenNotFound
	}
	switch res.State {
	case dominv.ReservationConfirmed:
		l.mu.Unlock()
		return nil
	case dominv.ReservationReleased:
		l.mu.Unlock()
		return dominv.ErrAlreadyReleased
	}
	res.State = dominv.ReservationConfirmed
	lines := res.Lines
	l.mu.Unlock()

	for _, line := range lines {
		if err := l.mutateRecord(ctx, line.ProductID, func(rec *dominv.Record) error {
			return rec.CommitHold(line.Quantity)
		}); err != nil {
			logctx.FromOr(ctx, l.log).Error("reservation_confirm_failed",
				observability.F("token", token),
				observability.F("product_id", line.ProductID),
				observability.F("error", err.Error()),
			)
			return fmt.Errorf("inventory: confirm %s: %w", line.ProductID, err)
		}
	}
	return nil
}

// Release returns held stock to the available pool and retires the token.
// Releasing an already-released token is a no-op; releasing a confirmed token
// is also a no-op since the stock was already permanently decremented.
func (l *Ledger) Release(ctx context.Context, token string) error {
	l.mu.Lock()
	res, ok := l.reservations[token]
	if !ok {
		l.mu.Unlock()
		return dominv.ErrTokenNotFound
	}
	if res.State != dominv.ReservationHeld {
		l.mu.Unlock()
		return nil
	}
	res.State = dominv.ReservationReleased
	lines := res.Lines
	l.mu.Unlock()

	l.rollback(ctx, lines)
	return nil
}

// ReleaseExpired sweeps reservations whose TTL elapsed without being confirmed.
// It returns the number of reservations released.
func (l *Ledger) ReleaseExpired(ctx context.Context, now time.Time) int {
	l.mu.Lock()
	var expired []string
	for token, res := range l.reservations {
		if res.Expired(now) {
			expired = append(expired, token)
		}
	}
	l.mu.Unlock()

	for _, token := range expired {
		if err := l.Release(ctx, token); err != nil && !errors.Is(err, dominv.ErrTokenNotFound) {
			logctx.FromOr(ctx, l.log).Warn("expired_reservation_release_failed",
				observability.F("token", token),
				observability.F("error", err.Error()),
			)
		}
	}
	return len(expired)
}

// holdLine runs the bounded optimistic loop for a single product.
func (l *Ledger) holdLine(ctx context.Context, line dominv.ReservationLine) error {
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := l.repo.Get(ctx, line.ProductID)
		if err != nil {
			return fmt.Errorf("inventory: load %s: %w", line.ProductID, err)
		}
		if err := rec.Hold(line.Quantity); err != nil {
			return err
		}
		err = l.repo.Save(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, dominv.ErrVersionConflict) {
			return fmt.Errorf("inventory: save %s: %w", line.ProductID, err)
		}
		l.conflictCtr.Add(1, observability.L("product_id", line.ProductID))
	}
	return dominv.ErrContention
}

// rollback undoes holds taken earlier in the same call, in reverse order.
func (l *Ledger) rollback(ctx context.Context, held []dominv.ReservationLine) {
	for i := len(held) - 1; i >= 0; i-- {
		line := held[i]
		if err := l.mutateRecord(ctx, line.ProductID, func(rec *dominv.Record) error {
			return rec.ReleaseHold(line.Quantity)
		}); err != nil {
			// A failed rollback leaves stock parked in reserved until the
			// expiry sweep; loud log so operators can reconcile sooner.
			logctx.FromOr(ctx, l.log).Error("reservation_rollback_failed",
				observability.F("product_id", line.ProductID),
				observability.F("quantity", line.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}
}

// mutateRecord applies fn under the same bounded CAS loop used for holds.
func (l *Ledger) mutateRecord(ctx context.Context, productID string, fn func(*dominv.Record) error) error {
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		rec, err := l.repo.Get(ctx, productID)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		err = l.repo.Save(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, dominv.ErrVersionConflict) {
			return err
		}
		l.conflictCtr.Add(1, observability.L("product_id", productID))
	}
	return dominv.ErrContention
}

func cloneReservation(res *dominv.Reservation) *dominv.Reservation {
	if res == nil {
		return nil
	}
	clone := *res
	clone.Lines = make([]dominv.ReservationLine, len(res.Lines))
	copy(clone.Lines, res.Lines)
	return &clone
}
