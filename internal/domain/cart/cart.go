package cart

import "errors"

var (
	ErrEmpty           = errors.New("cart: at least one line is required")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("cart: unit price must be greater than zero")
	ErrDuplicateLine   = errors.New("cart: duplicate product line")
)

// Line is a single cart position. UnitPrice is the price the customer saw when
// the item was added, in minor currency units.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

// Snapshot is the immutable cart handed to the checkout orchestrator. It is
// validated once at construction and never mutated afterwards.
type Snapshot struct {
	lines []Line
}

func NewSnapshot(lines []Line) (Snapshot, error) {
	if len(lines) == 0 {
		return Snapshot{}, ErrEmpty
	}
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Snapshot{}, ErrInvalidQuantity
		}
		if l.UnitPrice <= 0 {
			return Snapshot{}, ErrInvalidPrice
		}
		if _, ok := seen[l.ProductID]; ok {
			return Snapshot{}, ErrDuplicateLine
		}
		seen[l.ProductID] = struct{}{}
	}
	copied := make([]Line, len(lines))
	copy(copied, lines)
	return Snapshot{lines: copied}, nil
}

// Lines returns a copy of the line slice preserving the original order.
func (s Snapshot) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s Snapshot) Subtotal() int64 {
	var sum int64
	for _, l := range s.lines {
		sum += l.UnitPrice * int64(l.Quantity)
	}
	return sum
}

func (s Snapshot) TotalQuantity() int {
	var n int
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}
