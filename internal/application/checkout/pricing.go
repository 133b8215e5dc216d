package checkout

// ShippingOption is the delivery choice the customer made. Cost applies unless
// the cart subtotal reaches FreeOver (0 disables the threshold). Amounts are
// minor currency units.
type ShippingOption struct {
	Code     string
	Cost     int64
	FreeOver int64
}

// Totals is the frozen price breakdown for an order. Computed once at
// creation; Total always equals Subtotal + Tax + Shipping.
type Totals struct {
	Subtotal int64
	Tax      int64
	Shipping int64
	Total    int64
}

// ComputeTotals applies the tax rate (basis points) and the shipping option to
// the cart subtotal.
func ComputeTotals(subtotal int64, taxRateBps int64, opt ShippingOption) Totals {
	tax := subtotal * taxRateBps / 10000

	shipping := opt.Cost
	if opt.FreeOver > 0 && subtotal >= opt.FreeOver {
		shipping = 0
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
	}
}
