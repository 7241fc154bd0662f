package order

// PricingPolicy supplies tax and delivery fee for an order subtotal. The
// core only sums what the policy returns; real tax computation belongs to a
// collaborator.
type PricingPolicy interface {
	TaxCents(subtotalCents int64) int64
	DeliveryFeeCents(subtotalCents int64) int64
}

type zeroPricing struct{}

func (zeroPricing) TaxCents(int64) int64         { return 0 }
func (zeroPricing) DeliveryFeeCents(int64) int64 { return 0 }

// ZeroPricing charges no tax and no delivery fee, the default.
func ZeroPricing() PricingPolicy { return zeroPricing{} }
