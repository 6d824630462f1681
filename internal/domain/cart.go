package domain

// DefaultTaxBasisPoints is the 16% sales tax applied at checkout.
const DefaultTaxBasisPoints = 1600

// PlanName returns the product name shown for a tier, e.g. "Plan Ultimate".
func PlanName(t Tier) string {
	return "Plan " + t.DisplayName()
}

// CartItem is the single plan waiting to be bought.
type CartItem struct {
	PlanType Tier   `json:"plan_type"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
}

// Cart holds at most one item. It is passed by value into checkout.
type Cart struct {
	Item *CartItem `json:"item,omitempty"`
}

// NewCartItem prices plan at price.
func NewCartItem(plan Tier, price int64) CartItem {
	return CartItem{PlanType: plan, Name: PlanName(plan), Price: price}
}

// Put replaces whatever the cart held with item.
func (c *Cart) Put(item CartItem) {
	c.Item = &item
}

// Remove empties the cart if it holds plan and reports whether it did.
func (c *Cart) Remove(plan Tier) bool {
	if c.Item == nil || c.Item.PlanType != plan {
		return false
	}
	c.Item = nil
	return true
}

// IsEmpty reports whether the cart holds nothing.
func (c Cart) IsEmpty() bool {
	return c.Item == nil
}

// CartSummary is the priced view of a cart.
type CartSummary struct {
	Item     *CartItem `json:"item,omitempty"`
	Subtotal int64     `json:"subtotal"`
	TaxRate  string    `json:"tax_rate"`
	Tax      int64     `json:"tax"`
	Total    int64     `json:"total"`
}

// Summary prices the cart with the given tax rate in basis points.
func (c Cart) Summary(taxBasisPoints int64) CartSummary {
	s := CartSummary{Item: c.Item, TaxRate: FormatAmount(taxBasisPoints) + "%"}
	if c.Item == nil {
		return s
	}
	s.Subtotal = c.Item.Price
	s.Tax = TaxAmount(c.Item.Price, taxBasisPoints)
	s.Total = s.Subtotal + s.Tax
	return s
}
