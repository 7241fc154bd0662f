package cart

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("cart: not found")
	ErrItemNotFound = errors.New("cart: item not found")
)

// Cart is the transient pre-order basket, one per user. Items are keyed by
// product; availability checks happen in the application layer where the
// product is in view.
type Cart struct {
	ID        string
	UserID    string
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Item struct {
	ProductID string
	Quantity  int
	AddedAt   time.Time
	UpdatedAt time.Time
}

func New(id, userID string, now time.Time) *Cart {
	return &Cart{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Quantity returns the quantity of the product in the cart, zero when
// absent.
func (c *Cart) Quantity(productID string) int {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

// SetQuantity writes the absolute quantity for a product, adding the item
// when new.
func (c *Cart) SetQuantity(productID string, quantity int, now time.Time) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			c.Items[i].UpdatedAt = now
			c.touch(now)
			return
		}
	}
	c.Items = append(c.Items, Item{
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   now,
		UpdatedAt: now,
	})
	c.touch(now)
}

// Remove drops the product's item. Removing an absent item returns
// ErrItemNotFound.
func (c *Cart) Remove(productID string, now time.Time) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.touch(now)
			return nil
		}
	}
	return ErrItemNotFound
}

// Clear empties the cart. Used after successful order creation.
func (c *Cart) Clear(now time.Time) {
	c.Items = nil
	c.touch(now)
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c *Cart) TotalItems() int {
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	return total
}

func (c *Cart) touch(now time.Time) {
	c.UpdatedAt = now
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Items = append([]Item(nil), c.Items...)
	return &clone
}
