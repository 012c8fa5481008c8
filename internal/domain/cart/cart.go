// Package cart holds shopping carts and prices them with category
// discounts.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a cart does not exist.
	ErrNotFound = errors.New("cart not found")
	// ErrEmpty is returned when checking out a cart without items.
	ErrEmpty = errors.New("cart is empty")
)

// Item is a product and quantity in a cart.
type Item struct {
	ProductID string
	Quantity  int
}

// Cart is a customer's pending selection of products.
type Cart struct {
	ID         string
	CustomerID string
	Items      []Item
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AddItem adds qty of productID, merging with an existing line.
func (c *Cart) AddItem(productID string, qty int) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += qty
			return
		}
	}
	c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty})
}

// RemoveItem drops the line for productID and reports whether it existed.
func (c *Cart) RemoveItem(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Repository persists carts.
type Repository interface {
	Create(ctx context.Context, c *Cart) error
	Get(ctx context.Context, id string) (*Cart, error)
	// Update replaces the stored items of c.
	Update(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id string) error
}
