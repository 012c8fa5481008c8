package memory

import (
	"context"
	"sync"

	"github.com/xenking/kart-discounts/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository in memory.
type CartRepository struct {
	mu   sync.RWMutex
	byID map[string]cart.Cart
}

// NewCartRepository returns an empty CartRepository.
func NewCartRepository() *CartRepository {
	return &CartRepository{byID: make(map[string]cart.Cart)}
}

// Create stores a new cart.
func (r *CartRepository) Create(_ context.Context, c *cart.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; ok {
		return errDuplicate("cart", c.ID)
	}
	r.byID[c.ID] = cloneCart(c)
	return nil
}

// Get returns a cart by ID.
func (r *CartRepository) Get(_ context.Context, id string) (*cart.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := cloneCart(&c)
	return &cp, nil
}

// Update replaces a stored cart.
func (r *CartRepository) Update(_ context.Context, c *cart.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; !ok {
		return cart.ErrNotFound
	}
	r.byID[c.ID] = cloneCart(c)
	return nil
}

// Delete removes a cart.
func (r *CartRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return cart.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func cloneCart(c *cart.Cart) cart.Cart {
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	return cp
}
