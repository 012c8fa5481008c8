package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/promo"
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository in memory. A single mutex
// serializes usage increments with their limit check.
type PromoRepository struct {
	mu     sync.Mutex
	byCode map[string]*promo.Code
}

// NewPromoRepository returns a PromoRepository seeded with codes.
func NewPromoRepository(codes ...promo.Code) *PromoRepository {
	r := &PromoRepository{byCode: make(map[string]*promo.Code, len(codes))}
	for i := range codes {
		c := clonePromo(&codes[i])
		r.byCode[promo.Normalize(c.Code)] = c
	}
	return r
}

// FindByCode looks a code up case-insensitively.
func (r *PromoRepository) FindByCode(_ context.Context, code string) (*promo.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byCode[promo.Normalize(code)]
	if !ok {
		return nil, promo.ErrNotFound
	}
	return clonePromo(c), nil
}

// List returns every code ordered by code.
func (r *PromoRepository) List(_ context.Context) ([]promo.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]promo.Code, 0, len(r.byCode))
	for _, c := range r.byCode {
		out = append(out, *clonePromo(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Upsert stores c. The usage count of an existing code is kept.
func (r *PromoRepository) Upsert(_ context.Context, c *promo.Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := promo.Normalize(c.Code)
	stored := clonePromo(c)
	stored.Code = key
	if existing, ok := r.byCode[key]; ok {
		stored.UsageCount = existing.UsageCount
	}
	r.byCode[key] = stored
	return nil
}

// IncrementUsage atomically checks the usage limit and increments the
// counter.
func (r *PromoRepository) IncrementUsage(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byCode[promo.Normalize(code)]
	if !ok {
		return promo.ErrNotFound
	}
	if c.Exhausted() {
		return promo.ErrUsageLimitReached
	}
	c.UsageCount++
	return nil
}

func clonePromo(c *promo.Code) *promo.Code {
	cp := *c
	cp.AllowedCustomerTypes = append([]customer.Type(nil), c.AllowedCustomerTypes...)
	return &cp
}
