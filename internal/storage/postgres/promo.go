package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/promo"
)

const (
	promoColumns = `code, description, discount_type, value, min_order_amount, max_discount_amount,
		valid_from, valid_until, usage_limit, usage_count, allowed_customer_types,
		disables_tier_bonuses, stacks_with_seasonal, active`

	getPromoByCodeSQL = `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1`

	listPromosSQL = `SELECT ` + promoColumns + ` FROM promo_codes ORDER BY code`

	// The usage count of an existing code is never reset by an upsert.
	upsertPromoSQL = `INSERT INTO promo_codes (
			code, description, discount_type, value, min_order_amount, max_discount_amount,
			valid_from, valid_until, usage_limit, allowed_customer_types,
			disables_tier_bonuses, stacks_with_seasonal, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			min_order_amount = EXCLUDED.min_order_amount,
			max_discount_amount = EXCLUDED.max_discount_amount,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			usage_limit = EXCLUDED.usage_limit,
			allowed_customer_types = EXCLUDED.allowed_customer_types,
			disables_tier_bonuses = EXCLUDED.disables_tier_bonuses,
			stacks_with_seasonal = EXCLUDED.stacks_with_seasonal,
			active = EXCLUDED.active`

	// The limit check and the increment happen in one statement, so
	// concurrent redemptions can never push usage_count past usage_limit.
	incrementPromoUsageSQL = `UPDATE promo_codes SET usage_count = usage_count + 1
		WHERE code = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`

	promoExistsSQL = `SELECT EXISTS (SELECT 1 FROM promo_codes WHERE code = $1)`
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promo code case-insensitively.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Code, error) {
	key := promo.Normalize(code)
	rows, err := r.pool.Query(ctx, getPromoByCodeSQL, key)
	if err != nil {
		return nil, fmt.Errorf("finding promo code %q: %w", key, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanPromo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, fmt.Errorf("finding promo code %q: %w", key, err)
	}
	return &c, nil
}

// List returns every promo code ordered by code.
func (r *PromoRepository) List(ctx context.Context) ([]promo.Code, error) {
	rows, err := r.pool.Query(ctx, listPromosSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promo codes: %w", err)
	}
	return pgx.CollectRows(rows, scanPromo)
}

// Upsert inserts c or updates the definition of an existing code.
func (r *PromoRepository) Upsert(ctx context.Context, c *promo.Code) error {
	types := make([]string, len(c.AllowedCustomerTypes))
	for i, t := range c.AllowedCustomerTypes {
		types[i] = string(t)
	}

	_, err := r.pool.Exec(ctx, upsertPromoSQL,
		promo.Normalize(c.Code), c.Description, string(c.DiscountType), c.Value,
		c.MinOrderAmount, c.MaxDiscountAmount,
		nullTime(c.ValidFrom), nullTime(c.ValidUntil),
		c.UsageLimit, types,
		c.DisablesTierBonuses, c.StacksWithSeasonalMultiplier, c.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting promo code %q: %w", c.Code, err)
	}
	return nil
}

// IncrementUsage atomically increments the usage counter of code unless
// its limit has been reached.
func (r *PromoRepository) IncrementUsage(ctx context.Context, code string) error {
	key := promo.Normalize(code)
	tag, err := r.pool.Exec(ctx, incrementPromoUsageSQL, key)
	if err != nil {
		return fmt.Errorf("incrementing usage for promo code %q: %w", key, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, promoExistsSQL, key).Scan(&exists); err != nil {
		return fmt.Errorf("checking promo code %q: %w", key, err)
	}
	if !exists {
		return promo.ErrNotFound
	}
	return promo.ErrUsageLimitReached
}

func scanPromo(row pgx.CollectableRow) (promo.Code, error) {
	var (
		c            promo.Code
		discountType string
		validFrom    *time.Time
		validUntil   *time.Time
		usageLimit   int32
		usageCount   int32
		types        []string
	)
	err := row.Scan(
		&c.Code, &c.Description, &discountType, &c.Value, &c.MinOrderAmount, &c.MaxDiscountAmount,
		&validFrom, &validUntil, &usageLimit, &usageCount, &types,
		&c.DisablesTierBonuses, &c.StacksWithSeasonalMultiplier, &c.Active,
	)
	c.DiscountType = promo.DiscountType(discountType)
	c.ValidFrom = timeOrZero(validFrom)
	c.ValidUntil = timeOrZero(validUntil)
	c.UsageLimit = int(usageLimit)
	c.UsageCount = int(usageCount)
	for _, t := range types {
		c.AllowedCustomerTypes = append(c.AllowedCustomerTypes, customer.Type(t))
	}
	return c, err
}
