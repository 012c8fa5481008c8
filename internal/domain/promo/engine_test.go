package promo

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-discounts/internal/domain/customer"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

// mockRepo is a minimal in-test Repository keyed by normalized code.
type mockRepo struct {
	codes   map[string]*Code
	findErr error
}

func newMockRepo(codes ...Code) *mockRepo {
	m := &mockRepo{codes: make(map[string]*Code)}
	for i := range codes {
		c := codes[i]
		m.codes[Normalize(c.Code)] = &c
	}
	return m
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Code, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.codes[Normalize(code)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context) ([]Code, error) {
	out := make([]Code, 0, len(m.codes))
	for _, c := range m.codes {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockRepo) Upsert(_ context.Context, c *Code) error {
	cp := *c
	m.codes[Normalize(c.Code)] = &cp
	return nil
}

func (m *mockRepo) IncrementUsage(_ context.Context, code string) error {
	c, ok := m.codes[Normalize(code)]
	if !ok {
		return ErrNotFound
	}
	if c.Exhausted() {
		return ErrUsageLimitReached
	}
	c.UsageCount++
	return nil
}

func newTestEngine(repo Repository) *Engine {
	e := NewEngine(repo)
	e.now = func() time.Time { return fixedNow }
	return e
}

func baseCode(code string) Code {
	return Code{
		Code:                         code,
		DiscountType:                 Percentage,
		Value:                        d("10"),
		ValidFrom:                    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:                   time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC),
		StacksWithSeasonalMultiplier: true,
		Active:                       true,
	}
}

func TestEngine_Validate(t *testing.T) {
	inactive := baseCode("OLD")
	inactive.Active = false

	future := baseCode("SOON")
	future.ValidFrom = fixedNow.Add(time.Hour)

	expired := baseCode("GONE")
	expired.ValidUntil = fixedNow.Add(-time.Hour)

	exhausted := baseCode("USED")
	exhausted.UsageLimit = 3
	exhausted.UsageCount = 3

	minimum := baseCode("SAVE50")
	minimum.DiscountType = FixedAmount
	minimum.Value = d("50")
	minimum.MinOrderAmount = dp("500")

	vipOnly := baseCode("VIPEXTRA")
	vipOnly.AllowedCustomerTypes = []customer.Type{customer.VIP, customer.Enterprise}

	// Inactive and expired at once: the first gate wins.
	both := baseCode("BOTH")
	both.Active = false
	both.ValidUntil = fixedNow.Add(-time.Hour)

	open := baseCode("OPEN")
	open.ValidFrom = time.Time{}
	open.ValidUntil = time.Time{}

	engine := newTestEngine(newMockRepo(
		baseCode("WELCOME10"), inactive, future, expired, exhausted, minimum, vipOnly, both, open,
	))

	tests := []struct {
		name      string
		code      string
		typ       customer.Type
		amount    string
		wantValid bool
		wantError string
	}{
		{name: "valid", code: "WELCOME10", typ: customer.Regular, amount: "90", wantValid: true},
		{name: "case insensitive", code: " welcome10 ", typ: customer.Regular, amount: "90", wantValid: true},
		{name: "unknown", code: "NOPE", typ: customer.Regular, amount: "90", wantError: "Invalid promo code"},
		{name: "inactive", code: "OLD", typ: customer.Regular, amount: "90", wantError: "Promo code is no longer active"},
		{name: "not yet valid", code: "SOON", typ: customer.Regular, amount: "90", wantError: "Promo code is not yet valid"},
		{name: "expired", code: "GONE", typ: customer.Regular, amount: "90", wantError: "Promo code has expired"},
		{name: "exhausted", code: "USED", typ: customer.Regular, amount: "90", wantError: "Promo code usage limit reached"},
		{name: "below minimum", code: "SAVE50", typ: customer.Regular, amount: "499.99", wantError: "Minimum order amount of $500.00 required"},
		{name: "at minimum", code: "SAVE50", typ: customer.Regular, amount: "500", wantValid: true},
		{name: "customer type", code: "VIPEXTRA", typ: customer.Loyalty, amount: "90", wantError: "Promo code is only available for VIP, ENTERPRISE customers"},
		{name: "allowed customer type", code: "VIPEXTRA", typ: customer.Enterprise, amount: "90", wantValid: true},
		{name: "first failing gate only", code: "BOTH", typ: customer.Regular, amount: "90", wantError: "Promo code is no longer active"},
		{name: "open validity window", code: "OPEN", typ: customer.Regular, amount: "90", wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := engine.Validate(context.Background(), tt.code, tt.typ, d(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, v.Valid)
			if tt.wantValid {
				assert.Empty(t, v.Errors)
				require.NotNil(t, v.Code)
				return
			}
			assert.Equal(t, []string{tt.wantError}, v.Errors)
			assert.Nil(t, v.Code)
		})
	}
}

func TestEngine_Validate_Warnings(t *testing.T) {
	restrictive := baseCode("FLASH")
	restrictive.DisablesTierBonuses = true
	restrictive.StacksWithSeasonalMultiplier = false

	engine := newTestEngine(newMockRepo(restrictive, baseCode("PLAIN")))

	v, err := engine.Validate(context.Background(), "FLASH", customer.VIP, d("100"))
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, []string{WarnDisablesTierBonuses, WarnNoSeasonalStacking}, v.Warnings)

	v, err = engine.Validate(context.Background(), "PLAIN", customer.VIP, d("100"))
	require.NoError(t, err)
	assert.Empty(t, v.Warnings)
}

func TestEngine_Validate_RepositoryError(t *testing.T) {
	repo := newMockRepo()
	repo.findErr = errors.New("connection reset")
	engine := newTestEngine(repo)

	v, err := engine.Validate(context.Background(), "WELCOME10", customer.VIP, d("100"))
	require.Error(t, err)
	assert.Nil(t, v)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestEngine_Redeem_UntilExhausted(t *testing.T) {
	limited := baseCode("TWICE")
	limited.UsageLimit = 2
	repo := newMockRepo(limited)
	engine := newTestEngine(repo)
	ctx := context.Background()

	require.NoError(t, engine.Redeem(ctx, "TWICE"))
	require.NoError(t, engine.Redeem(ctx, "twice"))

	v, err := engine.Validate(ctx, "TWICE", customer.Regular, d("100"))
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"Promo code usage limit reached"}, v.Errors)

	require.ErrorIs(t, engine.Redeem(ctx, "TWICE"), ErrUsageLimitReached)
	assert.Equal(t, 2, repo.codes["TWICE"].UsageCount)
}

func TestEngine_ListActive(t *testing.T) {
	inactive := baseCode("OLD")
	inactive.Active = false
	expired := baseCode("GONE")
	expired.ValidUntil = fixedNow.Add(-time.Hour)
	exhausted := baseCode("USED")
	exhausted.UsageLimit = 1
	exhausted.UsageCount = 1

	engine := newTestEngine(newMockRepo(baseCode("WELCOME10"), inactive, expired, exhausted))

	codes, err := engine.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "WELCOME10", codes[0].Code)
}
