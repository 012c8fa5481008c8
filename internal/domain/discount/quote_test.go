package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/rules"
)

func newTestQuoter(t *testing.T) *Quoter {
	t.Helper()
	q, err := NewQuoter(rules.Default(), metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)
	return q
}

func TestQuoter_Quote(t *testing.T) {
	q := newTestQuoter(t)
	ctx := context.Background()

	t.Run("VIP Black Friday", func(t *testing.T) {
		quote, err := q.Quote(ctx, QuoteRequest{CustomerType: "vip", Amount: d("1000"), OrderDate: blackFriday})
		require.NoError(t, err)
		assert.Equal(t, customer.VIP, quote.RequestedType)
		assert.Equal(t, customer.VIP, quote.EffectiveType)
		assertDecimal(t, "700", quote.Result.FinalAmount)
		assertDecimal(t, "30", quote.Result.DiscountPercentage())
		assert.Empty(t, quote.Warnings)
	})

	t.Run("enterprise downgrade keeps requested type", func(t *testing.T) {
		quote, err := q.Quote(ctx, QuoteRequest{CustomerType: "ENTERPRISE", Amount: d("1000"), OrderDate: offSeason})
		require.NoError(t, err)
		assert.Equal(t, customer.Enterprise, quote.RequestedType)
		assert.Equal(t, customer.VIP, quote.EffectiveType)
		assertDecimal(t, "800", quote.Result.FinalAmount)
		assert.Len(t, quote.Warnings, 1)
	})

	t.Run("promotional minimum gate", func(t *testing.T) {
		quote, err := q.Quote(ctx, QuoteRequest{CustomerType: "VIP", Amount: d("80"), OrderDate: blackFriday})
		require.NoError(t, err)
		assertDecimal(t, "1", quote.Result.SeasonalMultiplier)
		assertDecimal(t, "72", quote.Result.FinalAmount)
		require.Len(t, quote.Warnings, 1)
		assert.Contains(t, quote.Warnings[0], "Black Friday")
	})

	t.Run("invalid request is not computed", func(t *testing.T) {
		quote, err := q.Quote(ctx, QuoteRequest{CustomerType: "BOGUS", Amount: d("-5"), OrderDate: offSeason})
		require.Error(t, err)
		assert.Nil(t, quote)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Len(t, verr.Errors, 2)
	})

	t.Run("skip tier bonus", func(t *testing.T) {
		quote, err := q.Quote(ctx, QuoteRequest{
			CustomerType:  "VIP",
			Amount:        d("1000"),
			OrderDate:     offSeason,
			SkipTierBonus: true,
		})
		require.NoError(t, err)
		assertDecimal(t, "900", quote.Result.FinalAmount)
	})
}

func TestQuoter_DefaultsOrderDate(t *testing.T) {
	q := newTestQuoter(t)
	now := time.Date(2025, time.November, 29, 15, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	quote, err := q.Quote(context.Background(), QuoteRequest{CustomerType: "LOYALTY", Amount: d("1000")})
	require.NoError(t, err)
	assert.Equal(t, now, quote.OrderDate)
	assert.Equal(t, "Black Friday", quote.Result.PeriodName)
	assertDecimal(t, "800", quote.Result.FinalAmount)
}

// counterValue sums every data point of the named int64 counter.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestQuoter_Restrict(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	q, err := NewQuoter(rules.Default(), sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), tracenoop.NewTracerProvider())
	require.NoError(t, err)
	ctx := context.Background()

	quote, err := q.Quote(ctx, QuoteRequest{CustomerType: "VIP", Amount: d("1000"), OrderDate: blackFriday})
	require.NoError(t, err)
	assertDecimal(t, "2", quote.Result.SeasonalMultiplier)
	assertDecimal(t, "700", quote.Result.FinalAmount)

	noTier, err := q.Restrict(ctx, quote, true, false)
	require.NoError(t, err)
	assertDecimal(t, "0", noTier.Result.TierBonus)
	assertDecimal(t, "2", noTier.Result.SeasonalMultiplier)
	assertDecimal(t, "800", noTier.Result.FinalAmount)
	assert.Equal(t, quote.EffectiveType, noTier.EffectiveType)

	noSeasonal, err := q.Restrict(ctx, quote, false, true)
	require.NoError(t, err)
	assertDecimal(t, "1", noSeasonal.Result.SeasonalMultiplier)
	assert.Empty(t, noSeasonal.Result.PeriodName)
	assertDecimal(t, "800", noSeasonal.Result.FinalAmount)

	// The original quote is left untouched.
	assertDecimal(t, "700", quote.Result.FinalAmount)

	downgraded, err := q.Quote(ctx, QuoteRequest{CustomerType: "ENTERPRISE", Amount: d("1000"), OrderDate: offSeason})
	require.NoError(t, err)
	require.Len(t, downgraded.Warnings, 1)
	restricted, err := q.Restrict(ctx, downgraded, true, true)
	require.NoError(t, err)
	assert.Equal(t, downgraded.Warnings, restricted.Warnings)
	assertDecimal(t, "900", restricted.Result.FinalAmount)

	assert.Equal(t, int64(2), counterValue(t, reader, "discount.quotes"))
	assert.Equal(t, int64(1), counterValue(t, reader, "discount.warnings"))
}
