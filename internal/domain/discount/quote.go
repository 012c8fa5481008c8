package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/rules"
)

const instrumentationName = "github.com/xenking/kart-discounts/internal/domain/discount"

// ValidationError is returned by Quote when the request fails validation.
// It carries every error found, not only the first.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return "invalid discount request: " + strings.Join(e.Errors, "; ")
}

// QuoteRequest is a raw discount request as received from a client.
type QuoteRequest struct {
	CustomerType string
	Amount       decimal.Decimal
	// OrderDate defaults to the current time when zero.
	OrderDate time.Time
	// SkipTierBonus and SkipSeasonal suppress the respective factors, used
	// when a promo code restricts stacking.
	SkipTierBonus bool
	SkipSeasonal  bool
}

// Quote is a priced discount request.
type Quote struct {
	// RequestedType is the type the client asked for, EffectiveType the one
	// used for pricing after downgrades.
	RequestedType customer.Type
	EffectiveType customer.Type
	OrderDate     time.Time
	Result        Result
	Warnings      []string
}

// Quoter validates and prices discount requests.
type Quoter struct {
	validator  *Validator
	calculator *Calculator
	rules      *rules.Table
	now        func() time.Time

	tracer   trace.Tracer
	quotes   metric.Int64Counter
	rejected metric.Int64Counter
	warnings metric.Int64Counter
	capped   metric.Int64Counter
}

// NewQuoter creates a Quoter for table, instrumented with the given
// providers.
func NewQuoter(table *rules.Table, mp metric.MeterProvider, tp trace.TracerProvider) (*Quoter, error) {
	meter := mp.Meter(instrumentationName)
	q := &Quoter{
		validator:  NewValidator(table),
		calculator: NewCalculator(table),
		rules:      table,
		now:        time.Now,
		tracer:     tp.Tracer(instrumentationName),
	}

	var err error
	if q.quotes, err = meter.Int64Counter("discount.quotes",
		metric.WithDescription("Number of priced discount requests"),
	); err != nil {
		return nil, errors.Wrap(err, "create quotes counter")
	}
	if q.rejected, err = meter.Int64Counter("discount.rejected",
		metric.WithDescription("Number of discount requests rejected by validation"),
	); err != nil {
		return nil, errors.Wrap(err, "create rejected counter")
	}
	if q.warnings, err = meter.Int64Counter("discount.warnings",
		metric.WithDescription("Number of policy warnings emitted"),
	); err != nil {
		return nil, errors.Wrap(err, "create warnings counter")
	}
	if q.capped, err = meter.Int64Counter("discount.capped",
		metric.WithDescription("Number of quotes limited by the customer type cap"),
	); err != nil {
		return nil, errors.Wrap(err, "create capped counter")
	}
	return q, nil
}

// Validator returns the request validator used by q.
func (q *Quoter) Validator() *Validator { return q.validator }

// Rules returns the rule table q prices against.
func (q *Quoter) Rules() *rules.Table { return q.rules }

// Quote validates req and computes its discount. Invalid requests yield a
// *ValidationError and no computation is performed.
func (q *Quoter) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := q.tracer.Start(ctx, "discount.Quote",
		trace.WithAttributes(attribute.String("customer.type", req.CustomerType)),
	)
	defer span.End()

	date := req.OrderDate
	if date.IsZero() {
		date = q.now()
	}

	check := q.validator.Validate(req.CustomerType, req.Amount, date)
	if n := len(check.Warnings); n > 0 {
		q.warnings.Add(ctx, int64(n))
	}
	if !check.Valid {
		q.rejected.Add(ctx, 1)
		span.SetStatus(codes.Error, "validation failed")
		return nil, &ValidationError{Errors: check.Errors, Warnings: check.Warnings}
	}

	// Validate has already accepted the type.
	requested, _ := customer.ParseType(req.CustomerType)
	effective := q.validator.EffectiveCustomerType(requested, req.Amount)
	period, _ := q.rules.QualifyingPeriodFor(date, req.Amount)

	res, err := q.calculator.Compute(Context{
		CustomerType:  effective,
		Amount:        req.Amount,
		OrderDate:     date,
		Period:        period,
		SkipTierBonus: req.SkipTierBonus,
		SkipSeasonal:  req.SkipSeasonal,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrap(err, "compute discount")
	}

	attrs := metric.WithAttributes(attribute.String("customer.type", string(effective)))
	q.quotes.Add(ctx, 1, attrs)
	if res.AppliedCap {
		q.capped.Add(ctx, 1, attrs)
	}
	span.SetAttributes(
		attribute.String("customer.effective_type", string(effective)),
		attribute.String("discount.total", res.TotalDiscount.String()),
		attribute.Bool("discount.capped", res.AppliedCap),
	)

	return &Quote{
		RequestedType: requested,
		EffectiveType: effective,
		OrderDate:     date,
		Result:        res,
		Warnings:      check.Warnings,
	}, nil
}

// Restrict recomputes quote with the tier bonus or the seasonal multiplier
// suppressed. The request is not validated again and no metrics are
// recorded; quote is expected to come from Quote.
func (q *Quoter) Restrict(ctx context.Context, quote *Quote, skipTierBonus, skipSeasonal bool) (*Quote, error) {
	_, span := q.tracer.Start(ctx, "discount.Restrict",
		trace.WithAttributes(
			attribute.Bool("discount.skip_tier_bonus", skipTierBonus),
			attribute.Bool("discount.skip_seasonal", skipSeasonal),
		),
	)
	defer span.End()

	amount := quote.Result.OriginalAmount
	period, _ := q.rules.QualifyingPeriodFor(quote.OrderDate, amount)
	res, err := q.calculator.Compute(Context{
		CustomerType:  quote.EffectiveType,
		Amount:        amount,
		OrderDate:     quote.OrderDate,
		Period:        period,
		SkipTierBonus: skipTierBonus,
		SkipSeasonal:  skipSeasonal,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrap(err, "compute discount")
	}

	restricted := *quote
	restricted.Result = res
	return &restricted, nil
}
