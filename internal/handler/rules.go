package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/discount"
)

// ListCustomerTypes returns the per type discount rules and tier bands.
//
//	GET /api/rules/customer-types
func (h *Handler) ListCustomerTypes(w http.ResponseWriter, _ *http.Request) {
	table := h.svc.Quoter.Rules()

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("customerTypes")
		e.ArrStart()
		for _, t := range customer.Types {
			rule, ok := table.RuleFor(t)
			if !ok {
				continue
			}
			e.ObjStart()
			e.FieldStart("customerType")
			e.Str(t.String())
			e.FieldStart("baseDiscountPercentage")
			encodeFraction(e, discount.Percent(rule.BaseDiscount))
			if rule.MaxTotalDiscount != nil {
				e.FieldStart("maxTotalDiscountPercentage")
				encodeFraction(e, discount.Percent(*rule.MaxTotalDiscount))
			}
			if rule.MinimumOrderAmount != nil {
				e.FieldStart("minimumOrderAmount")
				encodeMoney(e, *rule.MinimumOrderAmount)
			}
			e.ObjEnd()
		}
		e.ArrEnd()

		e.FieldStart("tiers")
		e.ArrStart()
		for _, band := range table.Tiers() {
			e.ObjStart()
			e.FieldStart("minAmount")
			encodeMoney(e, band.MinAmount)
			if band.MaxAmount != nil {
				e.FieldStart("maxAmount")
				encodeMoney(e, *band.MaxAmount)
			}
			e.FieldStart("bonusPercentage")
			encodeFraction(e, discount.Percent(band.Bonus))
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// ListPeriods returns every configured promotional period and whether it
// is running today.
//
//	GET /api/rules/periods
func (h *Handler) ListPeriods(w http.ResponseWriter, _ *http.Request) {
	table := h.svc.Quoter.Rules()
	now := h.now()
	active := table.ActivePeriodFor(now)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range table.Periods() {
			e.ObjStart()
			e.FieldStart("name")
			e.Str(p.Name)
			e.FieldStart("startDate")
			encodeDate(e, p.Start)
			e.FieldStart("endDate")
			encodeDate(e, p.End)
			e.FieldStart("multiplier")
			encodeFraction(e, p.Multiplier)
			e.FieldStart("enabled")
			e.Bool(p.Enabled)
			e.FieldStart("active")
			e.Bool(active != nil && active.Name == p.Name)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

// ListCategories returns the active category discounts.
//
//	GET /api/rules/categories
func (h *Handler) ListCategories(w http.ResponseWriter, _ *http.Request) {
	categories := h.svc.Quoter.Rules().ActiveCategoryDiscounts()

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range categories {
			e.ObjStart()
			e.FieldStart("category")
			e.Str(c.Category)
			e.FieldStart("percentage")
			encodeFraction(e, c.Percentage)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

func (h *Handler) categoryPercent(category string) decimal.Decimal {
	return discount.Percent(h.svc.Quoter.Rules().CategoryDiscountFor(category))
}
