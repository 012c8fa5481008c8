package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-discounts/internal/domain/analytics"
	"github.com/xenking/kart-discounts/internal/domain/customer"
)

// AnalyticsSummary aggregates every stored order.
//
//	GET /api/analytics/summary
func (h *Handler) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Orders.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s := analytics.Summarize(orders)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("orderCount")
		e.Int(s.OrderCount)
		e.FieldStart("grossRevenue")
		encodeMoney(e, s.GrossRevenue)
		e.FieldStart("totalSavings")
		encodeMoney(e, s.TotalSavings)
		e.FieldStart("netRevenue")
		encodeMoney(e, s.NetRevenue)
		e.FieldStart("averageDiscountPercentage")
		encodeFraction(e, s.AverageDiscount)

		e.FieldStart("byCustomerType")
		e.ObjStart()
		for _, t := range customer.Types {
			ts, ok := s.ByCustomerType[t]
			if !ok {
				continue
			}
			e.FieldStart(t.String())
			e.ObjStart()
			e.FieldStart("orderCount")
			e.Int(ts.OrderCount)
			e.FieldStart("grossRevenue")
			encodeMoney(e, ts.GrossRevenue)
			e.FieldStart("totalSavings")
			encodeMoney(e, ts.TotalSavings)
			e.FieldStart("netRevenue")
			encodeMoney(e, ts.NetRevenue)
			e.ObjEnd()
		}
		e.ObjEnd()

		e.FieldStart("promoRedemptions")
		e.ArrStart()
		for _, code := range s.PromoCodes() {
			e.ObjStart()
			e.FieldStart("code")
			e.Str(code)
			e.FieldStart("count")
			e.Int(s.PromoRedemptions[code])
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}
