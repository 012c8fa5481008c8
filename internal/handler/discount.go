package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-discounts/internal/domain/discount"
)

// CalculateDiscount prices a discount request without persisting anything.
//
//	POST /api/discounts/calculate {"customerType","amount","orderDate"?}
func (h *Handler) CalculateDiscount(w http.ResponseWriter, r *http.Request) {
	var req discount.QuoteRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customerType":
			req.CustomerType, err = decodeStr(d, key)
		case "amount":
			req.Amount, err = decodeDecimal(d, key)
		case "orderDate":
			req.OrderDate, err = decodeDate(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	q, err := h.svc.Quoter.Quote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeQuote(e, q) })
}

func encodeQuote(e *jx.Encoder, q *discount.Quote) {
	res := q.Result

	e.ObjStart()
	e.FieldStart("originalAmount")
	encodeMoney(e, res.OriginalAmount)
	e.FieldStart("discountedAmount")
	encodeMoney(e, res.FinalAmount)
	e.FieldStart("discountPercentage")
	encodeFraction(e, res.DiscountPercentage())
	e.FieldStart("customerType")
	e.Str(q.RequestedType.String())
	e.FieldStart("effectiveCustomerType")
	e.Str(q.EffectiveType.String())
	e.FieldStart("orderDate")
	encodeDate(e, q.OrderDate)
	e.FieldStart("warnings")
	encodeStrings(e, q.Warnings)
	e.FieldStart("breakdown")
	encodeResult(e, res)
	e.ObjEnd()
}

func encodeResult(e *jx.Encoder, res discount.Result) {
	e.ObjStart()
	e.FieldStart("baseDiscount")
	encodeFraction(e, res.BaseDiscount)
	e.FieldStart("tierBonus")
	encodeFraction(e, res.TierBonus)
	e.FieldStart("seasonalMultiplier")
	encodeFraction(e, res.SeasonalMultiplier)
	e.FieldStart("totalDiscount")
	encodeFraction(e, res.TotalDiscount)
	e.FieldStart("appliedCap")
	e.Bool(res.AppliedCap)
	e.FieldStart("savingsAmount")
	encodeMoney(e, res.SavingsAmount)
	if res.PeriodName != "" {
		e.FieldStart("promotionalPeriod")
		e.Str(res.PeriodName)
	}
	e.ObjEnd()
}
