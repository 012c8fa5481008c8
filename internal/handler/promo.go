package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/promo"
)

// ValidatePromoCode checks a code against a prospective order. Rejections
// are reported in the body with 200; only malformed input is a 400.
//
//	POST /api/promo-codes/validate {"code","customerType","amount"}
func (h *Handler) ValidatePromoCode(w http.ResponseWriter, r *http.Request) {
	var (
		code, typ string
		amount    decimal.Decimal
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = decodeStr(d, key)
		case "customerType":
			typ, err = decodeStr(d, key)
		case "amount":
			amount, err = decodeDecimal(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if code == "" {
		writeError(w, r, badRequest("code is required"))
		return
	}
	t, err := customer.ParseType(typ)
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.svc.Promos.Validate(r.Context(), code, t, amount)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "validate promo code"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("isValid")
		e.Bool(v.Valid)
		e.FieldStart("errors")
		encodeStrings(e, v.Errors)
		e.FieldStart("warnings")
		encodeStrings(e, v.Warnings)
		if v.Code != nil {
			e.FieldStart("promoCode")
			encodePromoCode(e, v.Code)
		}
		e.ObjEnd()
	})
}

// ListPromoCodes returns the codes that can currently be redeemed.
//
//	GET /api/promo-codes
func (h *Handler) ListPromoCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.svc.Promos.ListActive(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list promo codes"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range codes {
			encodePromoCode(e, &codes[i])
		}
		e.ArrEnd()
	})
}

func encodePromoCode(e *jx.Encoder, c *promo.Code) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	if c.Description != "" {
		e.FieldStart("description")
		e.Str(c.Description)
	}
	e.FieldStart("discountType")
	e.Str(string(c.DiscountType))
	e.FieldStart("value")
	encodeMoney(e, c.Value)
	if c.MinOrderAmount != nil {
		e.FieldStart("minOrderAmount")
		encodeMoney(e, *c.MinOrderAmount)
	}
	if c.MaxDiscountAmount != nil {
		e.FieldStart("maxDiscountAmount")
		encodeMoney(e, *c.MaxDiscountAmount)
	}
	if !c.ValidFrom.IsZero() {
		e.FieldStart("validFrom")
		e.Str(c.ValidFrom.Format(time.RFC3339))
	}
	if !c.ValidUntil.IsZero() {
		e.FieldStart("validUntil")
		e.Str(c.ValidUntil.Format(time.RFC3339))
	}
	if c.UsageLimit > 0 {
		e.FieldStart("usageLimit")
		e.Int(c.UsageLimit)
	}
	e.FieldStart("usageCount")
	e.Int(c.UsageCount)
	if len(c.AllowedCustomerTypes) > 0 {
		e.FieldStart("allowedCustomerTypes")
		e.ArrStart()
		for _, t := range c.AllowedCustomerTypes {
			e.Str(t.String())
		}
		e.ArrEnd()
	}
	e.FieldStart("disablesTierBonuses")
	e.Bool(c.DisablesTierBonuses)
	e.FieldStart("stacksWithSeasonalMultiplier")
	e.Bool(c.StacksWithSeasonalMultiplier)
	e.ObjEnd()
}
