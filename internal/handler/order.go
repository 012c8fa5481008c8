package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-discounts/internal/domain/order"
)

// PlaceOrder prices and stores an order, redeeming its promo code.
//
//	POST /api/orders {"customerId"?,"customerType","amount","orderDate"?,"promoCode"?,"items"?}
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrderRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customerId":
			req.CustomerID, err = decodeStr(d, key)
		case "customerType":
			req.CustomerType, err = decodeStr(d, key)
		case "amount":
			req.Amount, err = decodeDecimal(d, key)
		case "orderDate":
			req.OrderDate, err = decodeDate(d, key)
		case "promoCode":
			req.PromoCode, err = decodeStr(d, key)
		case "items":
			req.Items, err = decodeOrderItems(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.svc.Orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// GetOrder returns a stored order.
//
//	GET /api/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListOrders returns every stored order.
//
//	GET /api/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Orders.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

func decodeOrderItems(d *jx.Decoder) ([]order.OrderItem, error) {
	var items []order.OrderItem
	err := d.Arr(func(d *jx.Decoder) error {
		var item order.OrderItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "productId":
				item.ProductID, err = decodeStr(d, key)
			case "quantity":
				item.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, badRequest("items must be an array of {productId, quantity}")
	}
	return items, nil
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	b := o.Breakdown

	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	if o.CustomerID != "" {
		e.FieldStart("customerId")
		e.Str(o.CustomerID)
	}
	if o.CartID != "" {
		e.FieldStart("cartId")
		e.Str(o.CartID)
	}
	e.FieldStart("customerType")
	e.Str(o.RequestedType.String())
	e.FieldStart("effectiveCustomerType")
	e.Str(o.EffectiveType.String())
	e.FieldStart("amount")
	encodeMoney(e, o.Amount)
	e.FieldStart("breakdown")
	e.ObjStart()
	e.FieldStart("baseDiscount")
	encodeFraction(e, b.BaseDiscount)
	e.FieldStart("tierBonus")
	encodeFraction(e, b.TierBonus)
	e.FieldStart("seasonalMultiplier")
	encodeFraction(e, b.SeasonalMultiplier)
	e.FieldStart("totalDiscount")
	encodeFraction(e, b.TotalDiscount)
	e.FieldStart("appliedCap")
	e.Bool(b.AppliedCap)
	e.FieldStart("tierSavings")
	encodeMoney(e, b.TierSavings)
	if b.PeriodName != "" {
		e.FieldStart("promotionalPeriod")
		e.Str(b.PeriodName)
	}
	e.ObjEnd()
	if o.PromoCode != "" {
		e.FieldStart("promoCode")
		e.Str(o.PromoCode)
		e.FieldStart("promoDiscount")
		encodeMoney(e, o.PromoDiscount)
	}
	e.FieldStart("totalSavings")
	encodeMoney(e, o.TotalSavings())
	e.FieldStart("finalAmount")
	encodeMoney(e, o.FinalAmount)
	if len(o.Items) > 0 {
		e.FieldStart("items")
		e.ArrStart()
		for _, item := range o.Items {
			e.ObjStart()
			e.FieldStart("productId")
			e.Str(item.ProductID)
			e.FieldStart("quantity")
			e.Int(item.Quantity)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.FieldStart("warnings")
	encodeStrings(e, o.Warnings)
	e.FieldStart("orderDate")
	encodeDate(e, o.OrderDate)
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.Format(time.RFC3339))
	e.ObjEnd()
}
