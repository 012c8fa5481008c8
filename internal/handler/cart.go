package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-discounts/internal/domain/cart"
	"github.com/xenking/kart-discounts/internal/domain/discount"
)

// CreateCart starts an empty cart.
//
//	POST /api/carts {"customerId"?}
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var customerID string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key == "customerId" {
			var err error
			customerID, err = decodeStr(d, key)
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.svc.Carts.Create(r.Context(), customerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCart(e, c) })
}

// GetCart returns a cart.
//
//	GET /api/carts/{id}
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Carts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// AddCartItem adds a product to a cart, merging quantities.
//
//	POST /api/carts/{id}/items {"productId","quantity"}
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID string
		qty       int
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			productID, err = decodeStr(d, key)
		case "quantity":
			if qty, err = d.Int(); err != nil {
				err = badRequest("quantity must be an integer")
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if productID == "" {
		writeError(w, r, badRequest("productId is required"))
		return
	}

	c, err := h.svc.Carts.AddItem(r.Context(), r.PathValue("id"), productID, qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// RemoveCartItem drops a product line from a cart.
//
//	DELETE /api/carts/{id}/items/{productId}
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Carts.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// CartSummary prices a cart with category discounts only.
//
//	GET /api/carts/{id}/summary
func (h *Handler) CartSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Carts.Summarize(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, s) })
}

// Checkout places an order for the cart and empties it.
//
//	POST /api/carts/{id}/checkout {"customerType"?,"orderDate"?,"promoCode"?}
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req cart.CheckoutRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customerType":
			req.CustomerType, err = decodeStr(d, key)
		case "orderDate":
			req.OrderDate, err = decodeDate(d, key)
		case "promoCode":
			req.PromoCode, err = decodeStr(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.Carts.Checkout(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		encodeOrder(e, res.Order)
		e.FieldStart("summary")
		encodeSummary(e, &res.Summary)
		e.ObjEnd()
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	if c.CustomerID != "" {
		e.FieldStart("customerId")
		e.Str(c.CustomerID)
	}
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range c.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(item.ProductID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("createdAt")
	e.Str(c.CreatedAt.Format(time.RFC3339))
	e.FieldStart("updatedAt")
	e.Str(c.UpdatedAt.Format(time.RFC3339))
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s *cart.Summary) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range s.Lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(l.Product.ID)
		e.FieldStart("name")
		e.Str(l.Product.Name)
		e.FieldStart("category")
		e.Str(l.Product.Category)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		encodeMoney(e, l.Product.Price)
		e.FieldStart("categoryDiscountPercentage")
		encodeFraction(e, discount.Percent(l.CategoryDiscount))
		e.FieldStart("discountedUnitPrice")
		encodeMoney(e, l.DiscountedUnitPrice)
		e.FieldStart("subtotal")
		encodeMoney(e, l.Subtotal)
		e.FieldStart("discount")
		encodeMoney(e, l.Discount)
		e.FieldStart("total")
		encodeMoney(e, l.Total)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("itemCount")
	e.Int(s.ItemCount)
	e.FieldStart("subtotal")
	encodeMoney(e, s.Subtotal)
	e.FieldStart("categoryDiscounts")
	encodeMoney(e, s.CategoryDiscounts)
	e.FieldStart("tierDiscount")
	encodeMoney(e, s.TierDiscount)
	e.FieldStart("promoCodeDiscount")
	encodeMoney(e, s.PromoCodeDiscount)
	e.FieldStart("totalDiscount")
	encodeMoney(e, s.TotalDiscount)
	e.FieldStart("finalTotal")
	encodeMoney(e, s.FinalTotal)
	e.ObjEnd()
}
