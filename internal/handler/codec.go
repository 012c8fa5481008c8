package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/auth"
	"github.com/xenking/kart-discounts/internal/domain/cart"
	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/domain/order"
	"github.com/xenking/kart-discounts/internal/domain/product"
	"github.com/xenking/kart-discounts/internal/domain/promo"
)

const maxBodySize = 1 << 20

// Bounds on decoded amounts. The exponent must be checked before any
// comparison or arithmetic on the value.
const (
	maxNumberLen = 32
	maxExponent  = 12
	minExponent  = -12
)

var maxAmount = decimal.New(1, maxExponent)

// badRequestError marks malformed request bodies.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// decodeObject reads the request body as a JSON object and hands every
// field to fn. An empty body is treated as {}.
func decodeObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			return bad
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Decimal{}, badRequest("%s must be a number", field)
	}
	raw = strings.TrimSpace(raw)
	if len(raw) > maxNumberLen {
		return decimal.Decimal{}, badRequest("%s is out of range", field)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, badRequest("%s must be a number", field)
	}
	if e := v.Exponent(); e > maxExponent || e < minExponent || v.Abs().GreaterThan(maxAmount) {
		return decimal.Decimal{}, badRequest("%s is out of range", field)
	}
	return v, nil
}

// decodeDate accepts YYYY-MM-DD or RFC 3339 timestamps.
func decodeDate(d *jx.Decoder, field string) (time.Time, error) {
	if d.Next() == jx.Null {
		return time.Time{}, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return time.Time{}, badRequest("%s must be a string", field)
	}
	return parseDate(field, s)
}

func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, badRequest("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
}

func decodeStr(d *jx.Decoder, field string) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return "", badRequest("%s must be a string", field)
	}
	return s, nil
}

func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	var e jx.Encoder
	enc(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Float64(d.Round(2).InexactFloat64())
}

func encodeFraction(e *jx.Encoder, d decimal.Decimal) {
	e.Float64(d.InexactFloat64())
}

func encodeStrings(e *jx.Encoder, ss []string) {
	e.ArrStart()
	for _, s := range ss {
		e.Str(s)
	}
	e.ArrEnd()
}

func encodeDate(e *jx.Encoder, t time.Time) {
	e.Str(t.Format(time.DateOnly))
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Status   int
	Message  string
	Errors   []string
	Warnings []string
}

func (b errorBody) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(b.Status)
	e.FieldStart("message")
	e.Str(b.Message)
	if len(b.Errors) > 0 {
		e.FieldStart("errors")
		encodeStrings(e, b.Errors)
	}
	if len(b.Warnings) > 0 {
		e.FieldStart("warnings")
		encodeStrings(e, b.Warnings)
	}
	e.ObjEnd()
}

// errorResponse maps domain errors to a status and body.
func errorResponse(err error) errorBody {
	var (
		validation *discount.ValidationError
		invalid    *promo.InvalidCodeError
		bad        *badRequestError
		orderQty   *order.InvalidQuantityError
		cartQty    *cart.InvalidQuantityError
		noProduct  *cart.ProductNotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return errorBody{
			Status:   http.StatusBadRequest,
			Message:  "invalid discount request",
			Errors:   validation.Errors,
			Warnings: validation.Warnings,
		}
	case errors.As(err, &invalid):
		return errorBody{
			Status:  http.StatusUnprocessableEntity,
			Message: "invalid promo code",
			Errors:  invalid.Errors,
		}
	case errors.As(err, &bad):
		return errorBody{Status: http.StatusBadRequest, Message: bad.msg}
	case errors.As(err, &orderQty):
		return errorBody{Status: http.StatusBadRequest, Message: orderQty.Error()}
	case errors.As(err, &cartQty):
		return errorBody{Status: http.StatusBadRequest, Message: cartQty.Error()}
	case errors.As(err, &noProduct):
		return errorBody{Status: http.StatusNotFound, Message: noProduct.Error()}
	case errors.Is(err, order.ErrCustomerTypeRequired),
		errors.Is(err, customer.ErrUnknownType),
		errors.Is(err, cart.ErrEmpty):
		return errorBody{Status: http.StatusBadRequest, Message: rootMessage(err)}
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrNotFound):
		return errorBody{Status: http.StatusNotFound, Message: rootMessage(err)}
	case errors.Is(err, auth.ErrUnauthorized):
		return errorBody{Status: http.StatusUnauthorized, Message: "unauthorized"}
	default:
		return errorBody{Status: http.StatusInternalServerError, Message: "internal server error"}
	}
}

// rootMessage returns the message of the sentinel at the bottom of err's
// chain, dropping operation prefixes added on the way up.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorResponse(err)
	if body.Status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, body.Status, body.encode)
}
