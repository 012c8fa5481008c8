package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/kart-discounts/internal/domain/customer"
)

// CreateCustomer registers a customer whose type is used when orders name
// only a customerId.
//
//	POST /api/customers {"name","email"?,"customerType"}
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var (
		c   customer.Customer
		typ string
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			c.Name, err = decodeStr(d, key)
		case "email":
			c.Email, err = decodeStr(d, key)
		case "customerType":
			typ, err = decodeStr(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(c.Name) == "" {
		writeError(w, r, badRequest("name is required"))
		return
	}
	if c.Type, err = customer.ParseType(typ); err != nil {
		writeError(w, r, err)
		return
	}

	c.ID = uuid.New().String()
	c.CreatedAt = h.now().UTC()
	if err := h.svc.Customers.Create(r.Context(), &c); err != nil {
		writeError(w, r, errors.Wrap(err, "create customer"))
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCustomer(e, &c) })
}

// GetCustomer returns a customer.
//
//	GET /api/customers/{id}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Customers.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "get customer"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
}

func encodeCustomer(e *jx.Encoder, c *customer.Customer) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("name")
	e.Str(c.Name)
	if c.Email != "" {
		e.FieldStart("email")
		e.Str(c.Email)
	}
	e.FieldStart("customerType")
	e.Str(c.Type.String())
	e.FieldStart("createdAt")
	e.Str(c.CreatedAt.Format(time.RFC3339))
	e.ObjEnd()
}
