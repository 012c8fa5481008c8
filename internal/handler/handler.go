// Package handler exposes the discount engine over HTTP. Routes are plain
// net/http ServeMux patterns; bodies are encoded with go-faster/jx.
package handler

import (
	"net/http"
	"time"

	"github.com/xenking/kart-discounts/internal/domain/auth"
	"github.com/xenking/kart-discounts/internal/domain/cart"
	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/domain/order"
	"github.com/xenking/kart-discounts/internal/domain/product"
	"github.com/xenking/kart-discounts/internal/domain/promo"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Services are the domain dependencies served by the Handler.
type Services struct {
	Quoter    *discount.Quoter
	Promos    *promo.Engine
	Orders    *order.Service
	Carts     *cart.Service
	Products  product.Repository
	Customers customer.Repository
	Auth      *auth.Authenticator
}

// Handler serves the /api routes.
type Handler struct {
	svc          Services
	imageBaseURL string
	now          func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig, svc Services) *Handler {
	return &Handler{
		svc:          svc,
		imageBaseURL: cfg.ImageBaseURL,
		now:          time.Now,
	}
}

// Register mounts every API route on mux. Routes that create orders require
// an api_key header.
func (h *Handler) Register(mux *http.ServeMux) {
	secured := h.RequireAPIKey

	mux.HandleFunc("POST /api/discounts/calculate", h.CalculateDiscount)

	mux.HandleFunc("POST /api/promo-codes/validate", h.ValidatePromoCode)
	mux.HandleFunc("GET /api/promo-codes", h.ListPromoCodes)

	mux.Handle("POST /api/orders", secured(http.HandlerFunc(h.PlaceOrder)))
	mux.Handle("GET /api/orders", secured(http.HandlerFunc(h.ListOrders)))
	mux.Handle("GET /api/orders/{id}", secured(http.HandlerFunc(h.GetOrder)))

	mux.HandleFunc("POST /api/carts", h.CreateCart)
	mux.HandleFunc("GET /api/carts/{id}", h.GetCart)
	mux.HandleFunc("POST /api/carts/{id}/items", h.AddCartItem)
	mux.HandleFunc("DELETE /api/carts/{id}/items/{productId}", h.RemoveCartItem)
	mux.HandleFunc("GET /api/carts/{id}/summary", h.CartSummary)
	mux.Handle("POST /api/carts/{id}/checkout", secured(http.HandlerFunc(h.Checkout)))

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("POST /api/customers", h.CreateCustomer)
	mux.HandleFunc("GET /api/customers/{id}", h.GetCustomer)

	mux.HandleFunc("GET /api/rules/customer-types", h.ListCustomerTypes)
	mux.HandleFunc("GET /api/rules/periods", h.ListPeriods)
	mux.HandleFunc("GET /api/rules/categories", h.ListCategories)

	mux.Handle("GET /api/analytics/summary", secured(http.HandlerFunc(h.AnalyticsSummary)))
}
