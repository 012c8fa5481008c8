// Package app wires configuration, storage, domain services and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-discounts/internal/domain/auth"
	"github.com/xenking/kart-discounts/internal/domain/cart"
	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/domain/order"
	"github.com/xenking/kart-discounts/internal/domain/promo"
	"github.com/xenking/kart-discounts/internal/domain/rules"
	"github.com/xenking/kart-discounts/internal/handler"
	"github.com/xenking/kart-discounts/pkg/health"
	"github.com/xenking/kart-discounts/pkg/httpmiddleware"
)

const serviceName = "kart-discounts"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("rules", cfg.RulesFile),
	)

	table, codes, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return errors.Wrap(err, "load rules")
	}
	for _, o := range table.Overlaps() {
		lg.Warn("Promotional periods overlap, the first listed wins",
			zap.String("first", o.First),
			zap.String("second", o.Second),
		)
	}

	st, err := openStores(ctx, lg, cfg, codes)
	if err != nil {
		return err
	}
	defer st.close()

	healthSvc := newHealth(cfg, st)
	healthSvc.Start(ctx, cfg.Health.Interval)
	healthSvc.SetReady(true)

	api, err := newAPI(ctx, cfg, m, table, st, healthSvc)
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           api,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation or a server failure, drain,
	// then stop.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	return g.Wait()
}

func newHealth(cfg *Config, st *stores) *health.Health {
	h := health.New()
	if st.db != nil {
		h.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", st.db))
	}
	h.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))
	h.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(cfg.Health.MaxGCPause))
	return h
}

// newAPI builds the domain services over st and returns the fully wrapped
// HTTP handler.
func newAPI(
	ctx context.Context,
	cfg *Config,
	t httpmiddleware.Telemetry,
	table *rules.Table,
	st *stores,
	healthSvc *health.Health,
) (http.Handler, error) {
	quoter, err := discount.NewQuoter(table, t.MeterProvider(), t.TracerProvider())
	if err != nil {
		return nil, errors.Wrap(err, "create quoter")
	}
	promoEngine := promo.NewEngine(st.promos)
	orderService := order.NewService(quoter, promoEngine, st.orders, st.customers)
	cartService := cart.NewService(st.carts, st.products, cart.NewEngine(table), orderService)

	h := handler.NewHandler(handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL}, handler.Services{
		Quoter:    quoter,
		Promos:    promoEngine,
		Orders:    orderService,
		Carts:     cartService,
		Products:  st.products,
		Customers: st.customers,
		Auth:      auth.NewAuthenticator(st.apikeys, []byte(cfg.APIKeyPepper)),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	var keyFunc func(*http.Request) string
	if cfg.RateLimit.PerAPIKey {
		keyFunc = httpmiddleware.KeyByHeader(handler.APIKeyHeader)
	}

	routeFinder := httpmiddleware.MakeRouteFinder(mux)
	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(zctx.From(ctx)),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowMethods:     cfg.CORS.AllowMethods,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    cfg.CORS.ExposeHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: keyFunc,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument(serviceName, routeFinder, t),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	), nil
}
