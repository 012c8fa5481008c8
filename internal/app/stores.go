package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/auth"
	"github.com/xenking/kart-discounts/internal/domain/cart"
	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/order"
	"github.com/xenking/kart-discounts/internal/domain/product"
	"github.com/xenking/kart-discounts/internal/domain/promo"
	"github.com/xenking/kart-discounts/internal/storage/memory"
	"github.com/xenking/kart-discounts/internal/storage/postgres"
	"github.com/xenking/kart-discounts/internal/storage/seed"
	"github.com/xenking/kart-discounts/pkg/health"
)

// stores is the repository set selected by Config.Storage.
type stores struct {
	products  product.Repository
	promos    promo.Repository
	orders    order.Repository
	carts     cart.Repository
	customers customer.Repository
	apikeys   auth.Repository

	// db is nil for memory storage.
	db    health.Pinger
	close func()
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, codes []promo.Code) (*stores, error) {
	switch cfg.Storage {
	case StoragePostgres:
		return openPostgres(ctx, lg, cfg)
	default:
		return openMemory(ctx, lg, cfg, codes)
	}
}

// openMemory builds empty in-memory repositories and seeds them with the
// product catalog, the rule file promo codes and the configured API key.
func openMemory(ctx context.Context, lg *zap.Logger, cfg *Config, codes []promo.Code) (*stores, error) {
	s := &stores{
		products:  memory.NewProductRepository(),
		promos:    memory.NewPromoRepository(),
		orders:    memory.NewOrderRepository(),
		carts:     memory.NewCartRepository(),
		customers: memory.NewCustomerRepository(),
		apikeys:   memory.NewAPIKeyRepository(),
		close:     func() {},
	}

	data := seed.Data{
		Promos: codes,
		APIKey: cfg.SeedAPIKey,
		Pepper: []byte(cfg.APIKeyPepper),
	}
	if cfg.ProductsFile != "" {
		products, err := seed.LoadProducts(cfg.ProductsFile)
		if err != nil {
			return nil, errors.Wrap(err, "load products")
		}
		data.Products = products
	}
	if cfg.SeedAPIKey == "" {
		lg.Warn("No seed API key configured, order endpoints will reject every request")
	}

	stats, err := seed.Apply(ctx, seed.Target{
		Products: s.products,
		Promos:   s.promos,
		APIKeys:  s.apikeys,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "seed memory storage")
	}
	lg.Info("Memory storage seeded",
		zap.Int("products", stats.Products),
		zap.Int("promo_codes", stats.Promos),
		zap.Int("api_keys", stats.APIKeys),
	)
	return s, nil
}

func openPostgres(ctx context.Context, lg *zap.Logger, cfg *Config) (*stores, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	lg.Info("PostgreSQL storage ready")

	return &stores{
		products:  postgres.NewProductRepository(pool),
		promos:    postgres.NewPromoRepository(pool),
		orders:    postgres.NewOrderRepository(pool),
		carts:     postgres.NewCartRepository(pool),
		customers: postgres.NewCustomerRepository(pool),
		apikeys:   postgres.NewAPIKeyRepository(pool),
		db:        pool,
		close:     pool.Close,
	}, nil
}
