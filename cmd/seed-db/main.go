package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-discounts/internal/domain/rules"
	"github.com/xenking/kart-discounts/internal/storage/postgres"
	"github.com/xenking/kart-discounts/internal/storage/seed"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		rulesFile    string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&rulesFile, "rules-file", "config/rules.yaml", "rule file whose promoCodes are seeded")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or KART_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or KART_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("KART_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or KART_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("KART_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, rulesFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, rulesFile, apiKey, pepper string) error {
	slog.Info("reading seed files",
		slog.String("products", productsFile),
		slog.String("rules", rulesFile),
	)

	products, err := seed.LoadProducts(productsFile)
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	_, codes, err := rules.Load(rulesFile)
	if err != nil {
		return errors.Wrap(err, "load rules")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := seed.Apply(ctx, seed.Target{
		Products: postgres.NewProductRepository(pool),
		Promos:   postgres.NewPromoRepository(pool),
		APIKeys:  postgres.NewAPIKeyRepository(pool),
	}, seed.Data{
		Products: products,
		Promos:   codes,
		APIKey:   apiKey,
		Pepper:   []byte(pepper),
	})
	if err != nil {
		return errors.Wrap(err, "apply seed")
	}

	slog.Info("seeded",
		slog.Int("products", stats.Products),
		slog.Int("promo_codes", stats.Promos),
		slog.Int("api_keys", stats.APIKeys),
	)
	return nil
}
