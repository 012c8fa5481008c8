package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-discounts/internal/ingest"
	"github.com/xenking/kart-discounts/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		expectedCodes uint
		dryRun        bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expectedCodes, "expected-codes", 1_000_000, "expected codes per file, sizes the bloom filters")
	flag.BoolVar(&dryRun, "dry-run", false, "report duplicates and rejected rows without writing")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: promo-ingest [flags] FILE.csv[.gz]...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, expectedCodes, dryRun); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, expectedCodes uint, dryRun bool) error {
	lg := slog.Default()

	res, err := ingest.Run(ctx, files, ingest.Options{
		ExpectedCodes: expectedCodes,
		Logger:        lg,
	})
	if err != nil {
		return err
	}

	for _, d := range res.Duplicates {
		lg.Warn("duplicate code skipped", slog.String("code", d.Code), slog.Any("files", d.Files))
	}
	for _, r := range res.Rejected {
		lg.Warn("row rejected",
			slog.String("file", r.File),
			slog.Int("line", r.Line),
			slog.String("error", r.Err.Error()),
		)
	}

	if dryRun || len(res.Codes) == 0 {
		slog.Info("nothing written", slog.Bool("dry_run", dryRun), slog.Int("codes", len(res.Codes)))
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := ingest.Write(ctx, postgres.NewPromoRepository(pool), res.Codes, lg); err != nil {
		return errors.Wrap(err, "write promo codes")
	}
	return nil
}
