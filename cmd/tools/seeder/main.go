package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/db"
	"github.com/noah-isme/toko-bundles/internal/obs"
)

func main() {
	migrateFirst := flag.Bool("migrate", false, "apply migrations before seeding")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	if *migrateFirst {
		if err := db.Migrate(dbURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, dbURL, "toko-bundles-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	store := catalog.NewStore(pool)
	for _, def := range sampleBundles() {
		warnings, err := catalog.CheckConfiguration(def)
		if err != nil {
			logger.Error().Err(err).Str("bundle", def.Code).Msg("skip misconfigured bundle")
			continue
		}
		for _, w := range warnings {
			logger.Warn().Str("bundle", def.Code).Msg(w)
		}
		if err := store.UpsertBundle(ctx, def); err != nil {
			logger.Error().Err(err).Str("bundle", def.Code).Msg("upsert bundle")
			continue
		}
		logger.Info().Str("bundle", def.Code).Str("price", def.Price.String()).Int("constituents", len(def.Constituents)).Msg("seeded")
	}
	logger.Info().Msg("seeding completed")
}

func sampleBundles() []bundle.Definition {
	d := decimal.RequireFromString
	return []bundle.Definition{
		{
			Code:          "BREAKFAST",
			Name:          "Paket Sarapan",
			ContainerItem: "BREAKFAST-BOX",
			ContainerUOM:  "Box",
			Price:         d("120"),
			Constituents: []bundle.Constituent{
				{ItemCode: "COFFEE", RegularRate: d("100"), Qty: d("1"), UOM: "Cup"},
				{ItemCode: "CROISSANT", RegularRate: d("50"), Qty: d("1"), UOM: "Nos"},
			},
		},
		{
			Code:          "OFFICE-STARTER",
			Name:          "Office Starter Kit",
			ContainerItem: "OFFICE-KIT",
			ContainerUOM:  "Set",
			Price:         d("70"),
			Constituents: []bundle.Constituent{
				{ItemCode: "NOTEBOOK-A5", RegularRate: d("30"), Qty: d("1"), UOM: "Nos"},
				{ItemCode: "GEL-PEN", RegularRate: d("22.75"), Qty: d("2"), UOM: "Nos"},
				{ItemCode: "STAPLER", RegularRate: d("24.5"), Qty: d("1"), UOM: "Nos"},
			},
		},
		{
			Code:          "MYSTERY",
			Name:          "Mystery Box",
			ContainerItem: "MYSTERY-BOX",
			ContainerUOM:  "Box",
			Price:         d("25"),
		},
	}
}
