package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "seed").Logger()

func main() {
	cfg, err := config.Read()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to init aws clients")
	}

	products := catalog.NewStore(clients.DynamoDB, cfg.ProductsTable)
	// the API's Redis cache expires on its own TTL
	rules := discounts.NewService(discounts.NewStore(clients.DynamoDB, cfg.DiscountsTable), nil)

	if err := seed(ctx, products, rules); err != nil {
		logger.Fatal().Err(err).Msg("Seeding failed")
	}
	logger.Info().Msg("Seed complete")
}
