package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/checkout"
	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
	"github.com/imrishuroy/go-storefront-checkout/internal/handlers"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "api").Logger()

func setupRouter(cfg config.Config, clients *aws.AWSClients) (*gin.Engine, error) {
	policy, err := checkout.ParseChargePolicy(cfg.ChargePolicy)
	if err != nil {
		return nil, err
	}

	var cache discounts.RulesCache = discounts.NopCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			// rules are still served from DynamoDB
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, rules cache disabled")
		} else {
			cache = discounts.NewRedisCache(rdb, cfg.RulesCacheTTL)
		}
	}

	products := catalog.NewStore(clients.DynamoDB, cfg.ProductsTable)
	lines := cart.NewStore(clients.DynamoDB, cfg.CartTable)
	rules := discounts.NewService(discounts.NewStore(clients.DynamoDB, cfg.DiscountsTable), cache)

	var publisher checkout.EventPublisher
	if cfg.QueueURL != "" {
		publisher = aws.NewPublisher(clients.SQS, cfg.QueueURL)
	} else {
		logger.Warn().Msg("CHECKOUT_QUEUE_URL not set, checkout events are not published")
	}

	return handlers.NewRouter(handlers.HandlerConfig{
		Products:    products,
		Discounts:   rules,
		Cart:        cart.NewService(lines, products, rules),
		Checkout:    checkout.NewService(lines, products, rules, publisher, policy),
		Idempotency: idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		Orders:      orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		JWTSecret:   []byte(cfg.JWTSecret),
	}), nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	// amounts are rendered as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to init aws clients")
	}

	if !cfg.RunLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	r, err := setupRouter(cfg, clients)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up router")
	}

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.RunLocal {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("Running local server")
		if err := r.Run(addr); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run local server")
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
