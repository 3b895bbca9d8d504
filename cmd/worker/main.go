package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker").Logger()

func main() {
	cfg, err := config.Read()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to init aws clients")
	}

	processor := NewProcessor(
		orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace),
	)

	// If RUN_LOCAL=true, process a single simulated SQS event for local testing.
	if cfg.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_id":"local-order-1","user_id":"local-user","charge_policy":"discounted","lines":[],"original_amount":0,"discount_amount":0,"charged_amount":0,"completed_at":"2024-01-01T00:00:00Z"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{
					MessageId: "local-1",
					Body:      testBody,
				},
			},
		}
		if err := processor.Handle(context.Background(), event); err != nil {
			logger.Fatal().Err(err).Msg("Local handler error")
		}
		return
	}

	lambda.Start(processor.Handle)
}
