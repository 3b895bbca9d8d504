package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-storefront-checkout/internal/checkout"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
)

// CheckoutMetrics records settled checkouts. *aws.Metrics implements it.
type CheckoutMetrics interface {
	RecordCheckout(ctx context.Context, charged float64, lines int) error
}

// Processor turns checkout.completed messages into order receipts.
type Processor struct {
	orderStore *orders.Store
	metrics    CheckoutMetrics
}

// NewProcessor creates a new worker processor. metrics may be nil.
func NewProcessor(orderStore *orders.Store, metrics CheckoutMetrics) *Processor {
	return &Processor{
		orderStore: orderStore,
		metrics:    metrics,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	logger.Info().Int("records", len(ev.Records)).Msg("Received SQS batch")
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			logger.Error().Err(err).Str("message_id", rec.MessageId).Msg("Error processing message")
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	if t, ok := rec.MessageAttributes["event_type"]; ok && t.StringValue != nil && *t.StringValue != checkout.EventType {
		logger.Warn().Str("message_id", rec.MessageId).Str("event_type", *t.StringValue).Msg("Skipping unknown event type")
		return nil
	}

	var ev checkout.CompletedEvent
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	receipt, err := receiptFromEvent(ev)
	if err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	log := logger.With().Str("order_id", ev.OrderID).Str("correlation_id", ev.CorrelationID).Logger()

	err = p.orderStore.Create(ctx, receipt)
	if errors.Is(err, orders.ErrAlreadyExists) {
		// duplicate delivery; the receipt and its metrics were recorded the first time
		if rerr := p.orderStore.RecordRedelivery(ctx, ev.OrderID); rerr != nil {
			log.Warn().Err(rerr).Msg("Error recording redelivery")
		}
		log.Info().Msg("Receipt already recorded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record receipt: %w", err)
	}

	if p.metrics != nil {
		if err := p.metrics.RecordCheckout(ctx, ev.ChargedAmount.InexactFloat64(), len(ev.Lines)); err != nil {
			// the receipt is stored; a retry would skip metrics anyway
			log.Error().Err(err).Msg("Error publishing checkout metrics")
		}
	}

	log.Info().Str("charged", ev.ChargedAmount.StringFixed(2)).Msg("Receipt recorded")
	return nil
}
