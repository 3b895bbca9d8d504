package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes custom CloudWatch metrics under one namespace.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetrics returns a Metrics emitter. A nil client yields a no-op emitter.
func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// RecordCheckout emits the settled-checkout count and charged revenue.
func (m *Metrics) RecordCheckout(ctx context.Context, charged float64, lines int) error {
	if m == nil || m.client == nil {
		return nil
	}
	now := m.nowFunc()
	input := &cloudwatch.PutMetricDataInput{
		Namespace: awsString(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString("CheckoutsSettled"),
				Timestamp:  &now,
				Unit:       cwtypes.StandardUnitCount,
				Value:      float64Ptr(1),
			},
			{
				MetricName: awsString("RevenueSettled"),
				Timestamp:  &now,
				Unit:       cwtypes.StandardUnitNone,
				Value:      float64Ptr(charged),
			},
			{
				MetricName: awsString("LinesSettled"),
				Timestamp:  &now,
				Unit:       cwtypes.StandardUnitCount,
				Value:      float64Ptr(float64(lines)),
			},
		},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func float64Ptr(v float64) *float64 { return &v }
