package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestPublisher_Publish(t *testing.T) {
	client := &mockSQS{}
	p := NewPublisher(client, "https://sqs.local/queue")

	err := p.Publish(context.Background(), `{"order_id":"o1"}`, map[string]string{
		"event_type":     "checkout.completed",
		"correlation_id": "",
	})
	require.NoError(t, err)

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "https://sqs.local/queue", *in.QueueUrl)
	assert.Equal(t, `{"order_id":"o1"}`, *in.MessageBody)
	require.Contains(t, in.MessageAttributes, "event_type")
	assert.Equal(t, "checkout.completed", *in.MessageAttributes["event_type"].StringValue)
	assert.NotContains(t, in.MessageAttributes, "correlation_id", "empty attributes are dropped")
}

func TestPublisher_PublishError(t *testing.T) {
	boom := errors.New("queue gone")
	p := NewPublisher(&mockSQS{err: boom}, "q")
	assert.ErrorIs(t, p.Publish(context.Background(), "{}", nil), boom)
}

func TestMetrics_RecordCheckout(t *testing.T) {
	client := &mockCloudWatch{}
	m := NewMetrics(client, "Storefront")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.nowFunc = func() time.Time { return now }

	require.NoError(t, m.RecordCheckout(context.Background(), 39.98, 2))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "Storefront", *in.Namespace)
	values := map[string]float64{}
	for _, d := range in.MetricData {
		values[*d.MetricName] = *d.Value
		assert.Equal(t, now, *d.Timestamp)
	}
	assert.Equal(t, map[string]float64{"CheckoutsSettled": 1, "RevenueSettled": 39.98, "LinesSettled": 2}, values)
}

func TestMetrics_NilClientIsNoop(t *testing.T) {
	m := NewMetrics(nil, "Storefront")
	assert.NoError(t, m.RecordCheckout(context.Background(), 10, 1))

	var none *Metrics
	assert.NoError(t, none.RecordCheckout(context.Background(), 10, 1))
}

func TestMetrics_Error(t *testing.T) {
	boom := errors.New("throttled")
	m := NewMetrics(&mockCloudWatch{err: boom}, "Storefront")
	assert.ErrorIs(t, m.RecordCheckout(context.Background(), 10, 1), boom)
}
