package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgerrors "ontology/pkg/errors"
)

type mockCloudWatch struct {
	mock.Mock
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, params)
	return &cloudwatch.PutMetricDataOutput{}, args.Error(0)
}

func metricNames(in *cloudwatch.PutMetricDataInput) []string {
	names := make([]string, 0, len(in.MetricData))
	for _, d := range in.MetricData {
		names = append(names, aws.ToString(d.MetricName))
	}
	return names
}

func TestMetrics_RecordOperation(t *testing.T) {
	// Arrange
	client := &mockCloudWatch{}
	var inputs []*cloudwatch.PutMetricDataInput
	client.On("PutMetricData", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { inputs = append(inputs, args.Get(1).(*cloudwatch.PutMetricDataInput)) }).
		Return(nil)
	m := NewMetrics("Ontology", client, zap.NewNop())

	// Act
	m.RecordOperation(context.Background(), "CreateNode", 15*time.Millisecond, nil)
	m.RecordOperation(context.Background(), "CreateNode", time.Millisecond, pkgerrors.NewValidationError("bad"))

	// Assert
	require.Len(t, inputs, 2)
	assert.Equal(t, "Ontology", aws.ToString(inputs[0].Namespace))
	assert.Equal(t, []string{"OperationLatency", "OperationCount"}, metricNames(inputs[0]))
	assert.Equal(t, 15.0, aws.ToFloat64(inputs[0].MetricData[0].Value))
	assert.Equal(t, []string{"OperationLatency", "OperationCount", "Errors"}, metricNames(inputs[1]))
	assert.Equal(t, "VALIDATION", aws.ToString(inputs[1].MetricData[2].Dimensions[1].Value))
}

func TestMetrics_SendFailureIsSwallowed(t *testing.T) {
	client := &mockCloudWatch{}
	client.On("PutMetricData", mock.Anything, mock.Anything).Return(errors.New("throttled"))
	m := NewMetrics("Ontology", client, nil)

	assert.NotPanics(t, func() {
		m.RecordTransactionAttempts(context.Background(), "UpdateNode", 2)
	})
	client.AssertNumberOfCalls(t, "PutMetricData", 1)
}

func TestMetrics_NilClientIsNoop(t *testing.T) {
	m := NewMetrics("Ontology", nil, nil)

	assert.NotPanics(t, func() {
		m.RecordOperation(context.Background(), "GetNode", time.Millisecond, nil)
	})
}

func TestTracer_TraceFunction(t *testing.T) {
	tracer := NewTracer("ontology")

	t.Run("untraced without a segment", func(t *testing.T) {
		called := false
		err := tracer.TraceFunction(context.Background(), "op", func(ctx context.Context) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("subsegment carries the error", func(t *testing.T) {
		ctx, root := xray.BeginSegment(context.Background(), "test")
		defer root.Close(nil)
		boom := errors.New("boom")

		var inner *xray.Segment
		err := tracer.TraceFunction(ctx, "op", func(ctx context.Context) error {
			inner = xray.GetSegment(ctx)
			return boom
		})

		assert.ErrorIs(t, err, boom)
		require.NotNil(t, inner)
		assert.Equal(t, "op", inner.Name)
		assert.True(t, inner.Fault)
	})
}
