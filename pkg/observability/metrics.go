package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	pkgerrors "ontology/pkg/errors"
)

// CloudWatchAPI is the subset of the CloudWatch client used for metrics
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics sends node service measurements to CloudWatch
type Metrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
	now       func() time.Time
}

// NewMetrics creates a new metrics instance. A nil client disables sending.
func NewMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordOperation records latency and outcome of a service operation
func (m *Metrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	dims := []types.Dimension{
		dimension("Operation", operation),
		dimension("Status", status),
	}
	data := []types.MetricDatum{
		m.datum("OperationLatency", dims, float64(duration.Milliseconds()), types.StandardUnitMilliseconds),
		m.datum("OperationCount", dims, 1, types.StandardUnitCount),
	}
	if err != nil {
		data = append(data, m.datum("Errors", []types.Dimension{
			dimension("Operation", operation),
			dimension("ErrorType", errorType(err)),
		}, 1, types.StandardUnitCount))
	}
	m.put(ctx, data)
}

// RecordTransactionAttempts records how many times a transaction body ran
func (m *Metrics) RecordTransactionAttempts(ctx context.Context, operation string, attempts int) {
	m.put(ctx, []types.MetricDatum{
		m.datum("TransactionAttempts", []types.Dimension{dimension("Operation", operation)},
			float64(attempts), types.StandardUnitCount),
	})
}

func (m *Metrics) datum(name string, dims []types.Dimension, value float64, unit types.StandardUnit) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dims,
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(m.now()),
	}
}

func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	if m.client == nil {
		return
	}
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Warn("Failed to send metrics", zap.Error(err))
	}
}

func dimension(name, value string) types.Dimension {
	return types.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

func errorType(err error) string {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		return string(appErr.Type)
	}
	return "INTERNAL"
}
