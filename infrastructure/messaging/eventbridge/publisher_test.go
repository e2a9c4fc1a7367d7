package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ontology/domain/events"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventbridge.PutEventsOutput), args.Error(1)
}

var at = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPublisher_Publish(t *testing.T) {
	// Arrange
	api := &mockAPI{}
	var captured *eventbridge.PutEventsInput
	api.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*eventbridge.PutEventsInput) }).
		Return(&eventbridge.PutEventsOutput{}, nil)
	p := NewPublisher(api, "nodes-bus", zap.NewNop())
	event := events.NewNodeCreated("n1", "alice", "Plan", "activity", "P", []string{"P"}, at)

	// Act
	err := p.Publish(context.Background(), event)

	// Assert
	require.NoError(t, err)
	require.Len(t, captured.Entries, 1)
	entry := captured.Entries[0]
	assert.Equal(t, "nodes-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeNodeCreated, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"node/n1"}, entry.Resources)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "n1", detail["aggregate_id"])
	assert.Equal(t, "P", detail["parent_id"])
}

func TestPublisher_PublishBatchChunksByTen(t *testing.T) {
	api := &mockAPI{}
	var sizes []int
	api.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).(*eventbridge.PutEventsInput).Entries))
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)
	p := NewPublisher(api, "bus", nil)

	batch := make([]events.DomainEvent, 23)
	for i := range batch {
		batch[i] = events.NewNodeDeleted("n", "alice", nil, at)
	}

	require.NoError(t, p.PublishBatch(context.Background(), batch))
	assert.Equal(t, []int{10, 10, 3}, sizes)
}

func TestPublisher_Failures(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		api := &mockAPI{}
		api.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))
		p := NewPublisher(api, "bus", nil)

		err := p.Publish(context.Background(), events.NewNodeDeleted("n", "alice", nil, at))

		assert.ErrorContains(t, err, "denied")
	})

	t.Run("failed entries", func(t *testing.T) {
		api := &mockAPI{}
		api.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("try later")},
			},
		}, nil)
		p := NewPublisher(api, "bus", nil)

		err := p.Publish(context.Background(), events.NewNodeDeleted("n", "alice", nil, at))

		assert.EqualError(t, err, "1 events failed to publish")
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		api := &mockAPI{}
		p := NewPublisher(api, "bus", nil)

		require.NoError(t, p.PublishBatch(context.Background(), nil))
		api.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
	})
}
