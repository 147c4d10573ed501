package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgen-api/internal/domain/entity"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func testConsumer(rdb *redis.Client, retryLimit int) *Consumer {
	return NewConsumer(rdb, ConsumerConfig{
		Stream:        StreamPresentationGen,
		Group:         ConsumerGroupPresentationWorker,
		ConsumerName:  "test-worker",
		BlockTimeout:  20 * time.Millisecond,
		ClaimInterval: time.Hour,
		RetryLimit:    retryLimit,
		Backoff:       BackoffConfig{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2},
	})
}

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2))
	assert.Equal(t, 5*time.Second, cfg.CalculateBackoff(3))
	assert.Equal(t, 5*time.Second, cfg.CalculateBackoff(10))
}

func TestPublishAndConsumePresentationJob(t *testing.T) {
	rdb := newRedis(t)
	producer := NewProducer(rdb, 0)
	consumer := testConsumer(rdb, 3)

	received := make(chan *PresentationJobMessage, 1)
	consumer.RegisterHandler(MessageTypePresentationGen, func(ctx context.Context, msg *Message) error {
		assert.Equal(t, "req-1", msg.GetMetadata("request_id"))
		var job PresentationJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		received <- &job
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Start(ctx))
	defer consumer.Stop()

	req := entity.DefaultGenerationRequest(6, "en")
	req.UserPrompt = "history of the printing press"
	_, err := producer.PublishPresentationJob(ctx, &PresentationJobMessage{JobID: "job-1", Request: req}, "req-1", "")
	require.NoError(t, err)

	select {
	case job := <-received:
		assert.Equal(t, "job-1", job.JobID)
		assert.Equal(t, "history of the printing press", job.Request.UserPrompt)
	case <-time.After(3 * time.Second):
		t.Fatal("message was not consumed")
	}
}

func TestConsumer_MovesToDLQAfterRetryLimit(t *testing.T) {
	rdb := newRedis(t)
	producer := NewProducer(rdb, 0)
	consumer := testConsumer(rdb, 1)
	consumer.RegisterHandler(MessageTypePresentationGen, func(context.Context, *Message) error {
		return errors.New("provider unavailable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Start(ctx))
	defer consumer.Stop()

	_, err := producer.PublishPresentationJob(ctx, &PresentationJobMessage{JobID: "job-2"}, "", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := rdb.XLen(ctx, StreamPresentationGen.DLQStream()).Result()
		return err == nil && n == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestConsumer_StartTwice(t *testing.T) {
	rdb := newRedis(t)
	consumer := testConsumer(rdb, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, consumer.Start(ctx))
	defer consumer.Stop()
	assert.Error(t, consumer.Start(ctx))
}
