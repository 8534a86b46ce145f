// Package messaging provides Redis Streams adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"ops_server/core/port/out"
)

// defaultMaxLen caps stream length; trimming is approximate.
const defaultMaxLen = 10000

// RedisProducer implements the runbook job and event ports using Redis Streams.
type RedisProducer struct {
	client *redis.Client
	maxLen int64
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client, maxLen: defaultMaxLen}
}

var (
	_ out.RunbookJobProducer    = (*RedisProducer)(nil)
	_ out.RunbookEventPublisher = (*RedisProducer)(nil)
)

// PublishRunbookGenerate enqueues a regeneration job.
func (p *RedisProducer) PublishRunbookGenerate(ctx context.Context, job *out.RunbookGenerateJob) error {
	return p.publish(ctx, out.StreamRunbookGenerate, job)
}

// PublishRunbookGenerated announces a replaced window.
func (p *RedisProducer) PublishRunbookGenerated(ctx context.Context, event *out.RunbookGeneratedEvent) error {
	return p.publish(ctx, out.StreamRunbookEvents, event)
}

// publish publishes a payload to a stream under the "data" field.
func (p *RedisProducer) publish(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}
