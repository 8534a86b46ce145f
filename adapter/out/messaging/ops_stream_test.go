package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ops_server/core/port/out"
)

type recordingHandler struct {
	streams []string
	jobs    []out.RunbookGenerateJob
	err     error
}

func (h *recordingHandler) Handle(ctx context.Context, stream string, data []byte) error {
	if h.err != nil {
		return h.err
	}
	var job out.RunbookGenerateJob
	if err := json.Unmarshal(data, &job); err != nil {
		return err
	}
	h.streams = append(h.streams, stream)
	h.jobs = append(h.jobs, job)
	return nil
}

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestConsumer(client *redis.Client, h JobHandler) *Consumer {
	return NewConsumer(client, &ConsumerConfig{
		Group:    "runbook-workers",
		Consumer: "test-1",
		Streams:  []string{out.StreamRunbookGenerate},
		Handler:  h,
		Logger:   zerolog.Nop(),
		Block:    -1,
	})
}

func TestProduceAndConsume(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	h := &recordingHandler{}
	c := newTestConsumer(client, h)
	if err := c.EnsureGroups(ctx); err != nil {
		t.Fatal(err)
	}
	// Idempotent
	if err := c.EnsureGroups(ctx); err != nil {
		t.Fatalf("second EnsureGroups() error = %v", err)
	}

	p := NewRedisProducer(client)
	job := &out.RunbookGenerateJob{StaffID: "s1", Date: "2024-01-01", Source: "api"}
	if err := p.PublishRunbookGenerate(ctx, job); err != nil {
		t.Fatal(err)
	}

	n, err := c.Poll(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Poll() = (%d, %v), want (1, nil)", n, err)
	}
	if len(h.jobs) != 1 || h.jobs[0] != *job || h.streams[0] != out.StreamRunbookGenerate {
		t.Errorf("handled %+v on %v", h.jobs, h.streams)
	}

	pending, err := client.XPending(ctx, out.StreamRunbookGenerate, "runbook-workers").Result()
	if err != nil {
		t.Fatal(err)
	}
	if pending.Count != 0 {
		t.Errorf("pending = %d, want 0 after ack", pending.Count)
	}

	n, err = c.Poll(ctx)
	if err != nil || n != 0 {
		t.Errorf("Poll() on drained stream = (%d, %v), want (0, nil)", n, err)
	}
}

func TestFailedMessageStaysPending(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	c := newTestConsumer(client, &recordingHandler{err: errors.New("db down")})
	if err := c.EnsureGroups(ctx); err != nil {
		t.Fatal(err)
	}

	_ = NewRedisProducer(client).PublishRunbookGenerate(ctx, &out.RunbookGenerateJob{StaffID: "s1", Date: "2024-01-01"})

	n, err := c.Poll(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Poll() = (%d, %v), want (0, nil)", n, err)
	}
	pending, err := client.XPending(ctx, out.StreamRunbookGenerate, "runbook-workers").Result()
	if err != nil {
		t.Fatal(err)
	}
	if pending.Count != 1 {
		t.Errorf("pending = %d, want 1", pending.Count)
	}
}

func TestPublishRunbookGenerated(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	event := &out.RunbookGeneratedEvent{
		StaffID:     "s1",
		From:        "2024-01-01",
		To:          "2024-01-07",
		Generated:   19,
		GeneratedAt: time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC),
	}
	if err := NewRedisProducer(client).PublishRunbookGenerated(ctx, event); err != nil {
		t.Fatal(err)
	}

	msgs, err := client.XRange(ctx, out.StreamRunbookEvents, "-", "+").Result()
	if err != nil || len(msgs) != 1 {
		t.Fatalf("XRange() = (%v, %v), want one message", msgs, err)
	}
	var got out.RunbookGeneratedEvent
	if err := json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Generated != 19 || !got.GeneratedAt.Equal(event.GeneratedAt) {
		t.Errorf("event = %+v", got)
	}
}
