package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ops_server/core/domain"
	"ops_server/core/port/out"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client), mr
}

func TestTemplateCache(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if _, ok, err := c.GetTemplates(ctx); ok || err != nil {
		t.Fatalf("GetTemplates() on empty cache = (%v, %v), want miss", ok, err)
	}

	templates := []domain.TaskTemplate{{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		TaskType:  "post",
		TimeSlot:  "09:00",
		Priority:  1,
		Frequency: domain.FrequencyDaily,
		Enabled:   true,
	}}
	if err := c.SetTemplates(ctx, templates, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.GetTemplates(ctx)
	if err != nil || !ok {
		t.Fatalf("GetTemplates() = (%v, %v), want hit", ok, err)
	}
	if diff := cmp.Diff(templates, got); diff != "" {
		t.Errorf("GetTemplates() mismatch (-want +got):\n%s", diff)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.GetTemplates(ctx); ok {
		t.Error("expected templates to expire")
	}

	_ = c.SetTemplates(ctx, templates, time.Minute)
	if err := c.InvalidateTemplates(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.GetTemplates(ctx); ok {
		t.Error("expected miss after invalidation")
	}
}

func TestGetJSONCorrupt(t *testing.T) {
	c, mr := newTestCache(t)
	_ = mr.Set(templatesKey, "{not json")

	if _, _, err := c.GetTemplates(context.Background()); err == nil {
		t.Error("GetTemplates() expected decode error")
	}
}

func TestAcquire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := "runbook:lock:staff"

	release, err := c.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := c.Acquire(ctx, key, time.Minute); !errors.Is(err, out.ErrLockHeld) {
		t.Fatalf("second Acquire() error = %v, want ErrLockHeld", err)
	}

	release()
	if mr.Exists(key) {
		t.Fatal("release did not delete the lock")
	}

	release2, err := c.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	defer release2()
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := "runbook:lock:staff"

	release, err := c.Acquire(ctx, key, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Second)

	// Another holder takes the expired lock; the stale release must not free it.
	if _, err := c.Acquire(ctx, key, time.Minute); err != nil {
		t.Fatal(err)
	}
	release()
	if !mr.Exists(key) {
		t.Error("stale release deleted another holder's lock")
	}
}
