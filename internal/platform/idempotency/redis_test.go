package idempotency

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("IDEMPOTENCY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IDEMPOTENCY_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisStore(rdb)
	key := "test-" + time.Now().Format(time.RFC3339Nano)
	t.Cleanup(func() { _ = store.Release(ctx, key) })

	first, err := store.Reserve(ctx, key, "fp", time.Now(), time.Minute)
	if err != nil || first.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %v err=%v", first.State, err)
	}
	second, err := store.Reserve(ctx, key, "fp", time.Now(), time.Minute)
	if err != nil || second.State != ReservationStatePending {
		t.Fatalf("expected pending reservation, got %v err=%v", second.State, err)
	}
	if _, err := store.Reserve(ctx, key, "other", time.Now(), time.Minute); err != ErrFingerprintMismatch {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}
	if err := store.Complete(ctx, key, "fp", Response{Status: http.StatusCreated, Body: []byte("ok")}, time.Now(), time.Minute); err != nil {
		t.Fatalf("complete: %v", err)
	}
	replay, err := store.Reserve(ctx, key, "fp", time.Now(), time.Minute)
	if err != nil || replay.State != ReservationStateCompleted || string(replay.Record.ResponseBody) != "ok" {
		t.Fatalf("expected completed replay, got %+v err=%v", replay, err)
	}
}
