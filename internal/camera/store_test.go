package camera

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return NewStore(redisClient, ttl), redisClient, mr
}

func TestNewStore_DefaultTTL(t *testing.T) {
	store := NewStore(redis.NewClient(&redis.Options{}), 0)
	if store.frameTTL != 30*time.Second {
		t.Errorf("expected default TTL 30s, got %v", store.frameTTL)
	}
}

func TestStore_StoreAndGetLatestFrame(t *testing.T) {
	store, _, _ := newTestStore(t, 60*time.Second)
	ctx := context.Background()

	frame := &Frame{
		SessionID: "watch_abc",
		Timestamp: time.Now().UnixMilli(),
		Data:      []byte("jpeg bytes"),
		Width:     640,
		Height:    480,
	}

	if err := store.StoreFrame(ctx, frame); err != nil {
		t.Fatalf("StoreFrame failed: %v", err)
	}

	retrieved, err := store.GetLatestFrame(ctx, "watch_abc")
	if err != nil {
		t.Fatalf("GetLatestFrame failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("expected frame to be retrieved")
	}
	if string(retrieved.Data) != "jpeg bytes" {
		t.Errorf("expected 'jpeg bytes', got %s", string(retrieved.Data))
	}
	if retrieved.Timestamp != frame.Timestamp {
		t.Errorf("expected timestamp %d, got %d", frame.Timestamp, retrieved.Timestamp)
	}
}

func TestStore_GetLatestFrame_MultipleFrames(t *testing.T) {
	store, _, _ := newTestStore(t, 60*time.Second)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	store.StoreFrame(ctx, &Frame{SessionID: "s", Timestamp: now - 2000, Data: []byte("oldest")})
	store.StoreFrame(ctx, &Frame{SessionID: "s", Timestamp: now - 1000, Data: []byte("middle")})
	store.StoreFrame(ctx, &Frame{SessionID: "s", Timestamp: now, Data: []byte("newest")})

	retrieved, err := store.GetLatestFrame(ctx, "s")
	if err != nil {
		t.Fatalf("GetLatestFrame failed: %v", err)
	}
	if string(retrieved.Data) != "newest" {
		t.Errorf("expected 'newest', got %s", string(retrieved.Data))
	}
}

func TestStore_GetLatestFrame_NoFrames(t *testing.T) {
	store, _, _ := newTestStore(t, 60*time.Second)

	retrieved, err := store.GetLatestFrame(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetLatestFrame failed: %v", err)
	}
	if retrieved != nil {
		t.Error("expected nil for non-existent session")
	}
}

func TestStore_PrunesOldFrames(t *testing.T) {
	store, redisClient, _ := newTestStore(t, 5*time.Second)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	store.StoreFrame(ctx, &Frame{SessionID: "s", Timestamp: now - 60000, Data: []byte("ancient")})
	store.StoreFrame(ctx, &Frame{SessionID: "s", Timestamp: now, Data: []byte("fresh")})

	count, err := redisClient.ZCard(ctx, frameKey("s")).Result()
	if err != nil {
		t.Fatalf("ZCard failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected stale frame pruned, got %d members", count)
	}

	retrieved, _ := store.GetLatestFrame(ctx, "s")
	if retrieved == nil || string(retrieved.Data) != "fresh" {
		t.Error("expected fresh frame to survive pruning")
	}
}

func TestStore_DeleteFrames(t *testing.T) {
	store, _, _ := newTestStore(t, 60*time.Second)
	ctx := context.Background()

	store.StoreFrame(ctx, &Frame{SessionID: "s", Timestamp: time.Now().UnixMilli(), Data: []byte("x")})

	if err := store.DeleteFrames(ctx, "s"); err != nil {
		t.Fatalf("DeleteFrames failed: %v", err)
	}

	retrieved, _ := store.GetLatestFrame(ctx, "s")
	if retrieved != nil {
		t.Error("frame should not exist after delete")
	}
}

func TestStore_DeleteFrames_NonExistent(t *testing.T) {
	store, _, _ := newTestStore(t, 60*time.Second)

	if err := store.DeleteFrames(context.Background(), "missing"); err != nil {
		t.Errorf("DeleteFrames should not error on non-existent session: %v", err)
	}
}
