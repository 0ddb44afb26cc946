package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func TestMemoryIntentStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIntentStore()

	intent := PendingIntent{
		CorrelationKey: "corr_1",
		InvoiceID:      "inv_1",
		Status:         IntentStatusAwaiting,
		Amount:         decimal.NewFromInt(550),
		ReceivedAt:     time.Now(),
	}
	if err := store.Put(ctx, "corr_1", intent); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "corr_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored intent")
	}
	if got.InvoiceID != "inv_1" || got.Status != IntentStatusAwaiting {
		t.Errorf("Get returned %+v; want invoice inv_1, status AWAITING", got)
	}
	if !got.Amount.Equal(decimal.NewFromInt(550)) {
		t.Errorf("Amount = %s; want 550", got.Amount)
	}

	if err := store.Delete(ctx, "corr_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err = store.Get(ctx, "corr_1")
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get after delete = %+v; want nil", got)
	}

	// Deleting an absent key is a no-op
	if err := store.Delete(ctx, "corr_1"); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}
}

func TestMemoryIntentStoreExpiry(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryIntentStoreWithClock(15*time.Minute, func() time.Time { return current })

	if err := store.Put(ctx, "corr_1", PendingIntent{CorrelationKey: "corr_1", Status: IntentStatusPaid}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	current = current.Add(14 * time.Minute)
	got, err := store.Get(ctx, "corr_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("intent expired before its TTL")
	}

	current = current.Add(2 * time.Minute)
	got, err = store.Get(ctx, "corr_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("intent survived past its TTL: %+v", got)
	}
}

func TestMemoryIntentStoreSweep(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryIntentStoreWithClock(15*time.Minute, func() time.Time { return current })

	store.Put(ctx, "old_1", PendingIntent{CorrelationKey: "old_1"})
	store.Put(ctx, "old_2", PendingIntent{CorrelationKey: "old_2"})

	current = current.Add(10 * time.Minute)
	store.Put(ctx, "fresh", PendingIntent{CorrelationKey: "fresh"})

	current = current.Add(6 * time.Minute)
	if removed := store.Sweep(); removed != 2 {
		t.Errorf("Sweep removed %d entries; want 2", removed)
	}

	got, _ := store.Get(ctx, "fresh")
	if got == nil {
		t.Error("Sweep dropped an unexpired entry")
	}
}

func TestRedisIntentStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIntentStore(NewRedisCacheFromClient(client))

	intent := PendingIntent{
		CorrelationKey: "corr_1",
		InvoiceID:      "inv_1",
		Status:         IntentStatusPaid,
		Amount:         decimal.NewFromInt(550),
		Channel:        "GCASH",
	}
	if err := store.Put(ctx, "corr_1", intent); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "corr_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored intent")
	}
	if got.Status != IntentStatusPaid || got.Channel != "GCASH" {
		t.Errorf("Get returned %+v; want status PAID, channel GCASH", got)
	}

	// Absent keys read as nil, not an error
	missing, err := store.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get of absent key failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Get of absent key = %+v; want nil", missing)
	}

	// Redis enforces the TTL natively
	mr.FastForward(IntentTTL + time.Second)
	got, err = store.Get(ctx, "corr_1")
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if got != nil {
		t.Errorf("intent survived past its TTL: %+v", got)
	}
}
