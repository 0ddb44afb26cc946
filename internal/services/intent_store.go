package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// IntentStatus is the last-known remote status of a pending payment intent
type IntentStatus string

const (
	IntentStatusAwaiting IntentStatus = "AWAITING"
	IntentStatusPaid     IntentStatus = "PAID"
	IntentStatusFailed   IntentStatus = "FAILED"
	IntentStatusExpired  IntentStatus = "EXPIRED"
)

// IntentTTL bounds how long an unresolved intent is remembered. After this
// window the intent is treated as abandoned; Xendit remains the source of
// truth, so a client that lost its intent can re-initiate payment.
const IntentTTL = 15 * time.Minute

// PendingIntent is the ephemeral record of a payment awaiting confirmation.
// It is written only by the webhook ingestion pipeline (and the intent
// creation path) and deleted by promotion or TTL expiry.
type PendingIntent struct {
	CorrelationKey  string          `json:"correlation_key"`
	InvoiceID       string          `json:"invoice_id"`
	Status          IntentStatus    `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Channel         string          `json:"channel"`
	ChannelMetadata json.RawMessage `json:"channel_metadata,omitempty"`
	ReceivedAt      time.Time       `json:"received_at"`
}

// IntentStore maps a client correlation key to its pending intent.
// Get returns (nil, nil) for absent or expired keys; Delete of an absent key
// is a no-op. Implementations must be safe for concurrent use.
type IntentStore interface {
	Put(ctx context.Context, key string, intent PendingIntent) error
	Get(ctx context.Context, key string) (*PendingIntent, error)
	Delete(ctx context.Context, key string) error
}

type memoryIntentEntry struct {
	intent    PendingIntent
	expiresAt time.Time
}

// MemoryIntentStore is the default in-process intent store. Entries expire
// lazily on Get and via Sweep; losing them on restart is acceptable because
// the provider remains authoritative.
type MemoryIntentStore struct {
	mu      sync.RWMutex
	entries map[string]memoryIntentEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryIntentStore creates a store with the standard TTL
func NewMemoryIntentStore() *MemoryIntentStore {
	return NewMemoryIntentStoreWithClock(IntentTTL, time.Now)
}

// NewMemoryIntentStoreWithClock allows injecting TTL and clock
func NewMemoryIntentStoreWithClock(ttl time.Duration, now func() time.Time) *MemoryIntentStore {
	return &MemoryIntentStore{
		entries: make(map[string]memoryIntentEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (s *MemoryIntentStore) Put(ctx context.Context, key string, intent PendingIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryIntentEntry{
		intent:    intent,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryIntentStore) Get(ctx context.Context, key string) (*PendingIntent, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		// Expired entries are indistinguishable from never-existed
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, nil
	}
	intent := entry.intent
	return &intent, nil
}

func (s *MemoryIntentStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep removes all expired entries and returns how many were dropped
func (s *MemoryIntentStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until ctx is canceled
func (s *MemoryIntentStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

const intentKeyPrefix = "payment_intent:"

// RedisIntentStore keeps pending intents in Redis so multiple API instances
// observe the same intent state. TTL is enforced natively by Redis.
type RedisIntentStore struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewRedisIntentStore creates a Redis-backed intent store with the standard TTL
func NewRedisIntentStore(cache *RedisCache) *RedisIntentStore {
	return &RedisIntentStore{cache: cache, ttl: IntentTTL}
}

func (s *RedisIntentStore) Put(ctx context.Context, key string, intent PendingIntent) error {
	return s.cache.Set(ctx, intentKeyPrefix+key, intent, s.ttl)
}

func (s *RedisIntentStore) Get(ctx context.Context, key string) (*PendingIntent, error) {
	var intent PendingIntent
	err := s.cache.Get(ctx, intentKeyPrefix+key, &intent)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (s *RedisIntentStore) Delete(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, intentKeyPrefix+key)
}
