package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idemp:"

// RedisStore implements Store with SETNX reservations. Key expiry is delegated to Redis.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Reserve implements Store.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	record := pendingRecord(key, fingerprint, now, ttl)
	payload, err := json.Marshal(record)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: encode record: %w", err)
	}

	// A key that expires between SETNX and GET is reserved again on the second pass.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.rdb.SetNX(ctx, redisKeyPrefix+documentID(key), payload, ttlOrDefault(ttl)).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if ok {
			return Reservation{State: ReservationStateNew, Record: record}, nil
		}
		existing, found, err := s.load(ctx, key)
		if err != nil {
			return Reservation{}, err
		}
		if found {
			return classify(existing, fingerprint)
		}
	}
	return Reservation{}, errors.New("idempotency: reservation raced with expiry")
}

// Complete implements Store.
func (s *RedisStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	record, found, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if found && record.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	if !found {
		record = Record{Key: key, Fingerprint: fingerprint}
	}
	payload, err := json.Marshal(completeRecord(record, resp, now, ttl))
	if err != nil {
		return fmt.Errorf("idempotency: encode record: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+documentID(key), payload, ttlOrDefault(ttl)).Err(); err != nil {
		return fmt.Errorf("idempotency: save response: %w", err)
	}
	return nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, redisKeyPrefix+documentID(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, key string) (Record, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+documentID(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("idempotency: load: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, false, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, true, nil
}
