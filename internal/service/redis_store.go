package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/quizrun-backend/internal/config"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// SnapshotStore keeps partial progress of attempts so a session can be
// rebuilt after a restart.
type SnapshotStore interface {
	Save(ctx context.Context, a model.Attempt) error
	Load(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error)
	ActiveAttempt(ctx context.Context, userID int) (uuid.UUID, error)
}

// JobQueue hands persistence work to the background workers.
type JobQueue interface {
	Enqueue(ctx context.Context, queue string, payload any) error
}

// EventPublisher fans session events out to live subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, attemptID uuid.UUID, payload []byte) error
}

// InventoryCache holds the last computed inventory for a short while.
type InventoryCache interface {
	CachedInventory(ctx context.Context) (*model.Inventory, error)
	CacheInventory(ctx context.Context, inv model.Inventory, ttl time.Duration) error
}

// RedisStore implements SnapshotStore, JobQueue, EventPublisher and
// InventoryCache on one Redis client.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. Snapshots expire after snapshotTTL.
func NewRedisStore(rdb *redis.Client, snapshotTTL time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: snapshotTTL}
}

// Save writes the snapshot and maintains the user's active attempt pointer.
// A snapshot older than the stored one is dropped without error.
func (s *RedisStore) Save(ctx context.Context, a model.Attempt) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	inProgress := 0
	if a.Status == model.AttemptStatusInProgress {
		inProgress = 1
	}
	keys := []string{
		config.CacheKey.AttemptSnapshotKey(a.ID.String()),
		config.CacheKey.UserActiveAttemptKey(a.UserID),
	}
	if err := saveSnapshot.Run(ctx, s.rdb, keys, raw, a.Version, s.ttl.Milliseconds(), inProgress, a.ID.String()).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// saveSnapshot compares the stored version before writing. KEYS: snapshot,
// active pointer. ARGV: snapshot json, version, ttl ms, in progress flag,
// attempt id. The pointer is only cleared while it still refers to this attempt.
var saveSnapshot = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
	local ok, old = pcall(cjson.decode, cur)
	if ok and type(old) == "table" and tonumber(old.version or 0) > tonumber(ARGV[2]) then
		return 0
	end
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ttl)
else
	redis.call("SET", KEYS[1], ARGV[1])
end
if ARGV[4] == "1" then
	if ttl > 0 then
		redis.call("SET", KEYS[2], ARGV[5], "PX", ttl)
	else
		redis.call("SET", KEYS[2], ARGV[5])
	end
elseif redis.call("GET", KEYS[2]) == ARGV[5] then
	redis.call("DEL", KEYS[2])
end
return 1
`)

// Load reads a snapshot. Missing snapshots yield ErrSessionNotFound.
func (s *RedisStore) Load(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptSnapshotKey(attemptID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var a model.Attempt
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &a, nil
}

// ActiveAttempt returns the user's in-progress attempt id, or ErrSessionNotFound.
func (s *RedisStore) ActiveAttempt(ctx context.Context, userID int) (uuid.UUID, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.UserActiveAttemptKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrSessionNotFound
		}
		return uuid.Nil, fmt.Errorf("get active attempt: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrSessionNotFound
	}
	return id, nil
}

// Enqueue RPushes a JSON payload for the workers.
func (s *RedisStore) Enqueue(ctx context.Context, queue string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", queue, err)
	}
	if err := s.rdb.RPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", queue, err)
	}
	return nil
}

// Publish sends an event to the attempt's PubSub channel.
func (s *RedisStore) Publish(ctx context.Context, attemptID uuid.UUID, payload []byte) error {
	return s.rdb.Publish(ctx, config.CacheKey.AttemptEventsChannel(attemptID.String()), payload).Err()
}

// Subscribe streams the payloads published for an attempt until ctx ends or
// the returned close func is called.
func (s *RedisStore) Subscribe(ctx context.Context, attemptID uuid.UUID) (<-chan []byte, func() error, error) {
	ps := s.rdb.Subscribe(ctx, config.CacheKey.AttemptEventsChannel(attemptID.String()))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, ps.Close, nil
}

// CachedInventory returns the cached inventory, or nil on a cache miss.
func (s *RedisStore) CachedInventory(ctx context.Context) (*model.Inventory, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.InventoryKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inventory: %w", err)
	}

	var inv model.Inventory
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, nil
	}
	return &inv, nil
}

// CacheInventory stores the inventory for ttl.
func (s *RedisStore) CacheInventory(ctx context.Context, inv model.Inventory, ttl time.Duration) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, config.CacheKey.InventoryKey(), raw, ttl).Err()
}

// InvalidateInventory drops the cached inventory, e.g. after seeding questions.
func (s *RedisStore) InvalidateInventory(ctx context.Context) error {
	return s.rdb.Del(ctx, config.CacheKey.InventoryKey()).Err()
}

// Revoke marks a token id as logged out until ttl passes.
func (s *RedisStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return s.rdb.Set(ctx, config.CacheKey.RevokedTokenKey(jti), 1, ttl).Err()
}

// IsRevoked reports whether a token id was logged out.
func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, config.CacheKey.RevokedTokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
