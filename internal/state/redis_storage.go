package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/Proton-105/signalctl/internal/errors"
)

const (
	snapshotKeyPattern = "fsm:snapshot:%s"
	defaultSnapshotTTL = 24 * time.Hour
)

// KeyValue is the subset of the redis client used for snapshots.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisStorage persists snapshots in Redis as JSON. Writes go through a
// circuit breaker so an unreachable server does not slow every tick.
type RedisStorage struct {
	client  KeyValue
	log     *slog.Logger
	ttl     time.Duration
	breaker *apperrors.CircuitBreaker
}

// NewRedisStorage initializes a Redis-backed Storage implementation.
func NewRedisStorage(client KeyValue, log *slog.Logger, ttl time.Duration) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}

	return &RedisStorage{
		client:  client,
		log:     log,
		ttl:     ttl,
		breaker: apperrors.NewCircuitBreaker(),
	}
}

// SaveSnapshot encodes snap and stores it with the configured TTL.
func (s *RedisStorage) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Error("failed to encode state snapshot", "machine_id", snap.MachineID, "error", err)
		return err
	}

	err = s.breaker.Call(func() error {
		return s.client.Set(ctx, snapshotKey(snap.MachineID), data, s.ttl)
	})
	if err != nil {
		return apperrors.NewStorageError(fmt.Errorf("save snapshot %s: %w", snap.MachineID, err))
	}

	return nil
}

// LoadSnapshot returns the stored snapshot or ErrSnapshotNotFound when absent.
func (s *RedisStorage) LoadSnapshot(ctx context.Context, machineID string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(machineID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}

		s.log.Error("failed to get state snapshot from redis", "machine_id", machineID, "error", err)
		return nil, apperrors.NewStorageError(err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		s.log.Error("failed to decode state snapshot", "machine_id", machineID, "error", err)
		return nil, err
	}

	return &snap, nil
}

// ClearSnapshot removes the stored snapshot for machineID.
func (s *RedisStorage) ClearSnapshot(ctx context.Context, machineID string) error {
	if err := s.client.Delete(ctx, snapshotKey(machineID)); err != nil {
		s.log.Error("failed to clear state snapshot", "machine_id", machineID, "error", err)
		return apperrors.NewStorageError(err)
	}

	return nil
}

func snapshotKey(machineID string) string {
	return fmt.Sprintf(snapshotKeyPattern, machineID)
}
