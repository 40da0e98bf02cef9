package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	_snapshotKeyPrefix = "campaign:status:"

	_defaultConnAttempts = 5
	_defaultConnTimeout  = 2 * time.Second
)

// SnapshotCache keeps the latest status snapshot per campaign. Snapshots are
// self-contained, so overwriting with whatever arrives last is always safe.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	var pingErr error
	for attempts := _defaultConnAttempts; attempts > 0; attempts-- {
		if pingErr = client.Ping(ctx).Err(); pingErr == nil {
			break
		}

		time.Sleep(_defaultConnTimeout)
	}
	if pingErr != nil {
		return nil, fmt.Errorf("SnapshotCache - New - client.Ping: %w", pingErr)
	}

	return &SnapshotCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func (c *SnapshotCache) SetSnapshot(ctx context.Context, snapshot entity.StatusSnapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("SnapshotCache - SetSnapshot - json.Marshal: %w", err)
	}

	err = c.client.Set(ctx, _snapshotKeyPrefix+snapshot.CampaignID.String(), value, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("SnapshotCache - SetSnapshot - c.client.Set: %w", err)
	}

	return nil
}

func (c *SnapshotCache) GetSnapshot(ctx context.Context, campaignID uuid.UUID) (*entity.StatusSnapshot, error) {
	value, err := c.client.Get(ctx, _snapshotKeyPrefix+campaignID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("SnapshotCache - GetSnapshot: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("SnapshotCache - GetSnapshot - c.client.Get: %w", err)
	}

	var snapshot entity.StatusSnapshot
	if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
		return nil, fmt.Errorf("SnapshotCache - GetSnapshot - json.Unmarshal: %w", err)
	}

	return &snapshot, nil
}

func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
