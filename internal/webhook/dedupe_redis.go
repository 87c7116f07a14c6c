package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "webhook:event:"

// RedisDeduper shares processed-event state across instances. Keys expire
// with the retention window so the set stays bounded.
type RedisDeduper struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisDeduper(client *redis.Client, retention time.Duration) *RedisDeduper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisDeduper{client: client, retention: retention}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, dedupeKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return d.client.Set(ctx, dedupeKeyPrefix+eventID, "1", d.retention).Err()
}
