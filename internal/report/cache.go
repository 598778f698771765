package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCache holds recent job states in front of the job store
type StatusCache interface {
	Get(ctx context.Context, reportID string) (*Job, error)
	Set(ctx context.Context, job *Job) error
}

// RedisStatusCache keeps job states in Redis as JSON
type RedisStatusCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStatusCache creates a Redis-backed status cache. Entries expire
// after ttl so abandoned ids do not accumulate.
func NewRedisStatusCache(redisClient *redis.Client, ttl time.Duration) *RedisStatusCache {
	return &RedisStatusCache{redis: redisClient, ttl: ttl}
}

func statusKey(reportID string) string {
	return fmt.Sprintf("report_status:%s", reportID)
}

// Get returns the cached job, or nil if none is cached
func (c *RedisStatusCache) Get(ctx context.Context, reportID string) (*Job, error) {
	data, err := c.redis.Get(ctx, statusKey(reportID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status from Redis: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	return &job, nil
}

// Set stores the job state
func (c *RedisStatusCache) Set(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := c.redis.Set(ctx, statusKey(job.ReportID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set status in Redis: %w", err)
	}

	return nil
}
