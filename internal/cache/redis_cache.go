package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/maryannartillero/POS-namon/internal/domain"
)

const keyPrefix = "pos:report:"

// RedisReportCache scopes keys by the location the report buckets were
// computed in.
type RedisReportCache struct {
	client redis.UniversalClient
	zone   string
}

func NewRedisReportCache(addr string, password string, db int, loc *time.Location) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisReportCacheWithClient(client, loc)
}

// NewRedisReportCacheWithClient wraps an existing single-node or cluster client.
func NewRedisReportCacheWithClient(client redis.UniversalClient, loc *time.Location) *RedisReportCache {
	if loc == nil {
		loc = time.UTC
	}
	return &RedisReportCache{client: client, zone: loc.String()}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

func dailyKey(zone string, date string) string {
	return keyPrefix + zone + ":daily:" + date
}

func monthlyKey(zone string, year int, month int) string {
	return fmt.Sprintf("%s%s:monthly:%04d-%02d", keyPrefix, zone, year, month)
}

func (c *RedisReportCache) GetDaily(ctx context.Context, date string) (*domain.DailyReport, bool, error) {
	var report domain.DailyReport
	ok, err := c.get(ctx, dailyKey(c.zone, date), &report)
	if !ok || err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisReportCache) SetDaily(ctx context.Context, report *domain.DailyReport, ttl time.Duration) error {
	if report == nil {
		return nil
	}
	return c.set(ctx, dailyKey(c.zone, report.Date), report, ttl)
}

func (c *RedisReportCache) GetMonthly(ctx context.Context, year int, month int) (*domain.MonthlyReport, bool, error) {
	var report domain.MonthlyReport
	ok, err := c.get(ctx, monthlyKey(c.zone, year, month), &report)
	if !ok || err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisReportCache) SetMonthly(ctx context.Context, report *domain.MonthlyReport, ttl time.Duration) error {
	if report == nil {
		return nil
	}
	return c.set(ctx, monthlyKey(c.zone, report.Year, report.Month), report, ttl)
}

func (c *RedisReportCache) get(ctx context.Context, key string, dst any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisReportCache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
