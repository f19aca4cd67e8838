package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoReport is returned when no report has been stored for a scope yet.
var ErrNoReport = errors.New("no reconciliation report available")

// ReportCache keeps the latest report per scope for the ops endpoint.
type ReportCache interface {
	Save(ctx context.Context, report *Report) error
	Last(ctx context.Context, scope Scope) (*Report, error)
}

const reportKeySuffix = "reconcile:last:"

type RedisReportCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisReportCache(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{client: client, prefix: keyPrefix + reportKeySuffix, ttl: ttl}
}

func (c *RedisReportCache) key(scope Scope) string {
	if scope.Global() {
		return c.prefix + "global"
	}
	return c.prefix + "tenant:" + scope.TenantID.String()
}

func (c *RedisReportCache) Save(ctx context.Context, report *Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return c.client.Set(ctx, c.key(report.Scope), payload, c.ttl).Err()
}

func (c *RedisReportCache) Last(ctx context.Context, scope Scope) (*Report, error) {
	payload, err := c.client.Get(ctx, c.key(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

// MemoryReportCache is the single-process ReportCache.
type MemoryReportCache struct {
	mu      sync.RWMutex
	reports map[Scope]*Report
}

func NewMemoryReportCache() *MemoryReportCache {
	return &MemoryReportCache{reports: make(map[Scope]*Report)}
}

func (c *MemoryReportCache) Save(_ context.Context, report *Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[report.Scope] = report
	return nil
}

func (c *MemoryReportCache) Last(_ context.Context, scope Scope) (*Report, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	report, ok := c.reports[scope]
	if !ok {
		return nil, ErrNoReport
	}
	return report, nil
}
