package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLeaseHeld is returned when another replica is already running an audit.
	ErrLeaseHeld = errors.New("reconciliation lease held by another runner")
	// ErrLeaseTTL is returned for a non-positive TTL, which would make a lease that
	// outlives a crashed runner forever.
	ErrLeaseTTL = errors.New("reconciliation lease ttl must be positive")
)

// Lease serializes audit runs across replicas.
type Lease interface {
	// Acquire returns a release func when the lease was taken, or ErrLeaseHeld.
	Acquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, err error)
}

const leaseKeySuffix = "reconcile:lease"

// releaseScript deletes the lease only if it still belongs to the caller, so a run
// that outlived its TTL cannot drop a lease taken by the next runner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a single-key SET NX lease.
type RedisLease struct {
	client *redis.Client
	key    string
	owner  string
}

func NewRedisLease(client *redis.Client, keyPrefix string) *RedisLease {
	return &RedisLease{
		client: client,
		key:    keyPrefix + leaseKeySuffix,
		owner:  uuid.NewString(),
	}
}

func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (func(context.Context) error, error) {
	if ttl <= 0 {
		return nil, ErrLeaseTTL
	}
	token := l.owner + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}, nil
}

// LocalLease serializes runs within one process.
type LocalLease struct {
	mu      sync.Mutex
	held    bool
	expires time.Time
	now     func() time.Time
}

func NewLocalLease() *LocalLease {
	return &LocalLease{now: time.Now}
}

func (l *LocalLease) Acquire(_ context.Context, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if l.held && now.Before(l.expires) {
		return nil, ErrLeaseHeld
	}
	l.held = true
	l.expires = now.Add(ttl)
	gen := l.expires
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held && l.expires.Equal(gen) {
			l.held = false
		}
		return nil
	}, nil
}
