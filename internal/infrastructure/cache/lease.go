package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
)

// Lease grants exclusive work on a key for a bounded time. Release is safe
// to call after expiry; it never removes a lease taken by someone else.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease coordinates several service instances with SET NX PX.
type RedisLease struct {
	client    *redis.Client
	keyPrefix string
	token     func() string
}

func NewRedisLease(client *redis.Client, keyPrefix string) (*RedisLease, error) {
	if keyPrefix == "" {
		keyPrefix = "smm:lease:"
	}
	token, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("init lease token generator: %w", err)
	}
	return &RedisLease{client: client, keyPrefix: keyPrefix, token: token}, nil
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	full := l.keyPrefix + key
	token := l.token()
	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{full}, token).Err()
	}
	return release, true, nil
}

// LocalLease is the single-instance fallback.
type LocalLease struct {
	mu     sync.Mutex
	now    func() time.Time
	leases map[string]localEntry
	seq    uint64
}

type localEntry struct {
	id      uint64
	expires time.Time
}

func NewLocalLease() *LocalLease {
	return &LocalLease{now: time.Now, leases: make(map[string]localEntry)}
}

func (l *LocalLease) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[key]; ok && now.Before(cur.expires) {
		return func() {}, false, nil
	}
	l.seq++
	id := l.seq
	l.leases[key] = localEntry{id: id, expires: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.leases[key]; ok && cur.id == id {
			delete(l.leases, key)
		}
	}
	return release, true, nil
}
