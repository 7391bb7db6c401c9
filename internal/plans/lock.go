package plans

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another task already holds a plan's lock.
var ErrLocked = errors.New("generation already in progress")

// Locker grants exclusive generation rights per plan.
type Locker interface {
	// Acquire takes the plan's lock or fails with ErrLocked. The returned
	// function releases it.
	Acquire(ctx context.Context, planID string) (release func(), err error)
}

// LocalLocker serializes generation within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(_ context.Context, planID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[planID] {
		return nil, ErrLocked
	}
	l.held[planID] = true
	return func() {
		l.mu.Lock()
		delete(l.held, planID)
		l.mu.Unlock()
	}, nil
}

// releaseScript deletes the key only if it still carries our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisLocker serializes generation across processes sharing one database.
type RedisLocker struct {
	rdb *goredis.Client
	ttl time.Duration
}

// DefaultLockTTL bounds how long a crashed holder can block a plan.
const DefaultLockTTL = 10 * time.Minute

// NewRedisLocker connects to the redis at url and verifies it answers.
func NewRedisLocker(ctx context.Context, url string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}, nil
}

func lockKey(planID string) string { return "opoplan:generate:" + planID }

func (l *RedisLocker) Acquire(ctx context.Context, planID string) (func(), error) {
	token := uuid.NewString()
	key := lockKey(planID)
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err()
	}, nil
}

// Close closes the redis client.
func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}
