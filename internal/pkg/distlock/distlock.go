// Package distlock provides a Redis-backed lease so only one service
// replica scans the ingest bucket at a time. The lease carries a random
// owner token and releases through a compare-and-delete script, so a
// replica cannot drop a lease that expired and was re-acquired elsewhere.
package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// Lease is a single-holder lock with a TTL. The TTL bounds how long a
// crashed holder can block other replicas.
type Lease struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// New builds a lease on the given key. Each Lease gets its own owner
// token, so construct one per replica, not per attempt.
func New(client *redis.Client, key string, ttl time.Duration) *Lease {
	b := make([]byte, 16)
	rand.Read(b)
	return &Lease{
		client: client,
		key:    "lease:" + key,
		owner:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lease without blocking. It returns
// false when another holder has it.
func (l *Lease) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return ok, nil
}

// Release drops the lease if this holder still owns it.
func (l *Lease) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Result()
	return err
}
