package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token so a
// slow holder cannot release a lock that expired and was re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a best-effort mutual exclusion helper on top of SET NX.
// A nil *RedisLocker, or one without a client, grants every lock.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker returns a locker using client.  client may be nil.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire tries to take key for ttl.  It reports false when another holder
// owns the key.  The returned release function is always safe to call.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	noop := func() {}
	if l == nil || l.client == nil {
		return noop, true, nil
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return noop, false, err
	}
	token := hex.EncodeToString(buf)
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return noop, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return noop, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

func finalizeLockKey(orgID, txID string) string {
	return "finalize:" + orgID + ":" + txID
}
