// internal/cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key and channel the service writes.
const KeyPrefix = "streamify:"

// Options selects the redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect creates a client and pings it.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// Denylist stores revoked session token ids with a TTL matching the token's
// remaining lifetime, so entries clean themselves up.
type Denylist struct {
	rdb *redis.Client
	now func() time.Time
}

func NewDenylist(rdb *redis.Client) *Denylist {
	return &Denylist{rdb: rdb, now: time.Now}
}

func revokedKey(jti string) string { return KeyPrefix + "revoked:" + jti }

func (d *Denylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	var ttl time.Duration
	if !until.IsZero() {
		ttl = until.Sub(d.now())
		if ttl <= 0 {
			// already expired, nothing to deny
			return nil
		}
	}
	if err := d.rdb.Set(ctx, revokedKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token %s: %w", jti, err)
	}
	return nil
}

func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := d.rdb.Get(ctx, revokedKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up token %s: %w", jti, err)
	}
	return true, nil
}
