package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"edulearn-connect/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	// UserListKey is the Redis key holding the rendered user listing.
	UserListKey = "edulearn:users:list"
	// UserListGenerationKey is bumped on every write to the users table.
	UserListGenerationKey = "edulearn:users:gen"
)

// UserListCache caches the full user listing between writes.
//
// Readers take the Generation before querying the database and pass it to Set.
// Set stores nothing when a write invalidated the listing in between, so a slow
// read can never put a pre-write listing back.
type UserListCache interface {
	// Get reports false when nothing is cached.
	Get(ctx context.Context) ([]models.User, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, generation int64, users []models.User) error
	Invalidate(ctx context.Context) error
}

// NewUserListCache returns a Redis backed cache, or a no-op cache when rdb is nil.
func NewUserListCache(rdb *redis.Client, ttl time.Duration) UserListCache {
	if rdb == nil {
		return nopCache{}
	}
	return &redisUserListCache{rdb: rdb, ttl: ttl}
}

type redisUserListCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func (c *redisUserListCache) Get(ctx context.Context) ([]models.User, bool, error) {
	val, err := c.rdb.Get(ctx, UserListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	var users []models.User
	if err := json.Unmarshal(val, &users); err != nil {
		return nil, false, err
	}
	return users, true, nil
}

func (c *redisUserListCache) Generation(ctx context.Context) (int64, error) {
	return generation(ctx, c.rdb)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, cmd getter) (int64, error) {
	gen, err := cmd.Get(ctx, UserListGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set writes users only while the generation still equals gen. WATCH makes
// the check and the write atomic against a concurrent Invalidate.
func (c *redisUserListCache) Set(ctx context.Context, gen int64, users []models.User) error {
	b, err := json.Marshal(users)
	if err != nil {
		return err
	}
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return nil // stale read, leave the cache empty
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, UserListKey, b, c.ttl)
			return nil
		})
		return err
	}, UserListGenerationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *redisUserListCache) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, UserListGenerationKey)
		pipe.Del(ctx, UserListKey)
		return nil
	})
	return err
}

type nopCache struct{}

func (nopCache) Get(context.Context) ([]models.User, bool, error) { return nil, false, nil }
func (nopCache) Generation(context.Context) (int64, error) { return 0, nil }
func (nopCache) Set(context.Context, int64, []models.User) error { return nil }
func (nopCache) Invalidate(context.Context) error { return nil }

// NewRedisClient connects to addr and verifies the connection with a PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
