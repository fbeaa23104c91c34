package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/theleywin/Backend-Social-Feed/src/models"
)

const (
	feedKey = "feed:posts"
	genKey  = "feed:gen"
)

var (
	// ErrMiss means the feed is not cached.
	ErrMiss = errors.New("feed cache miss")
	// ErrStale means the feed was invalidated after its generation was read,
	// so the fill was dropped.
	ErrStale = errors.New("feed cache fill is stale")
)

// RedisFeedCache keeps the full post list as one JSON value. A generation
// counter guards fills: readers take the generation before reading the store
// and the fill only lands if no write invalidated the feed in between.
type RedisFeedCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect opens an instrumented Redis client and checks it answers.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func NewRedisFeedCache(client *redis.Client, ttl time.Duration) *RedisFeedCache {
	return &RedisFeedCache{client: client, ttl: ttl}
}

func (c *RedisFeedCache) GetFeed(ctx context.Context) ([]models.Post, error) {
	data, err := c.client.Get(ctx, feedKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Generation returns the current feed generation. Invalidate bumps it.
func (c *RedisFeedCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetFeed stores posts if the generation is still gen, and returns ErrStale
// otherwise.
func (c *RedisFeedCache) SetFeed(ctx context.Context, gen int64, posts []models.Post) error {
	data, err := json.Marshal(posts)
	if err != nil {
		return err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, feedKey, data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStale
	}
	return err
}

// Invalidate bumps the generation and drops the cached feed in one
// transaction. The next read repopulates it.
func (c *RedisFeedCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, feedKey)
		return nil
	})
	return err
}
