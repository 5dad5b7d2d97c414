package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// PostCacheTTL also bounds how long a fetch that raced an update can keep
// serving the pre-update row.
const PostCacheTTL = time.Minute

// LatestPostsKey caches the public listing.
const LatestPostsKey = "posts:latest"

type PostCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPostCache(client *redis.Client) *PostCache {
	return &PostCache{client: client, ttl: PostCacheTTL}
}

// Get returns the cached value, or nil on a miss.
func (c *PostCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores data as JSON with the cache TTL.
func (c *PostCache) Set(ctx context.Context, key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, jsonData, c.ttl).Err()
}

func (c *PostCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Build cache key for single post
func PostKey(postID int64) string {
	return fmt.Sprintf("post:%d", postID)
}
