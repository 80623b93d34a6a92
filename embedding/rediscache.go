package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courserag/courserag/log"
	"github.com/courserag/courserag/vector"
)

// RedisCacheOptions configuration for the Redis connection
type RedisCacheOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "courserag:embedding:"
	TTL      time.Duration // Expiration for cached vectors, default 0 (no expiration)
}

// RedisCache caches embeddings keyed by content hash in front of another
// embedder. Redis failures degrade to direct embedding, never to a request
// failure.
type RedisCache struct {
	inner  vector.Embedder
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger log.Logger
}

var _ vector.Embedder = (*RedisCache)(nil)

// NewRedisCache wraps inner with a Redis-backed cache
func NewRedisCache(inner vector.Embedder, opts RedisCacheOptions) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "courserag:embedding:"
	}

	return &RedisCache{
		inner:  inner,
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
		logger: log.GetDefaultLogger(),
	}
}

func (c *RedisCache) vectorKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s%s", c.prefix, hex.EncodeToString(sum[:]))
}

// EmbedQuery returns the cached vector for text, embedding and caching on miss
func (c *RedisCache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.vectorKey(text)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if v, decErr := vector.DecodeVector(data); decErr == nil {
			return v, nil
		}
		c.logger.Warn("ignoring undecodable cached embedding at %s", key)
	} else if err != redis.Nil {
		c.logger.Warn("embedding cache read failed: %v", err)
	}

	v, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.client.Set(ctx, key, vector.EncodeVector(v), c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed: %v", err)
	}

	return v, nil
}

// EmbedDocuments resolves cached vectors with one MGET and embeds only the
// misses, writing those back through a pipeline
func (c *RedisCache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.vectorKey(text)
	}

	vecs := make([][]float32, len(texts))
	var missIdx []int

	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache read failed: %v", err)
		for i := range texts {
			missIdx = append(missIdx, i)
		}
	} else {
		for i, raw := range cached {
			data, ok := raw.(string)
			if !ok {
				missIdx = append(missIdx, i)
				continue
			}
			v, decErr := vector.DecodeVector([]byte(data))
			if decErr != nil {
				missIdx = append(missIdx, i)
				continue
			}
			vecs[i] = v
		}
	}

	if len(missIdx) == 0 {
		return vecs, nil
	}

	missTexts := make([]string, len(missIdx))
	for i, idx := range missIdx {
		missTexts[i] = texts[idx]
	}

	fresh, err := c.inner.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d embeddings", len(missTexts), len(fresh))
	}

	pipe := c.client.Pipeline()
	for i, idx := range missIdx {
		vecs[idx] = fresh[i]
		pipe.Set(ctx, keys[idx], vector.EncodeVector(fresh[i]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("embedding cache write failed: %v", err)
	}

	return vecs, nil
}

// Close releases the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
