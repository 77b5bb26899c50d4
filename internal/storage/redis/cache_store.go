// Package redis stores site snapshots in Redis, one hash per site with a field per tab.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

const fetchedAtField = "fetched_at"

// Options configures the Redis cache store.
type Options struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0).
	URL string
	// Prefix is prepended to every key.
	Prefix string
	// TTL expires whole snapshots; zero keeps them until replaced or invalidated.
	TTL            time.Duration
	PoolSize       int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultOptions returns the options used when the config leaves them unset.
func DefaultOptions() Options {
	return Options{
		Prefix:         "sitebuilder:",
		PoolSize:       10,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
	}
}

// CacheStore implements sitedata.CacheStore on a Redis client.
type CacheStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New parses the URL, connects and pings the server.
func New(ctx context.Context, opts Options) (*CacheStore, error) {
	if opts.URL == "" {
		return nil, errors.New("redis url is required")
	}
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.PoolSize > 0 {
		redisOpts.PoolSize = opts.PoolSize
	}
	if opts.ConnectTimeout > 0 {
		redisOpts.DialTimeout = opts.ConnectTimeout
	}
	if opts.ReadTimeout > 0 {
		redisOpts.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		redisOpts.WriteTimeout = opts.WriteTimeout
	}

	store := NewWithClient(redis.NewClient(redisOpts), opts.Prefix, opts.TTL)
	pingCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *CacheStore {
	return &CacheStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *CacheStore) key(siteID string) string {
	return s.prefix + "site:" + siteID
}

// Get reads the site hash. An empty hash is a cache miss.
func (s *CacheStore) Get(ctx context.Context, siteID string) (*sitedata.Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, s.key(siteID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sitedata.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: hgetall: %w", sitedata.ErrCacheUnavailable, err)
	}
	return decodeHash(fields)
}

// Put replaces the site hash atomically.
func (s *CacheStore) Put(ctx context.Context, siteID string, snap *sitedata.Snapshot) error {
	fields, err := encodeHash(snap)
	if err != nil {
		return err
	}
	key := s.key(siteID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: replace hash: %w", sitedata.ErrCacheUnavailable, err)
	}
	return nil
}

// Invalidate deletes the site hash.
func (s *CacheStore) Invalidate(ctx context.Context, siteID string) error {
	if err := s.client.Del(ctx, s.key(siteID)).Err(); err != nil {
		return fmt.Errorf("%w: del: %w", sitedata.ErrCacheUnavailable, err)
	}
	return nil
}

// Ping checks connectivity; used by readiness checks.
func (s *CacheStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *CacheStore) Close() error {
	return s.client.Close()
}

func encodeHash(snap *sitedata.Snapshot) (map[string]any, error) {
	blobs, err := sitedata.EncodeTabs(snap)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any, len(blobs)+1)
	for tab, data := range blobs {
		fields[string(tab)] = data
	}
	fields[fetchedAtField] = snap.FetchedAt.UTC().Format(time.RFC3339Nano)
	return fields, nil
}

func decodeHash(fields map[string]string) (*sitedata.Snapshot, error) {
	if len(fields) == 0 {
		return nil, sitedata.ErrCacheMiss
	}
	var fetchedAt time.Time
	if raw, ok := fields[fetchedAtField]; ok {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", sitedata.ErrCacheUnavailable, fetchedAtField, err)
		}
		fetchedAt = at
	}
	blobs := make(map[sitedata.TabName][]byte, len(fields))
	for name, value := range fields {
		if name == fetchedAtField {
			continue
		}
		blobs[sitedata.TabName(name)] = []byte(value)
	}
	return sitedata.DecodeTabs(blobs, fetchedAt)
}
