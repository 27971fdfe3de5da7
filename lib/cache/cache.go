// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache is the tiered result cache for metadata resolutions.
//
// The memory tier is a capacity-bounded LRU that every cache carries;
// the remote tier is an optional redis client shared across processes,
// holding CBOR-encoded entries. Retention follows the URI scheme:
// data-URI results are a pure function of the key and never expire
// (eviction is capacity pressure only, oldest-unused first);
// content-addressed IPFS/Arweave results get a long TTL; mutable HTTPS
// results get a short one. Failed resolutions are cached like
// successful ones, so a persistently broken URI is not re-fetched
// inside its TTL window.
//
// Concurrency: Get and Put are safe to call from any number of
// goroutines. Puts for the same key may race; the last write wins, and
// entries for the same key are byte-equivalent anyway (deterministic
// encoding over deterministic resolution).
package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"

	"github.com/trustless-agents/agentmeta/lib/codec"
	"github.com/trustless-agents/agentmeta/lib/diag"
	"github.com/trustless-agents/agentmeta/lib/metauri"
)

const (
	// DefaultMemoryEntries bounds the memory tier.
	DefaultMemoryEntries = 1024

	// DefaultContentTTL is the retention for content-addressed
	// IPFS/Arweave results. The content cannot change under the
	// address; the TTL only bounds staleness of gateway availability
	// observations baked into failure entries.
	DefaultContentTTL = time.Hour

	// DefaultHTTPSTTL is the retention for mutable HTTPS results.
	DefaultHTTPSTTL = 5 * time.Minute

	// DefaultKeyPrefix namespaces remote-tier keys.
	DefaultKeyPrefix = "agentmeta:"
)

// Result is the cacheable portion of a resolution. The document is
// stored as the exact raw bytes the parser consumed — re-parsing them
// on a hit reproduces the identical document, and semantic hash checks
// against onchain records keep operating on the true content bytes.
type Result struct {
	// Raw holds the post-decompression, post-base64 payload bytes.
	// Empty when the resolution failed before producing a document.
	Raw []byte `cbor:"raw,omitempty"`

	// HasDocument distinguishes a failed resolution from a cached
	// empty payload.
	HasDocument bool `cbor:"hasDocument"`

	// Diagnostics are the context-free diagnostics, in order.
	Diagnostics []diag.Diagnostic `cbor:"diagnostics"`

	// FetchedFrom identifies the scheme and origin that produced the
	// payload.
	FetchedFrom string `cbor:"fetchedFrom"`

	// UnencodedFallback mirrors the fetcher's ambiguous-base64
	// resolution so replayed hits report it identically.
	UnencodedFallback bool `cbor:"unencodedFallback,omitempty"`
}

// Entry is one cached resolution.
type Entry struct {
	// Key is the canonicalized URI string.
	Key string `cbor:"key"`

	// Result is the cached resolution payload.
	Result Result `cbor:"result"`

	// InsertedAt is the write time.
	InsertedAt time.Time `cbor:"insertedAt"`

	// ExpiresAt is absent for data-URI entries, which never expire.
	ExpiresAt *time.Time `cbor:"expiresAt,omitempty"`
}

// expired reports whether the entry is past its expiry at now.
func (e Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Config configures a Cache. Zero values take the defaults.
type Config struct {
	// MemoryEntries is the memory-tier capacity.
	MemoryEntries int

	// ContentTTL is the IPFS/Arweave retention.
	ContentTTL time.Duration

	// HTTPSTTL is the HTTPS (and malformed-URI) retention.
	HTTPSTTL time.Duration

	// Redis enables the remote tier when non-nil.
	Redis *redis.Client

	// KeyPrefix namespaces remote-tier keys.
	KeyPrefix string

	// Logger receives remote-tier fault logging. Nil disables it.
	Logger *slog.Logger
}

// Cache is the tiered result cache. Safe for concurrent use.
type Cache struct {
	mem        *lru.Cache[string, Entry]
	rdb        *redis.Client
	contentTTL time.Duration
	httpsTTL   time.Duration
	keyPrefix  string
	logger     *slog.Logger
}

// New builds a Cache, filling unset Config fields with defaults.
func New(cfg Config) (*Cache, error) {
	if cfg.MemoryEntries <= 0 {
		cfg.MemoryEntries = DefaultMemoryEntries
	}
	if cfg.ContentTTL <= 0 {
		cfg.ContentTTL = DefaultContentTTL
	}
	if cfg.HTTPSTTL <= 0 {
		cfg.HTTPSTTL = DefaultHTTPSTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	mem, err := lru.New[string, Entry](cfg.MemoryEntries)
	if err != nil {
		return nil, fmt.Errorf("creating memory tier: %w", err)
	}

	return &Cache{
		mem:        mem,
		rdb:        cfg.Redis,
		contentTTL: cfg.ContentTTL,
		httpsTTL:   cfg.HTTPSTTL,
		keyPrefix:  cfg.KeyPrefix,
		logger:     cfg.Logger,
	}, nil
}

// Get looks up key in the memory tier, then the remote tier. Remote
// hits are promoted into memory. Expired entries are treated as
// misses and dropped from the memory tier.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool) {
	now := time.Now()

	if entry, ok := c.mem.Get(key); ok {
		if entry.expired(now) {
			c.mem.Remove(key)
		} else {
			return entry, true
		}
	}

	if c.rdb == nil {
		return Entry{}, false
	}

	data, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("remote cache read failed", "key", key, "error", err)
		}
		return Entry{}, false
	}

	var entry Entry
	if err := codec.Unmarshal(data, &entry); err != nil {
		if c.logger != nil {
			c.logger.Warn("remote cache entry undecodable", "key", key, "error", err)
		}
		return Entry{}, false
	}
	if entry.expired(now) {
		return Entry{}, false
	}

	c.mem.Add(key, entry)
	return entry, true
}

// Put writes the entry through both tiers. The scheme selects the
// retention policy. Remote-tier failures are logged and otherwise
// ignored: the memory tier already holds the entry.
func (c *Cache) Put(ctx context.Context, key string, scheme metauri.Scheme, result Result) {
	now := time.Now()
	entry := Entry{Key: key, Result: result, InsertedAt: now}

	ttl := c.ttlFor(scheme)
	if ttl > 0 {
		expires := now.Add(ttl)
		entry.ExpiresAt = &expires
	}

	c.mem.Add(key, entry)

	if c.rdb == nil {
		return
	}
	data, err := codec.Marshal(entry)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("encoding cache entry failed", "key", key, "error", err)
		}
		return
	}
	if err := c.rdb.Set(ctx, c.redisKey(key), data, ttl).Err(); err != nil {
		if c.logger != nil {
			c.logger.Warn("remote cache write failed", "key", key, "error", err)
		}
	}
}

// ttlFor maps a scheme to its retention. Zero means no expiry.
func (c *Cache) ttlFor(scheme metauri.Scheme) time.Duration {
	switch scheme {
	case metauri.SchemeData:
		return 0
	case metauri.SchemeIPFS, metauri.SchemeArweave:
		return c.contentTTL
	default:
		return c.httpsTTL
	}
}

// redisKey derives a fixed-length remote key from the canonical URI.
// Data URIs make raw keys arbitrarily large; a blake3 digest keeps the
// remote keyspace uniform.
func (c *Cache) redisKey(key string) string {
	sum := blake3.Sum256([]byte(key))
	return c.keyPrefix + "resolve:" + hex.EncodeToString(sum[:])
}
