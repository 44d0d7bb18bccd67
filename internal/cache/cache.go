// Package cache implements the two-tier persistent key/value cache: a
// bounded in-memory LRU (L1) in front of a durable sqlite-backed store
// (L2). Values are opaque JSON bytes; the cache never deserializes them.
package cache

import (
	"container/list"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vrp-sentinel/internal/database"
)

// Cache is the two-tier KV store. Keys passed in by callers are
// namespaced with SchemaVersion before touching either tier so that a
// breaking value-format change can be rolled out by bumping the prefix.
type Cache struct {
	db            *database.DB
	log           zerolog.Logger
	schemaVersion string

	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// New builds a Cache backed by db, with an L1 of the given capacity.
func New(db *database.DB, capacity int, schemaVersion string, log zerolog.Logger) *Cache {
	return &Cache{
		db:            db,
		log:           log.With().Str("component", "cache").Logger(),
		schemaVersion: schemaVersion,
		capacity:      capacity,
		items:         make(map[string]*list.Element),
		order:         list.New(),
	}
}

func (c *Cache) namespaced(key string) string {
	return c.schemaVersion + ":" + key
}

// Get checks L1 first, then L2 on miss, promoting an L2 hit back into
// L1. An expired or corrupted L2 row is deleted and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	nsKey := c.namespaced(key)
	now := time.Now()

	if v, ok := c.getL1(nsKey, now); ok {
		c.hits.Add(1)
		return v, true
	}

	v, ok, err := c.getL2(ctx, nsKey, now)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("L2 read failed, treating as miss")
		c.misses.Add(1)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.putL1(nsKey, v, now.Add(defaultPromoteTTL))
	c.hits.Add(1)
	return v, true
}

const defaultPromoteTTL = 10 * time.Minute

func (c *Cache) getL1(nsKey string, now time.Time) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[nsKey]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if now.After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.items, nsKey)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

func (c *Cache) putL1(nsKey string, value []byte, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[nsKey]; ok {
		el.Value.(*entry).value = value
		el.Value.(*entry).expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	e := &entry{key: nsKey, value: value, expiresAt: expiresAt}
	el := c.order.PushFront(e)
	c.items[nsKey] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
			c.evictions.Add(1)
		}
	}
}

func (c *Cache) getL2(ctx context.Context, nsKey string, now time.Time) ([]byte, bool, error) {
	var value []byte
	var expiresAtStr string

	row := c.db.QueryRowContext(ctx, "SELECT value, expires_at FROM cache WHERE key = ?", nsKey)
	err := row.Scan(&value, &expiresAtStr)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scan cache row: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		// Corrupted timestamp: treat as miss, delete offending row.
		_, _ = c.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", nsKey)
		return nil, false, nil
	}

	if now.After(expiresAt) {
		_, _ = c.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", nsKey)
		return nil, false, nil
	}

	if !json.Valid(value) {
		_, _ = c.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", nsKey)
		return nil, false, nil
	}

	return value, true, nil
}

// Set writes both tiers. A partial L2 failure still leaves L1 populated
// and is logged as a degradation, not surfaced to the caller.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	nsKey := c.namespaced(key)
	now := time.Now()
	expiresAt := now.Add(ttl)

	c.putL1(nsKey, value, expiresAt)

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache (key, value, inserted_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, inserted_at = excluded.inserted_at, expires_at = excluded.expires_at`,
		nsKey, value, now.UTC().Format(time.RFC3339), expiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("L2 write failed, L1 still populated")
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) {
	nsKey := c.namespaced(key)

	c.mu.Lock()
	if el, ok := c.items[nsKey]; ok {
		c.order.Remove(el)
		delete(c.items, nsKey)
	}
	c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", nsKey)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("L2 delete failed")
	}
}

// CleanupExpired bulk-deletes L2 rows past their expiry. Invoked by the
// weekly-cleanup job.
func (c *Cache) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM cache WHERE expires_at <= ?", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("cleanup expired cache rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats reports hit/miss/eviction counters since process start, logged
// as zerolog debug fields rather than exposed through a metrics system.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// LogStats emits the current counters at debug level.
func (c *Cache) LogStats() {
	s := c.Stats()
	c.log.Debug().
		Int64("hits", s.Hits).
		Int64("misses", s.Misses).
		Int64("evictions", s.Evictions).
		Msg("cache stats")
}
