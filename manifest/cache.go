package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"duck-access/secret"
)

// DefaultSafetyMargin is the lead time before true expiry at which an entry
// is treated as stale, so a manifest is refreshed proactively instead of
// racing past its expiry mid-query.
const DefaultSafetyMargin = 60 * time.Second

// Fetcher retrieves a raw manifest body for one table. Implemented by
// gateway.Client; stubbed in tests.
type Fetcher interface {
	FetchManifest(ctx context.Context, auth *secret.AuthContext, schema, table string) ([]byte, error)
}

// entry pairs a stored manifest with the identifiers needed for
// schema/table-scoped invalidation.
type entry struct {
	schema   string
	table    string
	manifest *TableManifest
}

// Cache is a TTL cache of table manifests keyed by endpoint, credential
// identity, schema and table. It is safe for concurrent use; fetches for
// the same key are collapsed into a single in-flight call, and the network
// call never runs under the map lock.
type Cache struct {
	fetcher Fetcher
	margin  time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithSafetyMargin overrides the default freshness margin.
func WithSafetyMargin(d time.Duration) Option {
	return func(c *Cache) { c.margin = d }
}

// WithClock injects the time source. Tests use this to step through expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger for cache events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// NewCache creates a Cache backed by the given fetcher.
func NewCache(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetcher,
		margin:  DefaultSafetyMargin,
		now:     time.Now,
		logger:  slog.Default(),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the manifest for (schema, table) under the given
// credentials, fetching and caching it when absent or stale. A stale entry
// is evicted before the refetch, so a failed refetch never serves a
// manifest that is expired or about to expire.
func (c *Cache) GetOrFetch(ctx context.Context, auth *secret.AuthContext, schema, table string) (*TableManifest, error) {
	key := cacheKey(auth, schema, table)

	if m, ok := c.lookupFresh(key); ok {
		return m, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// A flight that completed between our miss and joining the group
		// may already have stored a fresh entry.
		if m, ok := c.lookupFresh(key); ok {
			return m, nil
		}

		body, err := c.fetcher.FetchManifest(ctx, auth, schema, table)
		if err != nil {
			return nil, err
		}
		m, err := Parse(body, c.now())
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = entry{schema: schema, table: table, manifest: m}
		c.mu.Unlock()

		c.logger.Debug("manifest cached",
			"schema", m.Schema, "table", m.Table,
			"files", len(m.Files), "expires_at", m.ExpiresAt)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("manifest fetch shared", "schema", schema, "table", table)
	}
	return v.(*TableManifest), nil
}

// lookupFresh returns the cached manifest when it is still fresh, evicting
// it otherwise. Freshness requires now + margin < expires_at.
func (c *Cache) lookupFresh(key string) (*TableManifest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Add(c.margin).Before(e.manifest.ExpiresAt) {
		return e.manifest, true
	}
	delete(c.entries, key)
	return nil, false
}

// Invalidate removes every cached entry for (schema, table) regardless of
// freshness, across all endpoints and credentials. No-op when absent.
func (c *Cache) Invalidate(schema, table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.schema == schema && e.table == table {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of cached entries. Diagnostics only.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every cached entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// cacheKey derives the map key. The credential is folded in as a one-way
// digest so two tenants querying the same table never share an entry and
// the raw key material is not retained as a map key.
func cacheKey(auth *secret.AuthContext, schema, table string) string {
	return auth.Endpoint() + "\x1f" + credentialDigest(auth.APIKey()) + "\x1f" + schema + "\x1f" + table
}

func credentialDigest(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}
