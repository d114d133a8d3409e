// Package doccache holds decoded document text for a session between an
// upload and the follow-up question about it. One slot per session, a
// hard TTL, and take-once read semantics: a stale or already-consumed
// document must fail loudly instead of silently answering about the
// wrong upload.
package doccache

import (
	"strings"
	"sync"
	"time"
)

const (
	// TTL is how long an uploaded document stays usable.
	TTL = 30 * time.Minute
	// MaxContentLength bounds the cached text; longer uploads are cut and
	// marked.
	MaxContentLength = 15000

	truncationMarker = "\n...[content truncated]"
)

// Document is the cached, already-decoded text of one upload.
type Document struct {
	FileName  string
	Content   string
	CreatedAt time.Time
}

type entry struct {
	fileName  string
	content   string
	createdAt time.Time
}

// Cache is a mutex-guarded per-session store. Safe for concurrent use;
// Put and TakeIfFresh are each atomic with respect to one session key.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// Option adjusts cache construction; used by tests to inject a clock.
type Option func(*Cache)

// WithClock replaces the cache's time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTTL overrides the default expiry window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// New constructs an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     TTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores the document for the session, replacing any previous upload.
// Content beyond MaxContentLength is truncated with a marker.
func (c *Cache) Put(sessionKey, fileName, content string) {
	if runes := []rune(content); len(runes) > MaxContentLength {
		content = string(runes[:MaxContentLength]) + truncationMarker
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionKey] = entry{
		fileName:  strings.TrimSpace(fileName),
		content:   content,
		createdAt: c.now(),
	}
}

// TakeIfFresh atomically removes and returns the session's document when
// it is still within the TTL. Expired entries are removed and reported
// absent, the same as a missing entry, so two concurrent readers can
// never both consume the same upload.
func (c *Cache) TakeIfFresh(sessionKey string) (Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sessionKey]
	if !ok {
		return Document{}, false
	}
	delete(c.entries, sessionKey)
	if c.now().Sub(e.createdAt) > c.ttl {
		return Document{}, false
	}
	return Document{FileName: e.fileName, Content: e.content, CreatedAt: e.createdAt}, true
}
