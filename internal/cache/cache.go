// Package cache shares the processed and encoded form of outgoing messages
// between connections, so a broadcast is processed and compressed once per
// distinct set of connection capabilities instead of once per connection.
package cache

import (
	"bytes"
	"sync"
	"time"

	"github.com/blukai/blockparty/internal/protocol"
	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Caps are the connection properties that change how a message is encoded.
// Two connections with equal Caps produce identical bytes for equal content.
type Caps struct {
	State     protocol.State
	Threshold int
	MultiPart bool
}

type Key struct {
	Kind protocol.Kind
	Sum  uint64
	Caps Caps
}

// KeyOf derives the key from the message content. ok is false for messages
// that do not describe their content. content has to be kept in the Entry,
// lookups compare it.
func KeyOf(m protocol.Message, caps Caps) (key Key, content []byte, ok bool) {
	c, ok := m.(protocol.Cacheable)
	if !ok {
		return Key{}, nil, false
	}
	content = c.AppendCacheKey(nil)
	return Key{Kind: m.Kind(), Sum: xxhash.Sum64(content), Caps: caps}, content, true
}

// Entry is immutable once stored. Bytes are framed and compressed but not
// encrypted.
type Entry struct {
	Content  []byte
	Messages []protocol.Message
	Bytes    []byte
}

type Cache struct {
	// NOTE(blukai): the lru locks itself; mu makes get-then-refresh and
	// check-then-store atomic.
	mu  sync.Mutex
	lru *expirable.LRU[Key, *Entry]
}

// New creates a cache holding up to size entries; an entry that is not read
// for idle is evicted.
func New(size int, idle time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[Key, *Entry](size, nil, idle),
	}
}

// Get returns the entry for key and restarts its idle timer. An entry whose
// content differs (a hash collision) is a miss.
func (c *Cache) Get(key Key, content []byte) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok || !bytes.Equal(e.Content, content) {
		return nil, false
	}
	c.lru.Add(key, e)
	return e, true
}

// Store saves e under key unless another connection got there first, in
// which case the earlier entry wins and is returned. On a collision the
// stored entry stays and e is returned uncached.
func (c *Cache) Store(key Key, e *Entry) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.lru.Peek(key); ok {
		if bytes.Equal(existing.Content, e.Content) {
			return existing
		}
		return e
	}
	c.lru.Add(key, e)
	return e
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
