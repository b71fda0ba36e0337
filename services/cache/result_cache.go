package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache stores computed read results until they expire or are invalidated.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Remove(key string)
	RemovePrefix(prefix string) int
	Clear()
}

// ResultCache is a size-bounded cache whose entries expire a fixed ttl after being set.
type ResultCache struct {
	lru *expirable.LRU[string, interface{}]
}

// NewResultCache creates a cache holding at most size entries for ttl each.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	return &ResultCache{lru: expirable.NewLRU[string, interface{}](size, nil, ttl)}
}

// Get returns the live entry for key.
func (c *ResultCache) Get(key string) (interface{}, bool) {
	return c.lru.Get(key)
}

// Set stores value under key, restarting its expiry.
func (c *ResultCache) Set(key string, value interface{}) {
	c.lru.Add(key, value)
}

// Remove drops key.
func (c *ResultCache) Remove(key string) {
	c.lru.Remove(key)
}

// RemovePrefix drops every key starting with prefix and returns how many were dropped.
func (c *ResultCache) RemovePrefix(prefix string) int {
	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) && c.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (c *ResultCache) Clear() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}
