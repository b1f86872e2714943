// Package memoize provides an explicit result cache for expensive lookups.
// The cache is owned by its caller: nothing in this package holds shared
// state, and every call site decides how long the cache lives.
package memoize

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

const computeFunctionRequiredMessageConstant = "compute function is required"

// keyPartSeparatorConstant keeps adjacent key parts from running together.
const keyPartSeparatorConstant = "\x1f"

// ErrComputeFunctionRequired reports that Do was called without a compute function.
var ErrComputeFunctionRequired = errors.New(computeFunctionRequiredMessageConstant)

// Cache stores computed values by key. The zero value is not usable; construct
// instances with NewCache.
type Cache struct {
	mutex   sync.Mutex
	entries map[string]any
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]any{}}
}

// Do returns the cached value for key when present. Otherwise it runs compute,
// stores the result on success, and returns it. Failed computations are never
// cached, so a later call with the same key retries. When concurrent callers
// race on an absent key the first stored value wins and is returned to all.
func (cache *Cache) Do(key string, compute func() (any, error)) (any, error) {
	if compute == nil {
		return nil, ErrComputeFunctionRequired
	}

	cache.mutex.Lock()
	if cachedValue, present := cache.entries[key]; present {
		cache.mutex.Unlock()
		return cachedValue, nil
	}
	cache.mutex.Unlock()

	computedValue, computeError := compute()
	if computeError != nil {
		return nil, computeError
	}

	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	if storedValue, present := cache.entries[key]; present {
		return storedValue, nil
	}
	cache.entries[key] = computedValue
	return computedValue, nil
}

// Lookup reports the cached value for key without computing anything.
func (cache *Cache) Lookup(key string) (any, bool) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cachedValue, present := cache.entries[key]
	return cachedValue, present
}

// Forget drops the cached value for key, if any.
func (cache *Cache) Forget(key string) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	delete(cache.entries, key)
}

// Len reports the number of cached entries.
func (cache *Cache) Len() int {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	return len(cache.entries)
}

// Key renders the provided parts into a stable cache key. Parts render through
// the fmt package, which prints map contents in sorted key order, so values
// built from comparable data produce identical keys across calls.
func Key(parts ...any) string {
	renderedParts := make([]string, len(parts))
	for partIndex, part := range parts {
		renderedParts[partIndex] = fmt.Sprintf("%v", part)
	}
	return strings.Join(renderedParts, keyPartSeparatorConstant)
}
