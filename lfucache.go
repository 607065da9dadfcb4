/*
Copyright 2025 The lfucache authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lfucache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a thread-safe, in-process key value store holding at most a
// fixed number of entries. Once full, storing a new key evicts the least
// frequently used entry to make room.
//
// Every Add or Get of a key raises its frequency by one; a freshly stored
// key starts at frequency zero. Among entries tied at the lowest
// frequency, the one that reached the frequency first is evicted. Note
// that a newly stored key is itself the eviction candidate when every
// other entry has a higher frequency.
type Cache[V any] struct {
	mu       sync.Mutex
	store    *entityStore[V]
	index    *freqIndex[V]
	capacity int

	name    string
	metrics *cacheMetrics
	sinks   []Sink
	loads   singleflight.Group
}

// LoaderFunc produces the value for a key that is not in the cache.
type LoaderFunc[V any] func(ctx context.Context) (V, error)

// New creates a new Cache with the given capacity and options. It returns
// an error wrapping ErrInvalidCapacity when capacity is below one.
func New[V any](capacity int, opts ...Options) (*Cache[V], error) {
	if capacity < 1 {
		return nil, &CacheError{
			Reason: ErrInvalidCapacity,
			Err:    fmt.Errorf("capacity %d is below the minimum of 1", capacity),
		}
	}
	opt, err := makeOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to apply options: %w", err)
	}

	c := &Cache[V]{
		store:    newEntityStore[V](),
		index:    newFreqIndex[V](),
		capacity: capacity,
		name:     opt.name,
		sinks:    opt.sinks,
	}
	if opt.registerer != nil {
		c.metrics = newCacheMetrics(opt.registerer, opt.metricsPrefix)
	}

	c.eventf(EventSeverityInfo, ReasonCreated, "", nil,
		"created cache with capacity %d", capacity)
	return c, nil
}

// Add stores value under key. When the key is already present its value is
// replaced and its frequency raised by one; replacement never evicts.
// When the key is new it is stored at frequency zero, and if that pushes
// the cache over its capacity the least frequently used entry is evicted.
// The evicted value is returned together with true; otherwise Add returns
// the zero value and false.
func (c *Cache[V]) Add(key string, value V) (V, bool) {
	var zero V
	c.mu.Lock()
	if e, ok := c.store.get(key); ok {
		e.value = value
		c.bump(e)
		freq := e.freq
		c.mu.Unlock()
		recordRequest(c.metrics, StatusSuccess)
		c.eventf(EventSeverityInfo, ReasonOverwritten, key,
			map[string]string{"frequency": strconv.Itoa(freq)},
			"replaced value under key '%s'", key)
		return zero, false
	}

	e := &entry[V]{key: key, value: value}
	// Presence was checked above, under the same lock; a duplicate here
	// would be a bug in the store, not a recoverable state.
	_ = c.store.insert(e)
	c.index.add(e)

	var victim *entry[V]
	if c.store.len() > c.capacity {
		victim = c.evictOne()
	}
	c.mu.Unlock()

	recordRequest(c.metrics, StatusSuccess)
	recordItemIncrement(c.metrics)
	c.eventf(EventSeverityInfo, ReasonInserted, key, nil,
		"stored new key '%s'", key)
	if victim == nil {
		return zero, false
	}
	recordEviction(c.metrics)
	recordItemDecrement(c.metrics)
	c.eventf(EventSeverityInfo, ReasonEvicted, victim.key,
		map[string]string{"frequency": strconv.Itoa(victim.freq)},
		"capacity %d exceeded, evicted key '%s'", c.capacity, victim.key)
	return victim.value, true
}

// Get returns the value stored under key and raises the key's frequency by
// one. The second return value reports whether the key was present; its
// absence is not an error.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	e, ok := c.store.get(key)
	if !ok {
		c.mu.Unlock()
		recordRequest(c.metrics, StatusSuccess)
		recordEvent(c.metrics, CacheEventTypeMiss)
		c.eventf(EventSeverityInfo, ReasonMiss, key, nil,
			"no value under key '%s'", key)
		return zero, false
	}
	c.bump(e)
	value := e.value
	c.mu.Unlock()
	recordRequest(c.metrics, StatusSuccess)
	recordEvent(c.metrics, CacheEventTypeHit)
	return value, true
}

// GetOrLoad returns the value stored under key, calling load for it when
// the cache does not hold one. Concurrent calls for the same key share a
// single load; the loser goroutines block until the winner's load returns
// and then receive its result. A successfully loaded value is stored
// through Add before GetOrLoad returns.
//
// The boolean reports whether the cache already held the value. A load
// error is returned wrapping ErrLoadFailed and nothing is stored; a nil
// load fails with ErrNoLoader.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load LoaderFunc[V]) (V, bool, error) {
	var zero V
	if load == nil {
		recordRequest(c.metrics, StatusFailure)
		return zero, false, &CacheError{
			Reason: ErrNoLoader,
			Err:    fmt.Errorf("no loader given for key '%s'", key),
		}
	}

	if value, ok := c.Get(key); ok {
		return value, true, nil
	}

	type loadResult struct {
		value V
		hit   bool
	}
	result, err, _ := c.loads.Do(key, func() (interface{}, error) {
		// A concurrent flight may have stored the key between the miss
		// above and this call.
		if value, ok := c.Get(key); ok {
			return loadResult{value: value, hit: true}, nil
		}
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Add(key, value)
		return loadResult{value: value}, nil
	})
	if err != nil {
		recordRequest(c.metrics, StatusFailure)
		c.eventf(EventSeverityError, ReasonLoadFailed, key, nil,
			"failed to load value for key '%s': %s", key, err)
		return zero, false, &CacheError{Reason: ErrLoadFailed, Err: err}
	}
	r := result.(loadResult)
	return r.value, r.hit, nil
}

// Remove deletes the entry stored under key and returns its value. The
// second return value reports whether the key was present; its absence is
// not an error.
func (c *Cache[V]) Remove(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	e, ok := c.store.delete(key)
	if !ok {
		c.mu.Unlock()
		recordRequest(c.metrics, StatusSuccess)
		c.eventf(EventSeverityInfo, ReasonMiss, key, nil,
			"no value under key '%s'", key)
		return zero, false
	}
	c.index.remove(e)
	c.mu.Unlock()
	recordRequest(c.metrics, StatusSuccess)
	recordItemDecrement(c.metrics)
	c.eventf(EventSeverityInfo, ReasonRemoved, key,
		map[string]string{"frequency": strconv.Itoa(e.freq)},
		"removed key '%s'", key)
	return e.value, true
}

// Len returns the number of entries in the cache.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.len()
}

// Capacity returns the capacity the cache was created with.
func (c *Cache[V]) Capacity() int {
	return c.capacity
}

// ListKeys returns the keys of the cache, in no particular order.
func (c *Cache[V]) ListKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.store.len())
	for k := range c.store.entries {
		keys = append(keys, k)
	}
	return keys
}

// bump moves e one frequency up, relocating it to the back of the next
// bucket. The caller must hold the lock.
func (c *Cache[V]) bump(e *entry[V]) {
	c.index.remove(e)
	e.freq++
	c.index.add(e)
}

// evictOne drops the longest-waiting minimum frequency entry from both the
// store and the index, returning it, or nil when the index is empty. The
// caller must hold the lock; eviction takes place inside the caller's
// critical section.
func (c *Cache[V]) evictOne() *entry[V] {
	victim := c.index.minEntry()
	if victim == nil {
		return nil
	}
	c.index.remove(victim)
	c.store.delete(victim.key)
	return victim
}

// eventf records an event and publishes it to all configured sinks. It
// must be called after the lock has been released, so that a slow sink
// never extends a critical section.
func (c *Cache[V]) eventf(severity, reason, key string, metadata map[string]string, format string, args ...interface{}) {
	if len(c.sinks) == 0 {
		return
	}
	if c.name != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["cache"] = c.name
	}
	e := Event{
		Timestamp: time.Now(),
		Severity:  severity,
		Reason:    reason,
		Key:       key,
		Message:   fmt.Sprintf(format, args...),
		Metadata:  metadata,
	}
	for _, s := range c.sinks {
		s.Publish(e)
	}
}
