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
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
)

// checkConsistency asserts that the store and the frequency index agree
// with each other and with the capacity bound.
func checkConsistency[V any](g *WithT, c *Cache[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g.Expect(c.store.len()).To(BeNumerically("<=", c.capacity))
	g.Expect(c.index.len()).To(Equal(c.store.len()))
	g.Expect(slices.IsSorted(c.index.freqs)).To(BeTrue())
	g.Expect(c.index.freqs).To(HaveLen(len(c.index.buckets)))

	seen := 0
	for freq, bucket := range c.index.buckets {
		g.Expect(bucket.Len()).To(BeNumerically(">", 0))
		g.Expect(slices.Contains(c.index.freqs, freq)).To(BeTrue())
		for el := bucket.Front(); el != nil; el = el.Next() {
			e := el.Value.(*entry[V])
			g.Expect(e.freq).To(Equal(freq))
			stored, ok := c.store.get(e.key)
			g.Expect(ok).To(BeTrue())
			g.Expect(stored).To(BeIdenticalTo(e))
			seen++
		}
	}
	g.Expect(seen).To(Equal(c.store.len()))
}

func TestNew(t *testing.T) {
	t.Run("rejects capacity below one", func(t *testing.T) {
		g := NewWithT(t)

		for _, capacity := range []int{0, -1, -100} {
			_, err := New[string](capacity)
			g.Expect(err).To(HaveOccurred())
			g.Expect(errors.Is(err, ErrInvalidCapacity)).To(BeTrue())
		}
	})

	t.Run("accepts capacity of one", func(t *testing.T) {
		g := NewWithT(t)

		cache, err := New[string](1)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(cache.Capacity()).To(Equal(1))
		g.Expect(cache.Len()).To(BeZero())
	})
}

func TestCache(t *testing.T) {
	t.Run("add and get keys", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](3,
			WithMetricsRegisterer(prometheus.NewPedanticRegistry()))
		g.Expect(err).ToNot(HaveOccurred())

		// Get an item that was never stored
		key1 := "key1"
		value1 := "val1"
		got, ok := cache.Get(key1)
		g.Expect(ok).To(BeFalse())
		g.Expect(got).To(BeEmpty())

		// Add an item to the cache
		_, evicted := cache.Add(key1, value1)
		g.Expect(evicted).To(BeFalse())

		// Get the item from the cache
		got, ok = cache.Get(key1)
		g.Expect(ok).To(BeTrue())
		g.Expect(got).To(Equal(value1))

		// Add another item to the cache
		key2 := "key2"
		value2 := "val2"
		_, evicted = cache.Add(key2, value2)
		g.Expect(evicted).To(BeFalse())
		g.Expect(cache.ListKeys()).To(ConsistOf(key1, key2))
		g.Expect(cache.Len()).To(Equal(2))

		checkConsistency(g, cache)
	})

	t.Run("overwriting a key replaces the value and raises the frequency", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](2)
		g.Expect(err).ToNot(HaveOccurred())

		cache.Add("key1", "val1")
		cache.Add("key2", "val2")

		// The cache is full; overwriting must not evict.
		_, evicted := cache.Add("key1", "val2")
		g.Expect(evicted).To(BeFalse())
		g.Expect(cache.Len()).To(Equal(2))

		got, ok := cache.Get("key1")
		g.Expect(ok).To(BeTrue())
		g.Expect(got).To(Equal("val2"))

		// Two bumps: one from the overwrite, one from the read.
		g.Expect(cache.Snapshot()).To(Equal([]FrequencyGroup{
			{Frequency: 0, Keys: []string{"key2"}},
			{Frequency: 2, Keys: []string{"key1"}},
		}))
		checkConsistency(g, cache)
	})

	t.Run("cache of integer values", func(t *testing.T) {
		g := NewWithT(t)

		cache, err := New[int](3)
		g.Expect(err).ToNot(HaveOccurred())

		cache.Add("key1", 4)
		got, ok := cache.Get("key1")
		g.Expect(ok).To(BeTrue())
		g.Expect(got).To(Equal(4))
	})
}

func TestCache_FrequencyOrdering(t *testing.T) {
	g := NewWithT(t)
	cache, err := New[string](3)
	g.Expect(err).ToNot(HaveOccurred())

	// Fill the cache; all entries start at frequency zero, in insertion
	// order within the bucket.
	cache.Add("user:1", "a")
	cache.Add("user:2", "b")
	cache.Add("user:3", "c")
	g.Expect(cache.Snapshot()).To(Equal([]FrequencyGroup{
		{Frequency: 0, Keys: []string{"user:1", "user:2", "user:3"}},
	}))

	// Reading user:1 moves it to frequency one.
	got, ok := cache.Get("user:1")
	g.Expect(ok).To(BeTrue())
	g.Expect(got).To(Equal("a"))
	g.Expect(cache.Snapshot()).To(Equal([]FrequencyGroup{
		{Frequency: 0, Keys: []string{"user:2", "user:3"}},
		{Frequency: 1, Keys: []string{"user:1"}},
	}))

	// A fourth key overflows the cache; the longest waiting entry at the
	// minimum frequency, user:2, is evicted.
	evicted, wasEvicted := cache.Add("user:4", "d")
	g.Expect(wasEvicted).To(BeTrue())
	g.Expect(evicted).To(Equal("b"))
	g.Expect(cache.Snapshot()).To(Equal([]FrequencyGroup{
		{Frequency: 0, Keys: []string{"user:3", "user:4"}},
		{Frequency: 1, Keys: []string{"user:1"}},
	}))

	// Removing user:1 hands back its value and clears its frequency.
	value, ok := cache.Remove("user:1")
	g.Expect(ok).To(BeTrue())
	g.Expect(value).To(Equal("a"))
	g.Expect(cache.Snapshot()).To(Equal([]FrequencyGroup{
		{Frequency: 0, Keys: []string{"user:3", "user:4"}},
	}))

	_, ok = cache.Get("user:1")
	g.Expect(ok).To(BeFalse())

	// A reinserted key starts over at frequency zero.
	cache.Add("user:1", "z")
	g.Expect(cache.Snapshot()).To(Equal([]FrequencyGroup{
		{Frequency: 0, Keys: []string{"user:3", "user:4", "user:1"}},
	}))

	checkConsistency(g, cache)
}

func TestCache_Eviction(t *testing.T) {
	t.Run("evicts the lowest frequency first", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](3)
		g.Expect(err).ToNot(HaveOccurred())

		cache.Add("cold", "1")
		cache.Add("warm", "2")
		cache.Add("hot", "3")
		cache.Get("warm")
		cache.Get("hot")
		cache.Get("hot")

		evicted, ok := cache.Add("new", "4")
		g.Expect(ok).To(BeTrue())
		g.Expect(evicted).To(Equal("1"))
		g.Expect(cache.ListKeys()).To(ConsistOf("warm", "hot", "new"))
		checkConsistency(g, cache)
	})

	t.Run("ties break by arrival at the frequency", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](3)
		g.Expect(err).ToNot(HaveOccurred())

		cache.Add("first", "1")
		cache.Add("second", "2")
		cache.Add("third", "3")
		cache.Get("third")

		// first and second are tied at zero; first has been there longer.
		evicted, ok := cache.Add("fourth", "4")
		g.Expect(ok).To(BeTrue())
		g.Expect(evicted).To(Equal("1"))

		evicted, ok = cache.Add("fifth", "5")
		g.Expect(ok).To(BeTrue())
		g.Expect(evicted).To(Equal("2"))
		checkConsistency(g, cache)
	})

	t.Run("a newcomer below every frequency evicts itself", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](2)
		g.Expect(err).ToNot(HaveOccurred())

		cache.Add("key1", "val1")
		cache.Add("key2", "val2")
		cache.Get("key1")
		cache.Get("key2")

		// Every stored entry sits above frequency zero, so the incoming
		// key is itself the minimum and is dropped straight away.
		evicted, ok := cache.Add("key3", "val3")
		g.Expect(ok).To(BeTrue())
		g.Expect(evicted).To(Equal("val3"))
		g.Expect(cache.ListKeys()).To(ConsistOf("key1", "key2"))
		checkConsistency(g, cache)
	})

	t.Run("never exceeds capacity", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[int](5)
		g.Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 100; i++ {
			cache.Add(fmt.Sprintf("test-%d", i), i)
			g.Expect(cache.Len()).To(BeNumerically("<=", 5))
			if i%3 == 0 {
				cache.Get(fmt.Sprintf("test-%d", i))
			}
		}
		g.Expect(cache.Len()).To(Equal(5))
		checkConsistency(g, cache)
	})
}

func TestCache_Remove(t *testing.T) {
	g := NewWithT(t)
	cache, err := New[string](3)
	g.Expect(err).ToNot(HaveOccurred())

	cache.Add("key1", "val1")
	cache.Add("key2", "val2")
	cache.Get("key1")

	value, ok := cache.Remove("key1")
	g.Expect(ok).To(BeTrue())
	g.Expect(value).To(Equal("val1"))
	g.Expect(cache.Len()).To(Equal(1))
	g.Expect(cache.ListKeys()).To(ConsistOf("key2"))

	// Removing an absent key is not an error, and stays so.
	value, ok = cache.Remove("key1")
	g.Expect(ok).To(BeFalse())
	g.Expect(value).To(BeEmpty())
	value, ok = cache.Remove("key1")
	g.Expect(ok).To(BeFalse())
	g.Expect(value).To(BeEmpty())

	checkConsistency(g, cache)
}

func TestCache_Snapshot(t *testing.T) {
	t.Run("groups ascend and cover every key", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](10)
		g.Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 6; i++ {
			cache.Add(fmt.Sprintf("test-%d", i), "val")
			for j := 0; j < i%3; j++ {
				cache.Get(fmt.Sprintf("test-%d", i))
			}
		}

		snapshot := cache.Snapshot()
		var freqs []int
		var keys []string
		for _, group := range snapshot {
			g.Expect(group.Keys).ToNot(BeEmpty())
			freqs = append(freqs, group.Frequency)
			keys = append(keys, group.Keys...)
		}
		g.Expect(slices.IsSorted(freqs)).To(BeTrue())
		g.Expect(keys).To(ConsistOf(cache.ListKeys()))
	})

	t.Run("shares no state with the cache", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](3)
		g.Expect(err).ToNot(HaveOccurred())

		cache.Add("key1", "val1")
		cache.Add("key2", "val2")

		snapshot := cache.Snapshot()
		g.Expect(snapshot).To(Equal([]FrequencyGroup{
			{Frequency: 0, Keys: []string{"key1", "key2"}},
		}))

		// Mutating the cache must not leak into the snapshot.
		cache.Get("key1")
		cache.Remove("key2")
		g.Expect(snapshot).To(Equal([]FrequencyGroup{
			{Frequency: 0, Keys: []string{"key1", "key2"}},
		}))

		// Nor the other way around.
		snapshot[0].Keys[0] = "mangled"
		g.Expect(cache.ListKeys()).To(ConsistOf("key1"))
	})

	t.Run("empty cache yields an empty snapshot", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](3)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(cache.Snapshot()).To(BeEmpty())
	})
}

func TestCache_GetOrLoad(t *testing.T) {
	t.Run("loads and stores a missing key", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](3)
		g.Expect(err).ToNot(HaveOccurred())

		var calls atomic.Int64
		value, cached, err := cache.GetOrLoad(context.Background(), "key1", func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "val1", nil
		})
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(cached).To(BeFalse())
		g.Expect(value).To(Equal("val1"))
		g.Expect(calls.Load()).To(Equal(int64(1)))

		// The loaded value is stored; the loader is not called again.
		value, cached, err = cache.GetOrLoad(context.Background(), "key1", func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "val2", nil
		})
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(cached).To(BeTrue())
		g.Expect(value).To(Equal("val1"))
		g.Expect(calls.Load()).To(Equal(int64(1)))
	})

	t.Run("a failed load stores nothing", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](3)
		g.Expect(err).ToNot(HaveOccurred())

		loadErr := errors.New("backend unavailable")
		_, _, err = cache.GetOrLoad(context.Background(), "key1", func(ctx context.Context) (string, error) {
			return "", loadErr
		})
		g.Expect(err).To(HaveOccurred())
		g.Expect(errors.Is(err, ErrLoadFailed)).To(BeTrue())
		g.Expect(errors.Is(err, loadErr)).To(BeTrue())
		g.Expect(cache.Len()).To(BeZero())
	})

	t.Run("a nil loader fails", func(t *testing.T) {
		g := NewWithT(t)
		cache, err := New[string](3)
		g.Expect(err).ToNot(HaveOccurred())

		_, _, err = cache.GetOrLoad(context.Background(), "key1", nil)
		g.Expect(err).To(HaveOccurred())
		g.Expect(errors.Is(err, ErrNoLoader)).To(BeTrue())
	})

	t.Run("concurrent loads for a key are shared", func(t *testing.T) {
		const concurrency = 20

		g := NewWithT(t)
		cache, err := New[string](3)
		g.Expect(err).ToNot(HaveOccurred())

		var calls atomic.Int64
		release := make(chan struct{})
		wg := sync.WaitGroup{}

		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				value, _, err := cache.GetOrLoad(context.Background(), "key1", func(ctx context.Context) (string, error) {
					calls.Add(1)
					<-release
					return "val1", nil
				})
				g.Expect(err).ToNot(HaveOccurred())
				g.Expect(value).To(Equal("val1"))
			}()
		}

		// Give every goroutine time to queue up behind the first load
		// before letting it finish.
		time.Sleep(100 * time.Millisecond)
		close(release)
		wg.Wait()

		g.Expect(calls.Load()).To(Equal(int64(1)))
		value, ok := cache.Get("key1")
		g.Expect(ok).To(BeTrue())
		g.Expect(value).To(Equal("val1"))
	})
}

func TestCache_Metrics(t *testing.T) {
	g := NewWithT(t)
	reg := prometheus.NewPedanticRegistry()
	cache, err := New[string](2,
		WithMetricsRegisterer(reg),
		WithMetricsPrefix("lfu_"))
	g.Expect(err).ToNot(HaveOccurred())

	cache.Add("key1", "val1")
	cache.Add("key1", "val2")
	cache.Get("key1")
	cache.Get("key2")
	cache.Add("key2", "val2")
	cache.Add("key3", "val3")

	validateMetrics(reg, `
	# HELP lfu_cache_events_total Total number of cache retrieval events, partitioned by event type.
	# TYPE lfu_cache_events_total counter
	lfu_cache_events_total{event_type="cache_hit"} 1
	lfu_cache_events_total{event_type="cache_miss"} 1
	# HELP lfu_cache_evictions_total Total number of cache evictions.
	# TYPE lfu_cache_evictions_total counter
	lfu_cache_evictions_total 1
	# HELP lfu_cache_requests_total Total number of cache requests, partitioned by request status.
	# TYPE lfu_cache_requests_total counter
	lfu_cache_requests_total{status="success"} 6
	# HELP lfu_cached_items Total number of items in the cache.
	# TYPE lfu_cached_items gauge
	lfu_cached_items 2
`, t)
}

func TestCache_Concurrent(t *testing.T) {
	t.Run("reads and writes within capacity", func(t *testing.T) {
		const (
			concurrency = 500
			keysNum     = 10
		)
		g := NewWithT(t)
		cache, err := New[string](keysNum,
			WithMetricsRegisterer(prometheus.NewPedanticRegistry()))
		g.Expect(err).ToNot(HaveOccurred())

		keymap := map[int]string{}
		for i := 0; i < keysNum; i++ {
			keymap[i] = fmt.Sprintf("test-%d", i)
		}

		wg := sync.WaitGroup{}
		run := make(chan bool)

		// simulate concurrent read and write
		for i := 0; i < concurrency; i++ {
			key := rand.IntN(keysNum)
			wg.Add(2)
			go func() {
				defer wg.Done()
				<-run
				cache.Add(keymap[key], "test-value")
			}()
			go func() {
				defer wg.Done()
				<-run
				cache.Get(keymap[key])
			}()
		}
		close(run)
		wg.Wait()

		// The key space fits the capacity, so nothing was ever evicted.
		g.Expect(cache.ListKeys()).To(HaveLen(len(keymap)))
		for _, key := range keymap {
			value, ok := cache.Get(key)
			g.Expect(ok).To(BeTrue(), "key %s not found", key)
			g.Expect(value).To(Equal("test-value"))
		}
		checkConsistency(g, cache)
	})

	t.Run("evictions and removals under pressure", func(t *testing.T) {
		const (
			concurrency = 500
			keysNum     = 20
		)
		g := NewWithT(t)
		cache, err := New[string](5)
		g.Expect(err).ToNot(HaveOccurred())

		wg := sync.WaitGroup{}
		run := make(chan bool)

		for i := 0; i < concurrency; i++ {
			key := fmt.Sprintf("test-%d", rand.IntN(keysNum))
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-run
				switch rand.IntN(4) {
				case 0:
					cache.Remove(key)
				case 1:
					cache.Snapshot()
				default:
					cache.Add(key, "test-value")
					cache.Get(key)
				}
			}()
		}
		close(run)
		wg.Wait()

		g.Expect(cache.Len()).To(BeNumerically("<=", 5))
		checkConsistency(g, cache)
	})
}
