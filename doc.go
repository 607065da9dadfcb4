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

// Package lfucache provides a generic, thread-safe, in-process key value
// cache bounded to a fixed capacity, evicting the least frequently used
// entry when full. The data type of the value stored in the cache has to
// be defined when creating the cache. For example, for storing string
// values create a string type Cache
//
//	cache, err := New[string](10)
//
// Storing and reading a key raises its access frequency by one; a new key
// starts at frequency zero. When storing a new key would exceed the
// capacity, the entry with the lowest frequency is evicted and its value
// handed back to the caller
//
//	evicted, ok := cache.Add("foo", "bar")
//
// Entries tied at the lowest frequency are evicted in the order they
// reached it. The frequency structure can be inspected through Snapshot,
// which returns the keys grouped by frequency in ascending order.
//
// The cache is self-instrumenting and exports metrics about its internal
// operations if it is configured with a metrics registerer
//
//	cache, err := New[string](10, WithMetricsRegisterer(reg))
//
// Mutations are reported as events to any configured sinks. Sinks are
// invoked outside the cache's internal lock, so a slow consumer delays
// only the goroutine whose operation produced the event
//
//	cache, err := New[string](10,
//		WithSink(LogSink(log)),
//		WithSink(NewChannelSink(64)))
//
// For read-through use, GetOrLoad loads missing values and collapses
// concurrent loads for the same key into one call
//
//	value, cached, err := cache.GetOrLoad(ctx, "foo", func(ctx context.Context) (string, error) {
//		return fetch(ctx, "foo")
//	})
package lfucache
