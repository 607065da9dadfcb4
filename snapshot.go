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

// FrequencyGroup is one rung of a cache snapshot: an access frequency and
// the keys stored at it, ordered by the time they reached the frequency.
type FrequencyGroup struct {
	Frequency int      `json:"frequency"`
	Keys      []string `json:"keys"`
}

// Snapshot returns the frequency structure of the cache in ascending
// frequency order, one group per non-empty frequency. The result is a
// copy and shares no state with the cache; mutating either afterwards
// does not affect the other.
func (c *Cache[V]) Snapshot() []FrequencyGroup {
	c.mu.Lock()
	defer c.mu.Unlock()

	groups := make([]FrequencyGroup, 0, len(c.index.freqs))
	for _, f := range c.index.freqs {
		b := c.index.buckets[f]
		g := FrequencyGroup{
			Frequency: f,
			Keys:      make([]string, 0, b.Len()),
		}
		for el := b.Front(); el != nil; el = el.Next() {
			g.Keys = append(g.Keys, el.Value.(*entry[V]).key)
		}
		groups = append(groups, g)
	}
	return groups
}
