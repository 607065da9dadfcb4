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
	"container/list"
	"slices"
)

// freqIndex groups entries by access frequency. Each bucket keeps its
// members in the order they entered it, so the entry at the front of a
// bucket is the one that has been at that frequency the longest.
//
// freqs mirrors the keys of buckets in ascending order. A frequency is
// tracked if and only if its bucket is non-empty, which makes freqs[0]
// the minimum frequency at all times.
type freqIndex[V any] struct {
	buckets map[int]*list.List
	freqs   []int
}

func newFreqIndex[V any]() *freqIndex[V] {
	return &freqIndex[V]{
		buckets: make(map[int]*list.List),
	}
}

// add appends e to the bucket for e.freq, creating the bucket and
// registering the frequency when absent. Entries that are already indexed
// are left untouched.
func (x *freqIndex[V]) add(e *entry[V]) {
	if e.elem != nil {
		return
	}
	b, ok := x.buckets[e.freq]
	if !ok {
		b = list.New()
		x.buckets[e.freq] = b
		i, _ := slices.BinarySearch(x.freqs, e.freq)
		x.freqs = slices.Insert(x.freqs, i, e.freq)
	}
	e.elem = b.PushBack(e)
}

// remove takes e out of its bucket. A bucket emptied by the removal is
// dropped together with its frequency. Entries that are not indexed, or
// whose frequency has no bucket, are left untouched.
func (x *freqIndex[V]) remove(e *entry[V]) {
	if e.elem == nil {
		return
	}
	b, ok := x.buckets[e.freq]
	if !ok {
		return
	}
	b.Remove(e.elem)
	e.elem = nil
	if b.Len() == 0 {
		delete(x.buckets, e.freq)
		if i, found := slices.BinarySearch(x.freqs, e.freq); found {
			x.freqs = slices.Delete(x.freqs, i, i+1)
		}
	}
}

// minEntry returns the entry that has waited longest at the lowest tracked
// frequency, or nil when the index is empty.
func (x *freqIndex[V]) minEntry() *entry[V] {
	if len(x.freqs) == 0 {
		return nil
	}
	return x.buckets[x.freqs[0]].Front().Value.(*entry[V])
}

// len returns the number of indexed entries across all buckets.
func (x *freqIndex[V]) len() int {
	n := 0
	for _, b := range x.buckets {
		n += b.Len()
	}
	return n
}
