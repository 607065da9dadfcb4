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

import "fmt"

// entityStore is the authoritative key to entry mapping. It knows nothing
// about frequencies; the Cache keeps it in lockstep with the frequency
// index under a single lock.
type entityStore[V any] struct {
	entries map[string]*entry[V]
}

func newEntityStore[V any]() *entityStore[V] {
	return &entityStore[V]{
		entries: make(map[string]*entry[V]),
	}
}

// get returns the entry stored under key, if any.
func (s *entityStore[V]) get(key string) (*entry[V], bool) {
	e, ok := s.entries[key]
	return e, ok
}

// insert adds a new entry to the store. Callers must check for presence
// first; inserting over an existing key fails with ErrKeyExists.
func (s *entityStore[V]) insert(e *entry[V]) error {
	if _, ok := s.entries[e.key]; ok {
		return &CacheError{Reason: ErrKeyExists, Err: fmt.Errorf("'%s' already exists", e.key)}
	}
	s.entries[e.key] = e
	return nil
}

// delete removes and returns the entry stored under key. It reports false
// when the key is absent.
func (s *entityStore[V]) delete(key string) (*entry[V], bool) {
	e, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return e, ok
}

func (s *entityStore[V]) len() int {
	return len(s.entries)
}
