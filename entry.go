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

import "container/list"

// entry is the unit of storage: a key, the value stored under it, and the
// number of times the pair has been written or read since insertion.
//
// elem is the entry's position in its current frequency bucket. It is owned
// by the frequency index and is nil whenever the entry is not indexed.
type entry[V any] struct {
	key   string
	value V
	freq  int
	elem  *list.Element
}
