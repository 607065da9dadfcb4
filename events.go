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
	"sort"
	"time"

	"github.com/go-logr/logr"
)

const (
	// EventSeverityInfo is the severity level for informational events.
	EventSeverityInfo string = "info"
	// EventSeverityError is the severity level for error events.
	EventSeverityError string = "error"
)

// Machine-readable reasons an event can carry.
const (
	// ReasonCreated is emitted once when a cache is constructed.
	ReasonCreated string = "Created"
	// ReasonInserted is emitted when a key is stored for the first time.
	ReasonInserted string = "Inserted"
	// ReasonOverwritten is emitted when the value under an existing key is
	// replaced.
	ReasonOverwritten string = "Overwritten"
	// ReasonEvicted is emitted when an entry is removed to restore the
	// capacity bound.
	ReasonEvicted string = "Evicted"
	// ReasonRemoved is emitted when an entry is removed on request.
	ReasonRemoved string = "Removed"
	// ReasonMiss is emitted when an operation addresses an absent key.
	ReasonMiss string = "Miss"
	// ReasonLoadFailed is emitted when a loader passed to GetOrLoad returns
	// an error.
	ReasonLoadFailed string = "LoadFailed"
)

// Event is a report of something that happened inside a cache. Events are
// best-effort diagnostics: the cache behaves identically whether or not
// anything listens, and no operation depends on an event being delivered.
type Event struct {
	// Timestamp of when the event was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Severity of the event, one of EventSeverityInfo or EventSeverityError.
	Severity string `json:"severity"`

	// Reason is a machine-readable description of why the event was recorded.
	Reason string `json:"reason"`

	// Key is the cache key the event is about. It is empty for events that
	// concern the cache as a whole.
	Key string `json:"key,omitempty"`

	// Message is a human-readable description of the event.
	Message string `json:"message"`

	// Metadata holds additional details, for example the frequency of the
	// entry at the time of the event.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Sink receives cache events. Publish is called on the goroutine that
// performed the operation, after that operation has released the cache
// lock, in the order the events were recorded. A slow Sink therefore
// delays its own caller, never other users of the cache, and a Sink may
// itself call back into the cache.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) {
	f(e)
}

// LogSink returns a Sink that writes events through the given logr.Logger.
// Info events log at level 0 and error events through Error, with the
// reason, key and metadata attached as key value pairs.
func LogSink(log logr.Logger) Sink {
	return SinkFunc(func(e Event) {
		kv := make([]interface{}, 0, 4+2*len(e.Metadata))
		kv = append(kv, "reason", e.Reason)
		if e.Key != "" {
			kv = append(kv, "key", e.Key)
		}
		meta := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			meta = append(meta, k)
		}
		sort.Strings(meta)
		for _, k := range meta {
			kv = append(kv, k, e.Metadata[k])
		}
		if e.Severity == EventSeverityError {
			log.Error(nil, e.Message, kv...)
			return
		}
		log.Info(e.Message, kv...)
	})
}

// ChannelSink fans events out to a channel without ever blocking the
// publisher: when the buffer is full, new events are dropped.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink returns a ChannelSink with the given buffer size. Sizes
// below one are rounded up to one.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{
		ch: make(chan Event, buffer),
	}
}

// Publish offers e to the channel and drops it when the buffer is full.
func (s *ChannelSink) Publish(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}
