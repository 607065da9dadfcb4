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

import "github.com/prometheus/client_golang/prometheus"

type cacheOptions struct {
	name          string
	registerer    prometheus.Registerer
	metricsPrefix string
	sinks         []Sink
}

// Options is a function that sets the cache options.
type Options func(*cacheOptions) error

func makeOptions(opts ...Options) (*cacheOptions, error) {
	o := &cacheOptions{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithName gives the cache a name. Named caches tag every event they
// publish with a "cache" metadata entry, which tells caches apart when
// several of them share a sink.
func WithName(name string) Options {
	return func(o *cacheOptions) error {
		o.name = name
		return nil
	}
}

// WithMetricsRegisterer sets the Prometheus registerer the cache metrics
// are registered with. Without it no metrics are collected.
func WithMetricsRegisterer(r prometheus.Registerer) Options {
	return func(o *cacheOptions) error {
		o.registerer = r
		return nil
	}
}

// WithMetricsPrefix sets a prefix for the metrics names.
func WithMetricsPrefix(prefix string) Options {
	return func(o *cacheOptions) error {
		o.metricsPrefix = prefix
		return nil
	}
}

// WithSink registers a Sink the cache publishes events to. The option can
// be given multiple times; events are delivered to every registered sink
// in registration order.
func WithSink(s Sink) Options {
	return func(o *cacheOptions) error {
		o.sinks = append(o.sinks, s)
		return nil
	}
}
