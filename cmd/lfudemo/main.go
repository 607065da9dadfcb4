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

// lfudemo exercises a frequency bounded cache with a staged workload and
// logs the evolving frequency structure. It is the reference consumer of
// the lfucache module: logging through logr, metricless by default, and
// optionally posting cache events to a webhook.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/cachekit/lfucache"
	"github.com/cachekit/lfucache/recorder"
)

const controllerName = "lfudemo"

var logLevels = map[string]zapcore.Level{
	"trace": zapcore.DebugLevel - 1,
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"error": zapcore.ErrorLevel,
}

func main() {
	var (
		capacity     int
		workers      int
		opsPerWorker int
		keySpace     int
		logLevel     string
		logEncoding  string
		eventsAddr   string
	)
	pflag.IntVar(&capacity, "capacity", 8,
		"Maximum number of entries the cache holds.")
	pflag.IntVar(&workers, "workers", 4,
		"Number of concurrent workers in the stampede and mixed stages.")
	pflag.IntVar(&opsPerWorker, "ops", 250,
		"Operations each worker performs in the mixed stage.")
	pflag.IntVar(&keySpace, "keys", 32,
		"Size of the key space the mixed stage draws from.")
	pflag.StringVar(&logLevel, "log-level", "info",
		"Log verbosity level, one of 'trace', 'debug', 'info', 'error'.")
	pflag.StringVar(&logEncoding, "log-encoding", "console",
		"Log encoding format, one of 'console', 'json'.")
	pflag.StringVar(&eventsAddr, "events-addr", "",
		"Optional webhook address cache events are posted to.")
	pflag.Parse()

	log, err := newLogger(logLevel, logEncoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	// Cache events go to the log at verbosity 1, and to the webhook when
	// one is given.
	opts := []lfucache.Options{
		lfucache.WithName("demo"),
		lfucache.WithSink(lfucache.LogSink(log.WithName("events").V(1))),
	}
	if eventsAddr != "" {
		rec, err := recorder.NewRecorder(eventsAddr, controllerName)
		if err != nil {
			log.Error(err, "invalid events address", "events-addr", eventsAddr)
			os.Exit(1)
		}
		opts = append(opts, lfucache.WithSink(rec.Sink(log)))
	}

	cache, err := lfucache.New[string](capacity, opts...)
	if err != nil {
		log.Error(err, "failed to create cache")
		os.Exit(1)
	}

	log.Info("starting workload",
		"capacity", capacity, "workers", workers, "ops", opsPerWorker, "keys", keySpace)

	fill(log, cache)
	overflow(log, cache)
	removeAndReinsert(log, cache)
	stampede(log, cache, workers)
	mixed(log, cache, workers, opsPerWorker, keySpace)

	log.Info("workload done", "stored", cache.Len(), "capacity", cache.Capacity())
	logSnapshot(log, cache)
}

// fill stores a full cache worth of keys, then reads a subset to leave a
// frequency gradient behind for the later stages to bite into.
func fill(log logr.Logger, cache *lfucache.Cache[string]) {
	log.Info("stage: fill")
	for i := 0; i < cache.Capacity(); i++ {
		cache.Add(key(i), fmt.Sprintf("value-%d", i))
	}
	for i := 0; i < cache.Capacity()/2; i++ {
		cache.Get(key(i))
	}
	cache.Get(key(0))
	cache.Get(key(0))
	logSnapshot(log, cache)
}

// overflow stores keys beyond the capacity, displacing the least
// frequently used entries.
func overflow(log logr.Logger, cache *lfucache.Cache[string]) {
	log.Info("stage: overflow")
	for i := 0; i < 3; i++ {
		k := fmt.Sprintf("burst:%d", i)
		if evicted, ok := cache.Add(k, fmt.Sprintf("burst-value-%d", i)); ok {
			log.Info("insert displaced an entry", "key", k, "evicted_value", evicted)
		}
	}
	logSnapshot(log, cache)
}

// removeAndReinsert drops the hottest key and stores it again, showing
// that a reinserted key starts over at frequency zero.
func removeAndReinsert(log logr.Logger, cache *lfucache.Cache[string]) {
	log.Info("stage: remove and reinsert")
	if v, ok := cache.Remove(key(0)); ok {
		log.Info("removed hot key", "key", key(0), "value", v)
	}
	if _, ok := cache.Get(key(0)); !ok {
		log.Info("removed key is gone", "key", key(0))
	}
	cache.Add(key(0), "value-0-reborn")
	logSnapshot(log, cache)
}

// stampede lets all workers demand the same missing key at once; the
// cache collapses the loads into a single call.
func stampede(log logr.Logger, cache *lfucache.Cache[string], workers int) {
	log.Info("stage: stampede")
	var calls atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, _, err := cache.GetOrLoad(ctx, "session:origin", func(ctx context.Context) (string, error) {
				calls.Add(1)
				select {
				case <-time.After(10 * time.Millisecond):
				case <-ctx.Done():
					return "", ctx.Err()
				}
				return "expensive-session", nil
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Error(err, "stampede stage failed")
		return
	}
	log.Info("stampede resolved", "loader_calls", calls.Load())
}

// mixed runs a concurrent read-heavy workload over a key space larger
// than the capacity.
func mixed(log logr.Logger, cache *lfucache.Cache[string], workers, ops, keySpace int) {
	log.Info("stage: mixed workload")
	var evictions atomic.Int64
	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < ops; i++ {
				k := key(rand.IntN(keySpace))
				switch n := rand.IntN(10); {
				case n < 6:
					cache.Get(k)
				case n < 9:
					if _, evicted := cache.Add(k, fmt.Sprintf("payload-%d", i)); evicted {
						evictions.Add(1)
					}
				default:
					cache.Remove(k)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error(err, "mixed stage failed")
		return
	}
	log.Info("mixed workload done", "evictions", evictions.Load())
}

func logSnapshot(log logr.Logger, cache *lfucache.Cache[string]) {
	for _, group := range cache.Snapshot() {
		log.Info("frequency group", "frequency", group.Frequency, "keys", group.Keys)
	}
}

func key(i int) string {
	return fmt.Sprintf("user:%d", i)
}

// newLogger returns a logr.Logger backed by zap, with console or json
// encoding, ISO8601 timestamps and the given verbosity floor.
func newLogger(level, encoding string) (logr.Logger, error) {
	l, ok := logLevels[level]
	if !ok {
		return logr.Logger{}, fmt.Errorf("invalid log level '%s'", level)
	}

	var cfg zap.Config
	switch encoding {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return logr.Logger{}, fmt.Errorf("invalid log encoding '%s'", encoding)
	}
	cfg.Level = zap.NewAtomicLevelAt(l)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(z), nil
}
