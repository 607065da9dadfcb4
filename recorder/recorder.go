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

// Package recorder posts cache events to a webhook address, for processes
// that forward their cache diagnostics to an external collector.
package recorder

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/cachekit/lfucache"
)

// Recorder posts events to the webhook address.
type Recorder struct {
	// Webhook address of the events endpoint.
	Webhook string

	// ReportingController is the name of the component that emits events.
	ReportingController string

	// Client is the retryable HTTP client used for posting.
	Client *retryablehttp.Client
}

// payload is the JSON body of a posted event: the event itself plus the
// identity of the reporting process.
type payload struct {
	lfucache.Event

	ReportingController string `json:"reportingController"`
	ReportingInstance   string `json:"reportingInstance"`
}

// NewRecorder creates a Recorder with default settings. The recorder
// performs automatic retries for connection errors and 500-range response
// codes.
func NewRecorder(webhook, reportingController string) (*Recorder, error) {
	if _, err := url.Parse(webhook); err != nil {
		return nil, err
	}

	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient.Timeout = 5 * time.Second
	httpClient.Logger = nil

	return &Recorder{
		Webhook:             webhook,
		ReportingController: reportingController,
		Client:              httpClient,
	}, nil
}

// Record performs an HTTP POST of the given event to the webhook address.
func (r *Recorder) Record(e lfucache.Event) error {
	if r.Client == nil {
		return fmt.Errorf("retryable HTTP client has not been initialised")
	}

	if e.Reason == "" {
		return fmt.Errorf("failed to get event reason")
	}

	if e.Message == "" {
		return fmt.Errorf("failed to get event message")
	}

	hostname, err := os.Hostname()
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload{
		Event:               e,
		ReportingController: r.ReportingController,
		ReportingInstance:   hostname,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event into json, error: %w", err)
	}

	if _, err := r.Client.Post(r.Webhook, "application/json", body); err != nil {
		return err
	}

	return nil
}

// Sink adapts the Recorder to the cache's Sink interface. Delivery
// failures are reported through log and never reach cache callers.
func (r *Recorder) Sink(log logr.Logger) lfucache.Sink {
	return lfucache.SinkFunc(func(e lfucache.Event) {
		if err := r.Record(e); err != nil {
			log.Error(err, "failed to deliver cache event",
				"reason", e.Reason, "key", e.Key)
		}
	})
}
