// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus counters/histograms/gauges for the
// append and read pipelines and the lifecycle background tasks, registered
// eagerly at init the way the teacher's churn package registers its own
// global metrics — harmless if nothing ever scrapes /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AppendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "s2lite_append_latency_seconds",
		Help:    "Latency of a single Append call, start to committed ack.",
		Buckets: prometheus.DefBuckets,
	})
	AppendBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "s2lite_append_batch_records",
		Help:    "Number of records per append batch.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1000},
	})
	AppendConditionFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "s2lite_append_condition_failures_total",
		Help: "Appends rejected by a match_seq_num or fencing_token check, by reason.",
	}, []string{"reason"})

	ReadScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "s2lite_read_scan_duration_seconds",
		Help:    "Duration of one historical KV range scan serving a read.",
		Buckets: prometheus.DefBuckets,
	})
	TailSubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "s2lite_tail_subscribers_active",
		Help: "Number of read sessions currently subscribed to a stream's live tail.",
	})
	LaggedSubscribersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "s2lite_lagged_subscribers_total",
		Help: "Tail subscribers dropped for falling more than FOLLOWER_MAX_LAG batches behind.",
	})

	LifecycleCycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "s2lite_lifecycle_cycle_duration_seconds",
		Help:    "Duration of one background lifecycle cycle, by the ID of the worker that ran it.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	StreamsCached = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "s2lite_streams_cached",
		Help: "Number of stream states currently held in the in-process cache.",
	})

	// BasinActiveStreams is a per-basin gauge labelled by basin name, kept
	// at basin rather than stream granularity so its cardinality stays
	// bounded. No code in this module sets it, and basin deletion does not
	// call DropBasin.
	BasinActiveStreams = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "s2lite_basin_active_streams",
		Help: "Number of streams currently active in a basin.",
	}, []string{"basin"})
)

func init() {
	prometheus.MustRegister(
		AppendLatency,
		AppendBatchSize,
		AppendConditionFailuresTotal,
		ReadScanDuration,
		TailSubscribersActive,
		LaggedSubscribersTotal,
		LifecycleCycleDuration,
		StreamsCached,
		BasinActiveStreams,
	)
}

// DropBasin removes a basin's gauge series once it's fully deleted, so
// cardinality tracks live basins rather than growing without bound.
func DropBasin(basin string) {
	BasinActiveStreams.DeleteLabelValues(basin)
}

// ObserveAppend records one append call's latency and batch size.
func ObserveAppend(d time.Duration, records int) {
	AppendLatency.Observe(d.Seconds())
	AppendBatchSize.Observe(float64(records))
}

// ObserveConditionFailure increments the per-reason append-condition-failed
// counter ("seq_num_mismatch" or "fencing_token_mismatch").
func ObserveConditionFailure(reason string) {
	AppendConditionFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveReadScan records one historical KV range scan's duration.
func ObserveReadScan(d time.Duration) {
	ReadScanDuration.Observe(d.Seconds())
}

// ObserveLifecycleCycle records one background lifecycle cycle's duration,
// labelled with the ID of the worker that ran it.
func ObserveLifecycleCycle(task string, d time.Duration) {
	LifecycleCycleDuration.WithLabelValues(task).Observe(d.Seconds())
}

// Handler returns the promhttp handler the server mounts at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

// StartEndpoint exposes /metrics on its own listener, for deployments that
// don't want metrics reachable on the main API port. Mirrors the teacher's
// startMetricsEndpoint: fire-and-forget, best-effort.
func StartEndpoint(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
