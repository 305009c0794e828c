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

// Package config builds the server's Config once at startup from flags
// and SL8_-prefixed environment overrides, the same "one flag.* per
// knob" shape cmd/ratelimiter-api/main.go uses, and hands the result down
// to every handler as a plain value rather than a global singleton.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config bundles every knob the server binary needs: where to listen,
// what object-storage bucket backs the KV substrate, which KV backend to
// use, and the background task cadence.
type Config struct {
	ListenAddr  string
	MetricsAddr string

	TLSCertFile string
	TLSKeyFile  string

	BucketName string
	PathPrefix string

	KVBackend string // "mem" or "redis"
	RedisAddr string

	LifecycleWorkerCount int
	LifecycleTick        time.Duration
	EvictionTick         time.Duration
	EvictionTTL          time.Duration

	HeartbeatInterval time.Duration
	DefaultMaxWait    time.Duration
}

// FlagSet registers every config knob on fs and returns a closure that
// builds the Config after fs.Parse has run, applying any SL8_-prefixed
// environment override over the flag's value.
func FlagSet(fs *flag.FlagSet) func() Config {
	listenAddr := fs.String("listen_addr", ":2600", "HTTP listen address")
	metricsAddr := fs.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address")
	tlsCertFile := fs.String("tls_cert_file", "", "TLS certificate path; empty disables TLS")
	tlsKeyFile := fs.String("tls_key_file", "", "TLS private key path")
	bucketName := fs.String("bucket", "s2lite", "Object storage bucket name backing the KV substrate")
	pathPrefix := fs.String("path_prefix", "", "Object storage path prefix within the bucket")
	kvBackend := fs.String("kv_backend", "mem", `KV substrate backend: "mem" or "redis"`)
	redisAddr := fs.String("redis_addr", "127.0.0.1:6379", "Redis address, used when kv_backend=redis")
	lifecycleWorkers := fs.Int("lifecycle_workers", 4, "Number of background lifecycle worker goroutines")
	lifecycleTick := fs.Duration("lifecycle_tick", 5*time.Second, "Background lifecycle task wake interval")
	evictionTick := fs.Duration("eviction_tick", time.Minute, "Idle stream-state eviction sweep interval")
	evictionTTL := fs.Duration("eviction_ttl", 10*time.Minute, "Idle time before a cached stream state is evicted")
	heartbeatInterval := fs.Duration("heartbeat_interval", 5*time.Second, "Streaming read session heartbeat interval")
	defaultMaxWait := fs.Duration("default_max_wait", 60*time.Second, "Sizes the HTTP write timeout (this value plus 10s); a read without max_wait waits engine.DefaultMaxWait")

	return func() Config {
		return Config{
			ListenAddr:           envOverride("SL8_LISTEN_ADDR", *listenAddr),
			MetricsAddr:          envOverride("SL8_METRICS_ADDR", *metricsAddr),
			TLSCertFile:          envOverride("SL8_TLS_CERT_FILE", *tlsCertFile),
			TLSKeyFile:           envOverride("SL8_TLS_KEY_FILE", *tlsKeyFile),
			BucketName:           envOverride("SL8_BUCKET", *bucketName),
			PathPrefix:           envOverride("SL8_PATH_PREFIX", *pathPrefix),
			KVBackend:            envOverride("SL8_KV_BACKEND", *kvBackend),
			RedisAddr:            envOverride("SL8_REDIS_ADDR", *redisAddr),
			LifecycleWorkerCount: envOverrideInt("SL8_LIFECYCLE_WORKERS", *lifecycleWorkers),
			LifecycleTick:        envOverrideDuration("SL8_LIFECYCLE_TICK", *lifecycleTick),
			EvictionTick:         envOverrideDuration("SL8_EVICTION_TICK", *evictionTick),
			EvictionTTL:          envOverrideDuration("SL8_EVICTION_TTL", *evictionTTL),
			HeartbeatInterval:    envOverrideDuration("SL8_HEARTBEAT_INTERVAL", *heartbeatInterval),
			DefaultMaxWait:       envOverrideDuration("SL8_DEFAULT_MAX_WAIT", *defaultMaxWait),
		}
	}
}

func envOverride(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return fallback
}

func envOverrideInt(name string, fallback int) int {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOverrideDuration(name string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
