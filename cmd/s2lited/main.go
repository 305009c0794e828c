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

// Package main is the s2lited server binary: it parses flags, wires the
// chosen KV backend into an engine.Engine, starts the lifecycle
// coordinator's background workers, exposes Prometheus metrics, and serves
// the HTTP API until an OS signal requests a graceful shutdown — the same
// "flags -> components -> background worker -> HTTP server -> signal ->
// drain" shape as cmd/ratelimiter-api/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"s2lite/internal/authz"
	"s2lite/internal/config"
	"s2lite/internal/engine"
	"s2lite/internal/kv"
	"s2lite/internal/kv/memkv"
	"s2lite/internal/kv/rediskv"
	"s2lite/internal/lifecycle"
	"s2lite/internal/metrics"
	"s2lite/internal/serving"
)

func main() {
	fs := flag.NewFlagSet("s2lited", flag.ExitOnError)
	buildConfig := config.FlagSet(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	cfg := buildConfig()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open kv store: %v", err)
	}
	defer store.Close()

	eng := engine.New(store,
		engine.WithEvictionTTL(cfg.EvictionTTL),
		engine.WithHeartbeatInterval(cfg.HeartbeatInterval),
	)

	coordinator := lifecycle.New(store, eng,
		lifecycle.WithWorkerCount(cfg.LifecycleWorkerCount),
		lifecycle.WithTickInterval(cfg.LifecycleTick),
		lifecycle.WithEvictionTickInterval(cfg.EvictionTick),
	)
	coordinator.Start()

	if cfg.MetricsAddr != "" {
		metrics.StartEndpoint(cfg.MetricsAddr)
	}

	srv := serving.NewServer(eng, authz.AllowAll{})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.DefaultMaxWait + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("s2lited listening on %s (kv backend: %s)\n", cfg.ListenAddr, cfg.KVBackend)
		var err error
		if cfg.TLSCertFile != "" {
			err = httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not listen on %s: %v", cfg.ListenAddr, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\ns2lited: shutting down...")
	coordinator.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
	fmt.Println("s2lited: stopped.")
}

func openStore(cfg config.Config) (kv.Store, error) {
	switch cfg.KVBackend {
	case "redis":
		return rediskv.NewFromAddr(cfg.RedisAddr), nil
	case "mem", "":
		return memkv.New(), nil
	default:
		return nil, fmt.Errorf("unknown kv_backend %q (want \"mem\" or \"redis\")", cfg.KVBackend)
	}
}
