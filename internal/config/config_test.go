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

package config

import (
	"flag"
	"testing"
)

func TestFlagSetDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	build := FlagSet(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := build()
	if cfg.ListenAddr != ":2600" {
		t.Fatalf("unexpected default listen addr: %q", cfg.ListenAddr)
	}
	if cfg.KVBackend != "mem" {
		t.Fatalf("unexpected default kv backend: %q", cfg.KVBackend)
	}
	if cfg.LifecycleWorkerCount != 4 {
		t.Fatalf("unexpected default worker count: %d", cfg.LifecycleWorkerCount)
	}
}

func TestFlagSetEnvOverride(t *testing.T) {
	t.Setenv("SL8_LISTEN_ADDR", ":9999")
	t.Setenv("SL8_KV_BACKEND", "redis")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	build := FlagSet(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := build()
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("expected env override, got %q", cfg.ListenAddr)
	}
	if cfg.KVBackend != "redis" {
		t.Fatalf("expected env override, got %q", cfg.KVBackend)
	}
}

func TestFlagSetExplicitFlagOverridesDefault(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	build := FlagSet(fs)
	if err := fs.Parse([]string{"-bucket", "custom-bucket"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := build()
	if cfg.BucketName != "custom-bucket" {
		t.Fatalf("expected flag override, got %q", cfg.BucketName)
	}
}
