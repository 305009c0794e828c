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

// Package authz is the access-token authorization boundary the serving
// layer calls through before dispatching to the engine. It is an external
// collaborator (spec §1): the core never inspects a token itself, only the
// Authorizer's verdict. Two trivial implementations are provided — enough
// to exercise the boundary, not a full auth system.
package authz

import (
	"context"
	"sync"

	"s2lite/internal/apierr"
	"s2lite/internal/types"
)

// Scope is the coarse-grained action a caller is attempting, used to let
// an Authorizer grant read-only tokens distinct from read-write ones.
type Scope int

const (
	ScopeRead Scope = iota
	ScopeWrite
	ScopeAdmin
)

// Authorizer decides whether a bearer token may act within scope against
// a basin. A basin of "" means the request is not basin-scoped (e.g.
// list-basins).
type Authorizer interface {
	Authorize(ctx context.Context, bearerToken string, basin types.BasinName, scope Scope) error
}

// AllowAll grants every request unconditionally, the "authorization isn't
// wired up yet" default used by local development and tests.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, types.BasinName, Scope) error { return nil }

// staticGrant is one token's allowed scope and basin restriction.
type staticGrant struct {
	scope Scope
	basin types.BasinName // empty means "any basin"
}

// StaticTable authorizes against a fixed, in-memory token table — the
// access_token entity of spec.md §3 minus any persistence, matching the
// teacher's LoggingRedisEvaler/GoRedisEvaler split of "throwaway demo
// implementation" vs "real backing adapter": StaticTable is this
// boundary's demo-grade adapter, not a production token store.
type StaticTable struct {
	mu     sync.RWMutex
	grants map[string]staticGrant
}

func NewStaticTable() *StaticTable {
	return &StaticTable{grants: make(map[string]staticGrant)}
}

// Grant registers a token with the given scope, optionally restricted to
// one basin (pass "" to allow any basin).
func (t *StaticTable) Grant(token string, scope Scope, basin types.BasinName) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grants[token] = staticGrant{scope: scope, basin: basin}
}

// Revoke removes a token from the table.
func (t *StaticTable) Revoke(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.grants, token)
}

func (t *StaticTable) Authorize(_ context.Context, bearerToken string, basin types.BasinName, scope Scope) error {
	t.mu.RLock()
	grant, ok := t.grants[bearerToken]
	t.mu.RUnlock()
	if !ok {
		return apierr.New(apierr.CodeAccessTokenNotFound, "access token not recognized")
	}
	if grant.basin != "" && basin != "" && grant.basin != basin {
		return apierr.New(apierr.CodePermissionDenied, "token is not scoped to this basin")
	}
	if scope > grant.scope {
		return apierr.New(apierr.CodePermissionDenied, "token scope does not permit this operation")
	}
	return nil
}
