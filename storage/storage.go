// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage persists small per-visitor values, the bearer token and the
// serialized cart, between requests. A Local value plays the part a browser's
// localStorage plays for a single visitor.
package storage

import (
	"context"

	"github.com/pkg/errors"
)

// Fixed keys used by the storefront.
const (
	KeyToken = "token"
	KeyCart  = "cart"
)

// Store is a key/value store partitioned by session id.
type Store interface {
	// Get returns the value for key, ok is false when the key is not set.
	Get(ctx context.Context, sessionID, key string) (value string, ok bool, err error)
	Set(ctx context.Context, sessionID, key, value string) error
	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, sessionID, key string) error
	Close(ctx context.Context) error
}

// Local is a Store bound to one session.
type Local struct {
	store     Store
	sessionID string
}

// NewLocal binds s to sessionID.
func NewLocal(s Store, sessionID string) *Local {
	return &Local{store: s, sessionID: sessionID}
}

func (l *Local) SessionID() string { return l.sessionID }

func (l *Local) Get(ctx context.Context, key string) (string, bool, error) {
	return l.store.Get(ctx, l.sessionID, key)
}

func (l *Local) Set(ctx context.Context, key, value string) error {
	return l.store.Set(ctx, l.sessionID, key, value)
}

func (l *Local) Remove(ctx context.Context, key string) error {
	return l.store.Remove(ctx, l.sessionID, key)
}

// Config selects and configures a backend.
type Config struct {
	Backend       string // memory, mongo or mysql
	MongoURL      string
	MongoDatabase string
	MySQLDSN      string
}

// Open returns the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "mongo":
		return NewMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	case "mysql":
		return NewMySQL(ctx, cfg.MySQLDSN)
	default:
		return nil, errors.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
