// Copyright 2018 Google LLC
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

package main

import (
	"sync"
	"time"

	"github.com/agrofix/storefront/api"
)

// pendingTTL bounds how long a registration waits for its passcode.
const pendingTTL = 15 * time.Minute

type pendingEntry struct {
	req     api.RegisterRequest
	expires time.Time
}

// pendingRegistrations holds registrations waiting for passcode
// verification, keyed by session id. Entries carry the plaintext password,
// so they live only in process memory and expire after ttl. The zero value
// is ready to use.
type pendingRegistrations struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]pendingEntry
}

func (p *pendingRegistrations) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// put replaces the session's pending registration and drops expired ones.
func (p *pendingRegistrations) put(sessionID string, req api.RegisterRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock()
	if p.entries == nil {
		p.entries = make(map[string]pendingEntry)
	}
	for id, e := range p.entries {
		if !now.Before(e.expires) {
			delete(p.entries, id)
		}
	}
	ttl := p.ttl
	if ttl <= 0 {
		ttl = pendingTTL
	}
	p.entries[sessionID] = pendingEntry{req: req, expires: now.Add(ttl)}
}

func (p *pendingRegistrations) get(sessionID string) (api.RegisterRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[sessionID]
	if !ok {
		return api.RegisterRequest{}, false
	}
	if !p.clock().Before(e.expires) {
		delete(p.entries, sessionID)
		return api.RegisterRequest{}, false
	}
	return e.req, true
}

func (p *pendingRegistrations) drop(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, sessionID)
}

func (p *pendingRegistrations) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
