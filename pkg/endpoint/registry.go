/*
Copyright 2026.

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

package endpoint

import (
	"sync"
	"time"
)

// Registry is the set of registered endpoints.
type Registry struct {
	mu        sync.RWMutex
	endpoints []Config
	lastID    int64
	now       func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// Register validates cfg and stores it. When an equal endpoint is already
// registered its id is returned and nothing is added. New ids derive from the
// registration time in milliseconds and are strictly increasing.
func (r *Registry) Register(cfg Config) (int64, error) {
	cfg.Security = ParseSecurityMode(int(cfg.Security))
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.endpoints {
		if existing.Equal(cfg) {
			return existing.ID, nil
		}
	}
	id := r.now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	cfg.ID = id
	r.endpoints = append(r.endpoints, cfg)
	return id, nil
}

// Remove deletes the endpoint with the given id.
func (r *Registry) Remove(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.endpoints {
		if e.ID == id {
			r.endpoints = append(r.endpoints[:i], r.endpoints[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Get returns a copy of the endpoint with the given id.
func (r *Registry) Get(id int64) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.endpoints {
		if e.ID == id {
			return e, nil
		}
	}
	return Config{}, ErrNotFound
}

// List returns all endpoints in registration order.
func (r *Registry) List() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}
