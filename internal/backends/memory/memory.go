/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package memory provides an in-process backend for local development and
// tests. Documents live in a map; change notifications are delivered to
// subscribers in publish order per path.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/reflexstream/reflex-layer/internal/containers"
	"github.com/reflexstream/reflex-layer/spi/backend"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/errs"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

func init() {
	backend.RegisterBackend(spiconfig.MemoryBackend, func(_ *spiconfig.Config) (backend.Connector, error) {
		return NewConnector(NewStore()), nil
	})
}

// Store is the shared in-memory document store behind all sessions of one
// connector. Tests drive it directly to inject changes and failures.
type Store struct {
	documents *containers.ConcurrentMap[string, backend.Document]

	// mutex guards subscribers and markers, never the documents
	mutex       sync.Mutex
	subscribers map[string][]chan backend.RawNotification
	markers     map[string]uint64
	healthy     atomic.Bool
}

func NewStore() *Store {
	store := &Store{
		documents:   containers.NewConcurrentMap[string, backend.Document](),
		subscribers: make(map[string][]chan backend.RawNotification),
		markers:     make(map[string]uint64),
	}
	store.healthy.Store(true)
	return store
}

// SetHealthy flips the health state reported by Probe. Used by tests to
// simulate backend outages.
func (s *Store) SetHealthy(
	healthy bool,
) {

	s.healthy.Store(healthy)
}

// Publish delivers a change notification for the given path with the next
// sequence marker of that path.
func (s *Store) Publish(
	path string, data schema.Struct,
) uint64 {

	s.mutex.Lock()
	s.markers[path]++
	marker := s.markers[path]
	subscribers := make([]chan backend.RawNotification, len(s.subscribers[path]))
	copy(subscribers, s.subscribers[path])
	s.mutex.Unlock()

	notification := backend.RawNotification{
		Path:           path,
		Data:           data,
		SequenceMarker: marker,
	}
	for _, subscriber := range subscribers {
		subscriber <- notification
	}
	return marker
}

type connector struct {
	store *Store
}

func NewConnector(
	store *Store,
) backend.Connector {

	return &connector{
		store: store,
	}
}

func (c *connector) Open(
	_ context.Context, _, _ string,
) (backend.Session, error) {

	if !c.store.healthy.Load() {
		return nil, errs.Connection("in-memory backend is unavailable", nil, "")
	}
	return &session{
		store: c.store,
	}, nil
}

type session struct {
	store  *Store
	mutex  sync.Mutex
	opened []chan backend.RawNotification
	closed bool
}

func (s *session) Probe(
	_ context.Context,
) error {

	if !s.store.healthy.Load() {
		return errs.Connection("in-memory backend is unavailable", nil, "")
	}
	return nil
}

func (s *session) SubscribeChanges(
	_ context.Context, path string,
) (<-chan backend.RawNotification, error) {

	changes := make(chan backend.RawNotification, 64)

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil, errs.Connection("session already closed", nil, "")
	}
	s.opened = append(s.opened, changes)
	s.mutex.Unlock()

	s.store.mutex.Lock()
	s.store.subscribers[path] = append(s.store.subscribers[path], changes)
	s.store.mutex.Unlock()
	return changes, nil
}

func (s *session) ReadDocument(
	_ context.Context, path string,
) (backend.Document, error) {

	document, present := s.store.documents.Load(path)
	if !present {
		return nil, backend.ErrNotFound
	}
	return document, nil
}

func (s *session) WriteDocument(
	_ context.Context, path string, value backend.Document,
) error {

	s.store.documents.Store(path, value)
	return nil
}

func (s *session) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	opened := s.opened
	s.opened = nil
	s.mutex.Unlock()

	s.store.mutex.Lock()
	for path, subscribers := range s.store.subscribers {
		remaining := subscribers[:0]
		for _, subscriber := range subscribers {
			if !contains(opened, subscriber) {
				remaining = append(remaining, subscriber)
			}
		}
		s.store.subscribers[path] = remaining
	}
	s.store.mutex.Unlock()

	for _, changes := range opened {
		close(changes)
	}
	return nil
}

func contains(
	channels []chan backend.RawNotification, channel chan backend.RawNotification,
) bool {

	for _, c := range channels {
		if c == channel {
			return true
		}
	}
	return false
}
