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

// Package backend models the remote document/real-time store as an abstract
// capability-bearing service. The reflex layer is a protocol consumer; it
// never sees a vendor wire format, only this contract.
package backend

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

// ErrNotFound is returned by ReadDocument when no document exists at the
// requested path.
var ErrNotFound = errors.Errorf("document not found")

type Document = schema.Struct

// RawNotification is one change delivered by the remote store. The sequence
// marker is 0 when the backend provides none; the connection manager then
// assigns arrival order per source path.
type RawNotification struct {
	Path           string
	Data           schema.Struct
	SequenceMarker uint64
}

// Session is one live logical connection to the remote store.
type Session interface {
	// Probe checks backend health. A nil error means healthy.
	Probe(
		ctx context.Context,
	) error
	// SubscribeChanges returns an infinite stream of change notifications
	// for the given source path. The channel closes when the session dies;
	// restart by re-subscribing on a fresh session.
	SubscribeChanges(
		ctx context.Context, path string,
	) (<-chan RawNotification, error)
	ReadDocument(
		ctx context.Context, path string,
	) (Document, error)
	WriteDocument(
		ctx context.Context, path string, value Document,
	) error
	Close() error
}

// Connector opens sessions against one remote store target.
type Connector interface {
	Open(
		ctx context.Context, credentialRef, targetId string,
	) (Session, error)
}
