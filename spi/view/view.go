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

package view

import (
	"context"
	"time"

	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

// ApplyFunc folds one event into the current view value. current is nil on
// the first application of a freshly created view.
type ApplyFunc func(current schema.Struct, event eventmesh.Event) (schema.Struct, error)

// Snapshot is a point-in-time read of a materialized view.
type Snapshot struct {
	ViewID        string
	Value         schema.Struct
	LastApplied   uint64
	Consistent    bool
	LastAppliedAt time.Time
}

// Manager maintains named views as a fold over the event stream. Application
// to a given view is serialized; cross-view application proceeds in parallel.
type Manager interface {
	// BindView declares that the view is updated by applying applyFn for
	// every event of one of the bound types. The view itself is created
	// lazily on the first matching event.
	BindView(
		viewId string, eventTypes []string, applyFn ApplyFunc,
	) error
	// OnEvent applies one event; registered as an event mesh subscriber.
	// An event whose sequence marker does not exceed the view's last
	// applied marker is rejected with a stale-or-duplicate view error and
	// leaves the view untouched.
	OnEvent(
		event eventmesh.Event,
	) error
	Read(
		viewId string,
	) (Snapshot, error)
	// Rebuild re-reads the source documents through the backend session and
	// replays the fold from the initial value. Slow path, never on the hot
	// path.
	Rebuild(
		ctx context.Context, viewId string, paths ...string,
	) error
	Start() error
	Stop() error
}
