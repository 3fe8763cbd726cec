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

package connection

import (
	"context"
	"time"

	"github.com/reflexstream/reflex-layer/spi/backend"
)

type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Healthy      State = "healthy"
	Degraded     State = "degraded"
	Failed       State = "failed"
)

// Status is a snapshot of the connection health. Reads are lock-free; only
// the manager mutates the underlying state.
type Status struct {
	State               State
	LastHealthCheck     time.Time
	ConsecutiveFailures int
	CurrentBackoffDelay time.Duration
}

// Manager owns the single logical connection to the remote backend for the
// process lifetime. Exactly one instance exists per target backend; all
// components receive the shared instance, none construct their own.
type Manager interface {
	// Connect validates the configuration (credential reference, target
	// identifier) before any network attempt, then establishes the session
	// and starts the health monitor.
	Connect(
		ctx context.Context,
	) error
	// EnsureConnected returns immediately when healthy; otherwise it
	// enqueues a reconnect attempt and returns the current status without
	// waiting for the attempt to finish.
	EnsureConnected(
		ctx context.Context,
	) (Status, error)
	// AwaitConnected blocks until the connection is healthy or the context
	// expires; past the reconnect attempt cap it fails with a connection
	// error instead of blocking forever.
	AwaitConnected(
		ctx context.Context,
	) error
	Status() Status
	Session() (backend.Session, error)
	// Notifications delivers raw change notifications for all configured
	// source paths, in per-path order.
	Notifications() <-chan backend.RawNotification
	Stop() error
}
