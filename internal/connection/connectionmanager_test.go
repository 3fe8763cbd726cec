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
	"sync/atomic"
	"testing"
	"time"

	"github.com/reflexstream/reflex-layer/internal/stats"
	"github.com/reflexstream/reflex-layer/spi/backend"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	spiconnection "github.com/reflexstream/reflex-layer/spi/connection"
	"github.com/reflexstream/reflex-layer/spi/errs"
	"github.com/reflexstream/reflex-layer/spi/schema"
	"github.com/stretchr/testify/assert"
)

type fakeSession struct {
	changes   map[string]chan backend.RawNotification
	probeErr  error
	documents map[string]backend.Document
	closed    atomic.Bool
}

func newFakeSession(paths ...string) *fakeSession {
	changes := make(map[string]chan backend.RawNotification)
	for _, path := range paths {
		changes[path] = make(chan backend.RawNotification, 16)
	}
	return &fakeSession{
		changes:   changes,
		documents: make(map[string]backend.Document),
	}
}

func (f *fakeSession) Probe(
	_ context.Context,
) error {

	return f.probeErr
}

func (f *fakeSession) SubscribeChanges(
	_ context.Context, path string,
) (<-chan backend.RawNotification, error) {

	return f.changes[path], nil
}

func (f *fakeSession) ReadDocument(
	_ context.Context, path string,
) (backend.Document, error) {

	document, present := f.documents[path]
	if !present {
		return nil, backend.ErrNotFound
	}
	return document, nil
}

func (f *fakeSession) WriteDocument(
	_ context.Context, path string, value backend.Document,
) error {

	f.documents[path] = value
	return nil
}

func (f *fakeSession) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		for _, changes := range f.changes {
			close(changes)
		}
	}
	return nil
}

type fakeConnector struct {
	session  *fakeSession
	openErr  error
	attempts atomic.Int32
}

func (f *fakeConnector) Open(
	_ context.Context, _, _ string,
) (backend.Session, error) {

	f.attempts.Add(1)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.session, nil
}

func testConfig(paths ...string) *spiconfig.Config {
	return &spiconfig.Config{
		Backend: spiconfig.BackendConfig{
			Type:          spiconfig.MemoryBackend,
			CredentialRef: "env:BACKEND_TOKEN",
			Target:        "test-target",
			Paths:         paths,
		},
	}
}

func newTestManager(
	t *testing.T, config *spiconfig.Config, connector backend.Connector,
) *connectionManager {

	manager, err := NewConnectionManager(config, connector, stats.NewStatsService(config))
	assert.NoError(t, err)
	return manager.(*connectionManager)
}

func Test_Connect_Validates_Before_Network(t *testing.T) {
	connector := &fakeConnector{session: newFakeSession()}

	config := testConfig()
	config.Backend.CredentialRef = ""
	manager := newTestManager(t, config, connector)

	err := manager.Connect(context.Background())
	assert.Error(t, err)
	assert.True(t, errs.IsConnection(err))
	assert.Equal(t, int32(0), connector.attempts.Load(), "no network attempt expected")

	config = testConfig()
	config.Backend.Target = ""
	manager = newTestManager(t, config, connector)

	err = manager.Connect(context.Background())
	assert.Error(t, err)
	assert.True(t, errs.IsConnection(err))
	assert.Equal(t, int32(0), connector.attempts.Load(), "no network attempt expected")
}

func Test_Connect_Rejects_Double_Start(t *testing.T) {
	connector := &fakeConnector{session: newFakeSession()}
	manager := newTestManager(t, testConfig(), connector)

	assert.NoError(t, manager.Connect(context.Background()))
	defer manager.Stop()

	err := manager.Connect(context.Background())
	assert.Error(t, err)
	assert.True(t, errs.IsConnection(err))
}

func Test_Backoff_Delay_Sequence(t *testing.T) {
	connector := &fakeConnector{session: newFakeSession()}
	manager := newTestManager(t, testConfig(), connector)

	expected := []time.Duration{
		time.Second * 2,
		time.Second * 4,
		time.Second * 8,
		time.Second * 16,
	}

	for i, expectedDelay := range expected {
		delay, failed := manager.recordFailure()
		assert.Equal(t, expectedDelay, delay, "attempt %d", i+1)
		assert.False(t, failed, "attempt %d must not reach the cap", i+1)
		assert.Equal(t, spiconnection.Degraded, manager.Status().State)
	}

	// The fifth failed attempt reaches the cap and flips the state to failed
	delay, failed := manager.recordFailure()
	assert.Equal(t, time.Second*32, delay)
	assert.True(t, failed)
	assert.Equal(t, spiconnection.Failed, manager.Status().State)

	// Past the cap the delay stays capped, but probing never stops
	for i := 0; i < 3; i++ {
		delay, failed := manager.recordFailure()
		assert.Equal(t, time.Second*32, delay)
		assert.True(t, failed)
		assert.Equal(t, spiconnection.Failed, manager.Status().State)
	}
}

func Test_Backoff_Resets_On_Success(t *testing.T) {
	connector := &fakeConnector{session: newFakeSession()}
	manager := newTestManager(t, testConfig(), connector)

	manager.recordFailure()
	manager.recordFailure()
	assert.Equal(t, 2, manager.Status().ConsecutiveFailures)

	manager.handleProbeSuccess()
	assert.Equal(t, spiconnection.Healthy, manager.Status().State)
	assert.Equal(t, 0, manager.Status().ConsecutiveFailures)

	delay, _ := manager.recordFailure()
	assert.Equal(t, time.Second*2, delay, "backoff must restart from the base delay")
}

func Test_Notifications_Arrival_Markers(t *testing.T) {
	session := newFakeSession("orders/incoming")
	connector := &fakeConnector{session: session}
	manager := newTestManager(t, testConfig("orders/incoming"), connector)

	assert.NoError(t, manager.Connect(context.Background()))
	defer manager.Stop()

	for i := 0; i < 3; i++ {
		session.changes["orders/incoming"] <- backend.RawNotification{
			Path: "orders/incoming",
			Data: schema.Struct{"type": "order.created"},
		}
	}

	for i := uint64(1); i <= 3; i++ {
		select {
		case notification := <-manager.Notifications():
			assert.Equal(t, i, notification.SequenceMarker)
			assert.Equal(t, "orders/incoming", notification.Path)
		case <-time.After(time.Second * 5):
			t.Fatalf("timed out waiting for notification %d", i)
		}
	}
}

func Test_Notifications_Preserve_Backend_Markers(t *testing.T) {
	session := newFakeSession("orders/incoming")
	connector := &fakeConnector{session: session}
	manager := newTestManager(t, testConfig("orders/incoming"), connector)

	assert.NoError(t, manager.Connect(context.Background()))
	defer manager.Stop()

	session.changes["orders/incoming"] <- backend.RawNotification{
		Path:           "orders/incoming",
		Data:           schema.Struct{"type": "order.created"},
		SequenceMarker: 4711,
	}

	select {
	case notification := <-manager.Notifications():
		assert.Equal(t, uint64(4711), notification.SequenceMarker)
	case <-time.After(time.Second * 5):
		t.Fatal("timed out waiting for notification")
	}
}

func Test_Stop_Waits_For_Inflight_Notifications(t *testing.T) {
	session := newFakeSession("orders/incoming")
	connector := &fakeConnector{session: session}
	manager := newTestManager(t, testConfig("orders/incoming"), connector)

	assert.NoError(t, manager.Connect(context.Background()))

	const count = 1000
	for i := 0; i < count; i++ {
		session.changes["orders/incoming"] <- backend.RawNotification{
			Path: "orders/incoming",
			Data: schema.Struct{"type": "order.created"},
		}
	}

	// Stop must let the path pumps drain before closing the notification
	// channel; closing it underneath a pump would panic the process
	assert.NoError(t, manager.Stop())

	received := 0
	for range manager.Notifications() {
		received++
	}
	assert.Equal(t, count, received)
}

func Test_Connect_Initial_Failure_Recovers_In_Background(t *testing.T) {
	connector := &fakeConnector{
		session: newFakeSession(),
		openErr: errs.General("test", "backend down"),
	}
	manager := newTestManager(t, testConfig(), connector)

	err := manager.Connect(context.Background())
	assert.Error(t, err)
	assert.True(t, errs.IsConnection(err))
	defer manager.Stop()

	status := manager.Status()
	assert.Equal(t, spiconnection.Degraded, status.State)
	assert.Equal(t, 1, status.ConsecutiveFailures)
	assert.Equal(t, time.Second*2, status.CurrentBackoffDelay)
}

func Test_EnsureConnected_Does_Not_Block(t *testing.T) {
	connector := &fakeConnector{
		session: newFakeSession(),
		openErr: errs.General("test", "backend down"),
	}
	manager := newTestManager(t, testConfig(), connector)

	_ = manager.Connect(context.Background())
	defer manager.Stop()

	start := time.Now()
	status, err := manager.EnsureConnected(context.Background())
	assert.NoError(t, err)
	assert.NotEqual(t, spiconnection.Healthy, status.State)
	assert.Less(t, time.Since(start), time.Second, "EnsureConnected must return immediately")
}

func Test_AwaitConnected_Fails_Fast_When_Failed(t *testing.T) {
	connector := &fakeConnector{session: newFakeSession()}
	manager := newTestManager(t, testConfig(), connector)

	for i := 0; i < 5; i++ {
		manager.recordFailure()
	}
	assert.Equal(t, spiconnection.Failed, manager.Status().State)

	err := manager.AwaitConnected(context.Background())
	assert.Error(t, err)
	assert.True(t, errs.IsConnection(err))
}

func Test_AwaitConnected_Honors_Context(t *testing.T) {
	connector := &fakeConnector{
		session: newFakeSession(),
		openErr: errs.General("test", "backend down"),
	}
	manager := newTestManager(t, testConfig(), connector)

	_ = manager.Connect(context.Background())
	defer manager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*100)
	defer cancel()

	err := manager.AwaitConnected(ctx)
	assert.Error(t, err)
	assert.True(t, errs.IsConnection(err))
}

func Test_AwaitConnected_Unblocks_On_Recovery(t *testing.T) {
	session := newFakeSession()
	connector := &fakeConnector{
		session: session,
		openErr: errs.General("test", "backend down"),
	}
	manager := newTestManager(t, testConfig(), connector)

	_ = manager.Connect(context.Background())
	defer manager.Stop()

	// Backend comes back before the awaiter's reconnect attempt runs
	connector.openErr = nil

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	assert.NoError(t, manager.AwaitConnected(ctx))
	assert.Equal(t, spiconnection.Healthy, manager.Status().State)
}

func Test_Session_Unavailable_Before_Connect(t *testing.T) {
	connector := &fakeConnector{session: newFakeSession()}
	manager := newTestManager(t, testConfig(), connector)

	_, err := manager.Session()
	assert.Error(t, err)
	assert.True(t, errs.IsConnection(err))
}
