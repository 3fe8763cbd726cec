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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/reflexstream/reflex-layer/internal/containers"
	"github.com/reflexstream/reflex-layer/internal/logging"
	"github.com/reflexstream/reflex-layer/internal/stats"
	"github.com/reflexstream/reflex-layer/internal/waiting"
	"github.com/reflexstream/reflex-layer/spi/backend"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	spiconnection "github.com/reflexstream/reflex-layer/spi/connection"
	"github.com/reflexstream/reflex-layer/spi/errs"
)

const (
	defaultBaseDelay            = time.Second * 2
	defaultMaxReconnectAttempts = 5
	defaultProbeInterval        = time.Second * 10
	defaultProbeTimeout         = time.Second * 5
)

type connectionManager struct {
	logger   *logging.Logger
	reporter *stats.Reporter

	connector     backend.Connector
	credentialRef string
	target        string
	paths         []string

	baseDelay     time.Duration
	maxAttempts   int
	probeInterval time.Duration
	probeTimeout  time.Duration

	// mutex guards session, status, and the backoff source; Status()
	// hands out copies, never the guarded value.
	mutex   sync.Mutex
	session backend.Session
	status  spiconnection.Status
	backoff *backoff.ExponentialBackOff

	awaitersMutex sync.Mutex
	awaiters      []chan error

	arrivalMutex   sync.Mutex
	arrivalMarkers map[string]uint64

	notifications   *containers.UnboundedChannel[backend.RawNotification]
	pumps           sync.WaitGroup
	reconnects      chan struct{}
	shutdownAwaiter *waiting.ShutdownAwaiter
	shutdownCtx     context.Context
	shutdownCancel  context.CancelFunc
	started         bool
}

// NewConnectionManager creates the single connection manager for the
// configured target backend. Construction happens once at startup through
// the wiring container; no other component opens backend sessions.
func NewConnectionManager(
	c *spiconfig.Config, connector backend.Connector, statsService *stats.Service,
) (spiconnection.Manager, error) {

	logger, err := logging.NewLogger("ConnectionManager")
	if err != nil {
		return nil, err
	}

	baseDelay := spiconfig.GetOrDefault(c, spiconfig.PropertyConnectionBaseDelay, defaultBaseDelay)
	maxAttempts := spiconfig.GetOrDefault(c, spiconfig.PropertyConnectionMaxAttempts, defaultMaxReconnectAttempts)
	probeInterval := spiconfig.GetOrDefault(c, spiconfig.PropertyConnectionProbeInterval, defaultProbeInterval)
	probeTimeout := spiconfig.GetOrDefault(c, spiconfig.PropertyConnectionProbeTimeout, defaultProbeTimeout)
	if probeTimeout >= probeInterval {
		// A hung probe must never starve the next scheduled probe
		probeTimeout = probeInterval / 2
	}

	return &connectionManager{
		logger:          logger,
		reporter:        statsService.NewReporter("connection"),
		connector:       connector,
		credentialRef:   c.Backend.CredentialRef,
		target:          c.Backend.Target,
		paths:           c.Backend.Paths,
		baseDelay:       baseDelay,
		maxAttempts:     maxAttempts,
		probeInterval:   probeInterval,
		probeTimeout:    probeTimeout,
		status:          spiconnection.Status{State: spiconnection.Disconnected},
		backoff:         newBackoffSource(baseDelay, maxAttempts),
		arrivalMarkers:  make(map[string]uint64),
		notifications:   containers.MakeUnboundedChannel[backend.RawNotification](128),
		reconnects:      make(chan struct{}, 1),
		shutdownAwaiter: waiting.NewShutdownAwaiter(),
	}, nil
}

func newBackoffSource(
	baseDelay time.Duration, maxAttempts int,
) *backoff.ExponentialBackOff {

	source := backoff.NewExponentialBackOff()
	source.InitialInterval = baseDelay
	source.Multiplier = 2
	source.RandomizationFactor = 0
	source.MaxInterval = baseDelay << (maxAttempts - 1)
	source.MaxElapsedTime = 0
	source.Reset()
	return source
}

func (cm *connectionManager) Connect(
	ctx context.Context,
) error {

	if cm.credentialRef == "" {
		return errs.Connection(
			"missing credential reference in backend configuration", nil, cm.credentialRef,
		)
	}
	if cm.target == "" {
		return errs.Connection(
			"missing target identifier in backend configuration", nil, cm.credentialRef,
		)
	}

	cm.mutex.Lock()
	if cm.started {
		cm.mutex.Unlock()
		return errs.Connection("connection manager already started", nil, cm.credentialRef)
	}
	cm.started = true
	cm.status.State = spiconnection.Connecting
	cm.mutex.Unlock()

	cm.shutdownCtx, cm.shutdownCancel = context.WithCancel(context.Background())

	if err := cm.openSession(ctx); err != nil {
		cm.recordFailure()
		cm.scheduleReconnect()
		cm.startBackgroundTasks()
		return errs.Connection("initial connection attempt failed", err, cm.credentialRef)
	}

	cm.startBackgroundTasks()
	return nil
}

func (cm *connectionManager) startBackgroundTasks() {
	go cm.healthMonitor()
	go cm.reconnectWorker()
}

func (cm *connectionManager) EnsureConnected(
	_ context.Context,
) (spiconnection.Status, error) {

	status := cm.Status()
	if status.State == spiconnection.Healthy {
		return status, nil
	}

	// Enqueue only; never wait for the attempt itself
	cm.scheduleReconnectNow()
	return cm.Status(), nil
}

func (cm *connectionManager) AwaitConnected(
	ctx context.Context,
) error {

	status := cm.Status()
	if status.State == spiconnection.Healthy {
		return nil
	}
	if status.State == spiconnection.Failed {
		return errs.Connection(
			"reconnect attempt cap exceeded, connection is failed", nil, cm.credentialRef,
		)
	}

	awaiter := make(chan error, 1)
	cm.awaitersMutex.Lock()
	cm.awaiters = append(cm.awaiters, awaiter)
	cm.awaitersMutex.Unlock()

	cm.scheduleReconnectNow()

	select {
	case err := <-awaiter:
		return err
	case <-ctx.Done():
		return errs.Connection("timed out awaiting connectivity", ctx.Err(), cm.credentialRef)
	}
}

func (cm *connectionManager) Status() spiconnection.Status {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	return cm.status
}

func (cm *connectionManager) Session() (backend.Session, error) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if cm.session == nil {
		return nil, errs.Connection("no live backend session", nil, cm.credentialRef)
	}
	return cm.session, nil
}

func (cm *connectionManager) Notifications() <-chan backend.RawNotification {
	return cm.notifications.ReceiveChannel()
}

func (cm *connectionManager) Stop() error {
	cm.shutdownAwaiter.SignalShutdown()
	if cm.shutdownCancel != nil {
		cm.shutdownCancel()
	}

	cm.mutex.Lock()
	session := cm.session
	cm.session = nil
	cm.status.State = spiconnection.Disconnected
	cm.mutex.Unlock()

	cm.notifyAwaiters(errs.Connection("connection manager stopped", nil, cm.credentialRef))

	if session != nil {
		if err := session.Close(); err != nil {
			cm.logger.Warnf("Failed to close backend session => %s", err.Error())
		}
	}

	// Pumps may still hold dequeued notifications; the channel must not
	// close underneath them
	cm.pumps.Wait()
	cm.notifications.Close()
	return nil
}

func (cm *connectionManager) healthMonitor() {
	ticker := time.NewTicker(cm.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.shutdownAwaiter.AwaitShutdownChan():
			cm.shutdownAwaiter.SignalDone()
			return
		case <-ticker.C:
			cm.probe()
		}
	}
}

func (cm *connectionManager) probe() {
	session, err := cm.Session()
	if err != nil {
		cm.handleProbeFailure(err)
		return
	}

	ctx, cancel := context.WithTimeout(cm.shutdownCtx, cm.probeTimeout)
	defer cancel()

	start := time.Now()
	if err := session.Probe(ctx); err != nil {
		cm.reporter.Incr("probe.failure")
		cm.handleProbeFailure(err)
		return
	}
	cm.reporter.Observe("probe.duration", time.Since(start))
	cm.handleProbeSuccess()
}

func (cm *connectionManager) handleProbeSuccess() {
	cm.mutex.Lock()
	recovered := cm.status.State != spiconnection.Healthy
	cm.status.State = spiconnection.Healthy
	cm.status.LastHealthCheck = time.Now()
	cm.status.ConsecutiveFailures = 0
	cm.status.CurrentBackoffDelay = 0
	cm.backoff.Reset()
	cm.mutex.Unlock()

	if recovered {
		cm.logger.Infof("Backend connection recovered, target '%s'", cm.target)
	}
	cm.notifyAwaiters(nil)
}

func (cm *connectionManager) handleProbeFailure(
	cause error,
) {

	delay, failed := cm.recordFailure()
	if failed {
		cm.logger.Errorf(
			"Backend probe failed (%s), attempt cap exceeded, probing continues every %s",
			cause.Error(), delay.String(),
		)
		cm.notifyAwaiters(errs.Connection(
			"reconnect attempt cap exceeded, connection is failed", cause, cm.credentialRef,
		))
	} else {
		cm.logger.Warnf(
			"Backend probe failed (%s), reconnecting in %s", cause.Error(), delay.String(),
		)
	}

	go func() {
		select {
		case <-time.After(delay):
			cm.scheduleReconnectNow()
		case <-cm.shutdownCtx.Done():
		}
	}()
}

// recordFailure advances the failure count and the backoff delay. The
// returned bool reports whether the attempt cap is reached; from the cap
// on the delay no longer grows.
func (cm *connectionManager) recordFailure() (time.Duration, bool) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.status.ConsecutiveFailures++
	cm.status.CurrentBackoffDelay = cm.backoff.NextBackOff()
	if cm.status.ConsecutiveFailures >= cm.maxAttempts {
		cm.status.State = spiconnection.Failed
	} else {
		cm.status.State = spiconnection.Degraded
	}
	return cm.status.CurrentBackoffDelay, cm.status.State == spiconnection.Failed
}

func (cm *connectionManager) scheduleReconnect() {
	go func() {
		delay := cm.Status().CurrentBackoffDelay
		select {
		case <-time.After(delay):
			cm.scheduleReconnectNow()
		case <-cm.shutdownCtx.Done():
		}
	}()
}

func (cm *connectionManager) scheduleReconnectNow() {
	select {
	case cm.reconnects <- struct{}{}:
	default:
		// Reconnect already pending
	}
}

func (cm *connectionManager) reconnectWorker() {
	for {
		select {
		case <-cm.shutdownCtx.Done():
			return
		case <-cm.reconnects:
			if cm.Status().State == spiconnection.Healthy {
				continue
			}
			if err := cm.openSession(cm.shutdownCtx); err != nil {
				cm.reporter.Incr("reconnect.failure")
				cm.handleProbeFailure(err)
				continue
			}
			cm.reporter.Incr("reconnect.success")
			cm.handleProbeSuccess()
		}
	}
}

func (cm *connectionManager) openSession(
	ctx context.Context,
) error {

	session, err := cm.connector.Open(ctx, cm.credentialRef, cm.target)
	if err != nil {
		return err
	}

	cm.mutex.Lock()
	old := cm.session
	cm.session = session
	cm.status.State = spiconnection.Healthy
	cm.status.LastHealthCheck = time.Now()
	cm.status.ConsecutiveFailures = 0
	cm.status.CurrentBackoffDelay = 0
	cm.backoff.Reset()
	cm.mutex.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			cm.logger.Debugf("Closing stale backend session => %s", err.Error())
		}
	}

	for _, path := range cm.paths {
		if err := cm.startPathPump(ctx, session, path); err != nil {
			return err
		}
	}
	return nil
}

// startPathPump forwards one source path's change stream into the shared
// notification channel. One pump per path keeps per-path order intact; no
// ordering exists across paths. The pump dies with its session and is
// restarted on the next successful reconnect.
func (cm *connectionManager) startPathPump(
	ctx context.Context, session backend.Session, path string,
) error {

	changes, err := session.SubscribeChanges(ctx, path)
	if err != nil {
		return err
	}

	cm.pumps.Add(1)
	go func() {
		defer cm.pumps.Done()
		for notification := range changes {
			if notification.SequenceMarker == 0 {
				notification.SequenceMarker = cm.nextArrivalMarker(notification.Path)
			}
			cm.reporter.Incr("notifications.received")
			cm.notifications.Send(notification)
		}
	}()
	return nil
}

// nextArrivalMarker assigns arrival order when the backend provides no
// sequence marker. Counters survive reconnects so markers keep increasing
// for the lifetime of the process.
func (cm *connectionManager) nextArrivalMarker(
	path string,
) uint64 {

	cm.arrivalMutex.Lock()
	defer cm.arrivalMutex.Unlock()
	cm.arrivalMarkers[path]++
	return cm.arrivalMarkers[path]
}

func (cm *connectionManager) notifyAwaiters(
	err error,
) {

	cm.awaitersMutex.Lock()
	awaiters := cm.awaiters
	cm.awaiters = nil
	cm.awaitersMutex.Unlock()

	for _, awaiter := range awaiters {
		awaiter <- err
	}
}
