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

package internal

import (
	"context"

	"github.com/reflexstream/reflex-layer/internal/egress"
	"github.com/reflexstream/reflex-layer/internal/logging"
	"github.com/reflexstream/reflex-layer/internal/stats"
	"github.com/reflexstream/reflex-layer/internal/sysconfig"
	"github.com/reflexstream/reflex-layer/internal/waiting"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	spiconnection "github.com/reflexstream/reflex-layer/spi/connection"
	"github.com/reflexstream/reflex-layer/spi/errs"
	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/statestorage"
	"github.com/reflexstream/reflex-layer/spi/view"
	"github.com/reflexstream/reflex-layer/spi/wiring"
)

// ReflexLayer is the assembled system: one connection manager feeding the
// event mesh, the view manager subscribed to the mesh, and the egress
// forwarder emitting validated events downstream.
type ReflexLayer struct {
	logger *logging.Logger
	config *spiconfig.Config

	connectionManager spiconnection.Manager
	mesh              eventmesh.Mesh
	viewManager       view.Manager
	forwarder         *egress.EventForwarder
	stateManager      statestorage.Manager
	statsService      *stats.Service

	viewSubscription eventmesh.SubscriptionHandle
	ingestAwaiter    *waiting.ShutdownAwaiter
}

func NewReflexLayer(
	config *sysconfig.SystemConfig,
) (*ReflexLayer, error) {

	logger, err := logging.NewLogger("ReflexLayer")
	if err != nil {
		return nil, err
	}

	overridesModule := wiring.DefineModule(
		"Overrides", func(module wiring.Module) {
			module.Provide(func() *spiconfig.Config {
				return config.Config
			})
			module.MayProvide(config.BackendConnectorProvider)
			module.MayProvide(config.ConnectionManagerProvider)
			module.MayProvide(config.EventMeshProvider)
			module.MayProvide(config.ViewManagerProvider)
			module.MayProvide(config.EventForwarderProvider)
			module.MayProvide(config.SinkFactory)
			module.MayProvide(config.StateStorageProvider)
		},
	)

	// Overrides go last, registration is last wins
	container, err := wiring.NewContainer(StaticModule, DynamicModule, overridesModule)
	if err != nil {
		return nil, err
	}

	rl := &ReflexLayer{
		logger:        logger,
		config:        config.Config,
		ingestAwaiter: waiting.NewShutdownAwaiter(),
	}

	if err := container.Service(&rl.statsService); err != nil {
		return nil, err
	}
	if err := container.Service(&rl.stateManager); err != nil {
		return nil, err
	}
	if err := container.Service(&rl.connectionManager); err != nil {
		return nil, err
	}
	if err := container.Service(&rl.mesh); err != nil {
		return nil, err
	}
	if err := container.Service(&rl.viewManager); err != nil {
		return nil, err
	}
	if err := container.Service(&rl.forwarder); err != nil {
		return nil, err
	}
	return rl, nil
}

func (rl *ReflexLayer) Start(
	ctx context.Context,
) error {

	if err := rl.statsService.Start(); err != nil {
		return err
	}
	if err := rl.stateManager.Start(); err != nil {
		return err
	}
	if err := rl.viewManager.Start(); err != nil {
		return err
	}

	subscription, err := rl.mesh.Subscribe(
		eventmesh.Wildcard, eventmesh.HandlerFunc(rl.viewManager.OnEvent),
	)
	if err != nil {
		return err
	}
	rl.viewSubscription = subscription

	if err := rl.forwarder.Start(); err != nil {
		return err
	}

	if err := rl.connectionManager.Connect(ctx); err != nil {
		// Recovery runs in the background; only misconfiguration is fatal
		if status := rl.connectionManager.Status(); status.State == spiconnection.Disconnected {
			return err
		}
		rl.logger.Warnf("Starting without backend connectivity => %s", err.Error())
	}

	go rl.ingestLoop()
	return nil
}

func (rl *ReflexLayer) Stop() error {
	if err := rl.connectionManager.Stop(); err != nil {
		rl.logger.Warnf("Failed to stop connection manager => %s", err.Error())
	}
	if err := rl.ingestAwaiter.AwaitDone(); err != nil {
		rl.logger.Warnln("Failed to shutdown ingest loop in time")
	}

	rl.mesh.Unsubscribe(rl.viewSubscription)
	if err := rl.forwarder.Stop(); err != nil {
		rl.logger.Warnf("Failed to stop egress forwarder => %s", err.Error())
	}
	if err := rl.viewManager.Stop(); err != nil {
		rl.logger.Warnf("Failed to stop view manager => %s", err.Error())
	}
	if err := rl.stateManager.Stop(); err != nil {
		rl.logger.Warnf("Failed to stop state storage => %s", err.Error())
	}
	return rl.statsService.Stop()
}

// ingestLoop drains the connection manager's notification stream into the
// mesh. Validation failures are local to one event and never stop the loop.
func (rl *ReflexLayer) ingestLoop() {
	defer rl.ingestAwaiter.SignalDone()

	for notification := range rl.connectionManager.Notifications() {
		if err := rl.mesh.Ingest(notification); err != nil {
			if errs.IsValidation(err) {
				rl.logger.Warnf(
					"Rejected event from '%s' => %s, violations: %+v",
					notification.Path, err.Error(), errs.Violations(err),
				)
				continue
			}
			rl.logger.Errorf(
				"Failed to ingest notification from '%s' => %s",
				notification.Path, err.Error(),
			)
		}
	}
}
