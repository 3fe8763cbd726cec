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

package sysconfig

import (
	"github.com/reflexstream/reflex-layer/internal/egress"
	"github.com/reflexstream/reflex-layer/internal/stats"
	"github.com/reflexstream/reflex-layer/spi/backend"
	"github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/connection"
	spiegress "github.com/reflexstream/reflex-layer/spi/egress"
	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/statestorage"
	"github.com/reflexstream/reflex-layer/spi/view"
)

type BackendConnectorProvider = func(config *config.Config) (backend.Connector, error)

type ConnectionManagerProvider = func(
	config *config.Config, connector backend.Connector, statsService *stats.Service,
) (connection.Manager, error)

type EventMeshProvider = func(
	config *config.Config, statsService *stats.Service,
) (eventmesh.Mesh, error)

type ViewManagerProvider = func(
	config *config.Config, connectionManager connection.Manager,
	stateManager statestorage.Manager, statsService *stats.Service,
) (view.Manager, error)

type EventForwarderProvider = func(
	config *config.Config, mesh eventmesh.Mesh, sink spiegress.Sink, statsService *stats.Service,
) (*egress.EventForwarder, error)

type StateStorageProvider = func(config *config.Config) (statestorage.Storage, error)
