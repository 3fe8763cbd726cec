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
	"github.com/reflexstream/reflex-layer/internal/connection"
	"github.com/reflexstream/reflex-layer/internal/egress"
	"github.com/reflexstream/reflex-layer/internal/mesh"
	"github.com/reflexstream/reflex-layer/internal/stats"
	"github.com/reflexstream/reflex-layer/internal/views"
	"github.com/reflexstream/reflex-layer/spi/backend"
	"github.com/reflexstream/reflex-layer/spi/config"
	spiegress "github.com/reflexstream/reflex-layer/spi/egress"
	"github.com/reflexstream/reflex-layer/spi/statestorage"
	"github.com/reflexstream/reflex-layer/spi/wiring"

	_ "github.com/reflexstream/reflex-layer/internal/backends/memory"
	_ "github.com/reflexstream/reflex-layer/internal/backends/redis"
	_ "github.com/reflexstream/reflex-layer/internal/egress/awssqs"
	_ "github.com/reflexstream/reflex-layer/internal/egress/kafka"
	_ "github.com/reflexstream/reflex-layer/internal/egress/nats"
	_ "github.com/reflexstream/reflex-layer/internal/egress/redis"
	_ "github.com/reflexstream/reflex-layer/internal/egress/stdout"
	_ "github.com/reflexstream/reflex-layer/internal/statestorages/dummy"
	_ "github.com/reflexstream/reflex-layer/internal/statestorages/file"
)

var StaticModule = wiring.DefineModule(
	"Static", func(module wiring.Module) {
		module.Provide(stats.NewStatsService)
		module.Provide(statestorage.NewStateStorageManager)
		module.Provide(connection.NewConnectionManager)
		module.Provide(mesh.NewEventMesh)
		module.Provide(views.NewViewManager)
		module.Provide(egress.NewEventForwarder)
	},
)

var DynamicModule = wiring.DefineModule(
	"Dynamic",
	func(module wiring.Module) {
		module.Provide(func(c *config.Config) (statestorage.Storage, error) {
			name := config.GetOrDefault(c, config.PropertyStateStorageType, config.NoneStorage)
			return statestorage.NewStateStorage(name, c)
		})

		module.Provide(func(c *config.Config) (backend.Connector, error) {
			name := config.GetOrDefault(c, config.PropertyBackendType, config.MemoryBackend)
			return backend.NewConnector(name, c)
		})

		module.Provide(func(c *config.Config) (spiegress.Sink, error) {
			name := config.GetOrDefault(c, config.PropertyEgressType, config.Stdout)
			return spiegress.NewSink(name, c)
		})
	},
)
