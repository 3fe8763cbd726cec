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

package backend

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/reflexstream/reflex-layer/spi/config"
)

type Provider = func(config *config.Config) (Connector, error)

var backendRegistry *registry

func init() {
	backendRegistry = &registry{
		mutex:     sync.Mutex{},
		providers: make(map[config.BackendType]Provider),
	}
}

type registry struct {
	mutex     sync.Mutex
	providers map[config.BackendType]Provider
}

// RegisterBackend registers a config.BackendType to a Provider
// implementation which creates the Connector when requested
func RegisterBackend(
	name config.BackendType, provider Provider,
) bool {

	backendRegistry.mutex.Lock()
	defer backendRegistry.mutex.Unlock()
	if _, present := backendRegistry.providers[name]; !present {
		backendRegistry.providers[name] = provider
		return true
	}
	return false
}

// NewConnector instantiates a new instance of the requested
// Connector when available, otherwise returns an error.
func NewConnector(
	name config.BackendType, config *config.Config,
) (Connector, error) {

	backendRegistry.mutex.Lock()
	defer backendRegistry.mutex.Unlock()
	if p, present := backendRegistry.providers[name]; present {
		return p(config)
	}
	return nil, errors.Errorf("BackendType '%s' doesn't exist", name)
}
