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

package schema

import (
	"sync"
)

type Registry interface {
	// RegisterRule installs or replaces the rule for an event type. Later
	// events of that type are validated against the newest rule only.
	RegisterRule(
		eventType string, rule Rule,
	)
	Rule(
		eventType string,
	) (rule Rule, present bool)
	EventTypes() []string
}

type registry struct {
	mutex sync.RWMutex
	rules map[string]Rule
}

func NewRegistry() Registry {
	return &registry{
		rules: make(map[string]Rule),
	}
}

func (r *registry) RegisterRule(
	eventType string, rule Rule,
) {

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.rules[eventType] = rule
}

func (r *registry) Rule(
	eventType string,
) (Rule, bool) {

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	rule, present := r.rules[eventType]
	return rule, present
}

func (r *registry) EventTypes() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	eventTypes := make([]string, 0, len(r.rules))
	for eventType := range r.rules {
		eventTypes = append(eventTypes, eventType)
	}
	return eventTypes
}
