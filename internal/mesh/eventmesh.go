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

package mesh

import (
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/reflexstream/reflex-layer/internal/logging"
	"github.com/reflexstream/reflex-layer/internal/stats"
	"github.com/reflexstream/reflex-layer/spi/backend"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/errs"
	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

type subscription struct {
	handle   eventmesh.SubscriptionHandle
	selector string
	handler  eventmesh.Handler
	filter   *eventFilter
}

type eventMesh struct {
	logger   *logging.Logger
	reporter *stats.Reporter

	schemaRegistry schema.Registry

	// mutex guards the subscription list; dispatch works on a snapshot so
	// handlers can subscribe or unsubscribe without deadlocking.
	mutex         sync.RWMutex
	subscriptions []*subscription
}

// NewEventMesh creates the event mesh and installs all schema rules declared
// in the configuration.
func NewEventMesh(
	c *spiconfig.Config, statsService *stats.Service,
) (eventmesh.Mesh, error) {

	logger, err := logging.NewLogger("EventMesh")
	if err != nil {
		return nil, err
	}

	mesh := &eventMesh{
		logger:         logger,
		reporter:       statsService.NewReporter("mesh"),
		schemaRegistry: schema.NewRegistry(),
		subscriptions:  make([]*subscription, 0),
	}

	for eventType, ruleConfig := range c.Mesh.Schemas {
		rule, err := schema.RuleFromDefinition(ruleConfig.Required, ruleConfig.Types)
		if err != nil {
			return nil, err
		}
		mesh.RegisterSchema(eventType, rule)
	}
	return mesh, nil
}

func (em *eventMesh) RegisterSchema(
	eventType string, rule schema.Rule,
) {

	em.schemaRegistry.RegisterRule(eventType, rule)
	em.logger.Debugf("Registered schema rule for event type '%s'", eventType)
}

func (em *eventMesh) Subscribe(
	selector string, handler eventmesh.Handler, options ...eventmesh.SubscribeOption,
) (eventmesh.SubscriptionHandle, error) {

	opts := &eventmesh.SubscribeOptions{DefaultValue: true}
	for _, option := range options {
		option(opts)
	}

	var filter *eventFilter
	if opts.Condition != "" {
		f, err := newEventFilter(opts.Condition, opts.DefaultValue)
		if err != nil {
			return "", errs.General(
				errs.ComponentEventMesh, "invalid subscription condition: %s", err.Error(),
			)
		}
		filter = f
	}

	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", errs.General(errs.ComponentEventMesh, "failed to generate handle: %s", err.Error())
	}
	handle := eventmesh.SubscriptionHandle(id)

	em.mutex.Lock()
	defer em.mutex.Unlock()
	em.subscriptions = append(em.subscriptions, &subscription{
		handle:   handle,
		selector: selector,
		handler:  handler,
		filter:   filter,
	})
	return handle, nil
}

func (em *eventMesh) Unsubscribe(
	handle eventmesh.SubscriptionHandle,
) bool {

	em.mutex.Lock()
	defer em.mutex.Unlock()
	for i, s := range em.subscriptions {
		if s.handle == handle {
			em.subscriptions = append(em.subscriptions[:i], em.subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

func (em *eventMesh) Ingest(
	notification backend.RawNotification,
) error {

	event, err := em.parse(notification)
	if err != nil {
		em.reporter.Incr("ingest.malformed")
		return err
	}

	if rule, present := em.schemaRegistry.Rule(event.Type); present {
		if violations := rule.Validate(event.Payload); len(violations) > 0 {
			em.reporter.Incr("ingest.rejected")
			return errs.Validation(
				"event failed schema validation", event.Payload, rule, violations,
			)
		}
	}

	em.reporter.Incr("ingest.accepted")
	em.dispatch(event)
	return nil
}

// parse turns a raw notification into an event skeleton. Structurally
// malformed input fails before any schema is consulted.
func (em *eventMesh) parse(
	notification backend.RawNotification,
) (eventmesh.Event, error) {

	violations := make(map[string]string)

	eventType, ok := notification.Data["type"].(string)
	if !ok || eventType == "" {
		violations["type"] = errs.ViolationMissingField
	}

	var payload schema.Struct
	switch p := notification.Data["payload"].(type) {
	case schema.Struct:
		payload = p
	default:
		violations["payload"] = errs.ViolationMissingField
	}

	if len(violations) > 0 {
		return eventmesh.Event{}, errs.Validation(
			"malformed change notification", notification.Data, nil, violations,
		)
	}

	return eventmesh.Event{
		Type:           eventType,
		Payload:        payload,
		SourcePath:     notification.Path,
		SequenceMarker: notification.SequenceMarker,
		Timestamp:      time.Now(),
	}, nil
}

// dispatch delivers the event to every matching subscription in registration
// order. A failing handler is reported and skipped; it never blocks the
// remaining handlers of the same event.
func (em *eventMesh) dispatch(
	event eventmesh.Event,
) {

	em.mutex.RLock()
	subscriptions := make([]*subscription, len(em.subscriptions))
	copy(subscriptions, em.subscriptions)
	em.mutex.RUnlock()

	for _, s := range subscriptions {
		if s.selector != event.Type && s.selector != eventmesh.Wildcard {
			continue
		}

		if s.filter != nil {
			success, err := s.filter.evaluate(event)
			if err != nil {
				em.logger.Errorf(
					"Subscription filter failed for event type '%s' => %s",
					event.Type, err.Error(),
				)
				continue
			}
			if !success {
				continue
			}
		}

		if err := s.handler.OnEvent(event); err != nil {
			if errs.IsStaleOrDuplicate(err) {
				// Expected under redelivery, recovered locally
				em.logger.Debugf(
					"Rejected duplicate event, type '%s', marker %d",
					event.Type, event.SequenceMarker,
				)
				continue
			}
			em.reporter.Incr("dispatch.failure")
			em.logger.Errorf(
				"Subscriber failed for event type '%s' => %s", event.Type, err.Error(),
			)
		}
	}
}
