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

package egress

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/reflexstream/reflex-layer/internal/logging"
	"github.com/reflexstream/reflex-layer/internal/stats"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	spiegress "github.com/reflexstream/reflex-layer/spi/egress"
	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

const defaultTopicPrefix = "reflex."

// EventForwarder bridges the event mesh to the configured egress sink. It
// subscribes with the selectors and filter conditions declared in the
// configuration, falling back to a wildcard subscription when none are
// declared, and emits every matching event's envelope downstream.
type EventForwarder struct {
	logger   *logging.Logger
	reporter *stats.Reporter

	mesh        eventmesh.Mesh
	sink        spiegress.Sink
	backOff     backoff.BackOff
	topicPrefix string

	subscriptions map[string]spiconfig.SubscriptionConfig
	handles       []eventmesh.SubscriptionHandle
}

func NewEventForwarder(
	c *spiconfig.Config, mesh eventmesh.Mesh, sink spiegress.Sink, statsService *stats.Service,
) (*EventForwarder, error) {

	logger, err := logging.NewLogger("EventForwarder")
	if err != nil {
		return nil, err
	}

	return &EventForwarder{
		logger:        logger,
		reporter:      statsService.NewReporter("egress"),
		mesh:          mesh,
		sink:          sink,
		backOff:       backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8),
		topicPrefix:   spiconfig.GetOrDefault(c, spiconfig.PropertyEgressTopicPrefix, defaultTopicPrefix),
		subscriptions: c.Mesh.Subscriptions,
	}, nil
}

func (ef *EventForwarder) Start() error {
	if err := ef.sink.Start(); err != nil {
		return err
	}

	if len(ef.subscriptions) == 0 {
		handle, err := ef.mesh.Subscribe(eventmesh.Wildcard, eventmesh.HandlerFunc(ef.forward))
		if err != nil {
			return err
		}
		ef.handles = append(ef.handles, handle)
		return nil
	}

	for name, subscription := range ef.subscriptions {
		options := make([]eventmesh.SubscribeOption, 0)
		if subscription.Condition != "" {
			defaultValue := true
			if subscription.DefaultValue != nil {
				defaultValue = *subscription.DefaultValue
			}
			options = append(options, eventmesh.WithCondition(subscription.Condition, defaultValue))
		}

		selector := subscription.Selector
		if selector == "" {
			selector = eventmesh.Wildcard
		}

		handle, err := ef.mesh.Subscribe(selector, eventmesh.HandlerFunc(ef.forward), options...)
		if err != nil {
			return err
		}
		ef.logger.Debugf("Forwarding subscription '%s' bound to selector '%s'", name, selector)
		ef.handles = append(ef.handles, handle)
	}
	return nil
}

func (ef *EventForwarder) Stop() error {
	for _, handle := range ef.handles {
		ef.mesh.Unsubscribe(handle)
	}
	ef.handles = nil
	return ef.sink.Stop()
}

func (ef *EventForwarder) forward(
	event eventmesh.Event,
) error {

	topicName := ef.topicPrefix + event.Type
	key := schema.Struct{
		"source": event.SourcePath,
		"seq":    event.SequenceMarker,
	}
	envelope := event.Envelope()

	// Retryable operation
	operation := func() error {
		ef.logger.Tracef("Publishing event: %+v", envelope)
		return ef.sink.Emit(event.Timestamp, topicName, key, envelope)
	}

	if err := backoff.Retry(operation, ef.backOff); err != nil {
		ef.reporter.Incr("emit.failure")
		return err
	}
	ef.reporter.Incr("emit.success")
	return nil
}
