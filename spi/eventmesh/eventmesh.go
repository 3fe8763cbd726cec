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

package eventmesh

import (
	"time"

	"github.com/reflexstream/reflex-layer/spi/backend"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event is an immutable, validated change record. Once routed it is either
// accepted or rejected, never re-validated.
type Event struct {
	Type           string
	Payload        schema.Struct
	SourcePath     string
	SequenceMarker uint64
	Timestamp      time.Time
}

// Field returns a payload field value, or nil when absent.
func (e Event) Field(
	name string,
) any {

	return e.Payload[name]
}

// Envelope renders the event in the wire shape used by egress sinks and
// backend persistence.
func (e Event) Envelope() schema.Struct {
	return schema.Struct{
		"type":    e.Type,
		"payload": e.Payload,
		"source":  e.SourcePath,
		"seq":     e.SequenceMarker,
		"ts":      e.Timestamp.UnixMilli(),
	}
}

type Handler interface {
	OnEvent(
		event Event,
	) error
}

type HandlerFunc func(event Event) error

func (hf HandlerFunc) OnEvent(
	event Event,
) error {

	return hf(event)
}

// SubscriptionHandle identifies one subscription. Duplicate registrations of
// the same handler yield distinct handles and are dispatched independently.
type SubscriptionHandle string

type Mesh interface {
	// RegisterSchema installs or replaces the validation rule for a type.
	RegisterSchema(
		eventType string, rule schema.Rule,
	)
	Subscribe(
		selector string, handler Handler, options ...SubscribeOption,
	) (SubscriptionHandle, error)
	Unsubscribe(
		handle SubscriptionHandle,
	) bool
	// Ingest parses, validates, and routes one raw notification. A handler
	// failure is isolated and does not prevent dispatch to the remaining
	// handlers for the same event.
	Ingest(
		notification backend.RawNotification,
	) error
}

type SubscribeOptions struct {
	Condition    string
	DefaultValue bool
}

type SubscribeOption func(options *SubscribeOptions)

// WithCondition attaches a filter expression to the subscription. The
// expression is evaluated against the event envelope; events for which it
// yields false are skipped for this subscription only.
func WithCondition(
	condition string, defaultValue bool,
) SubscribeOption {

	return func(options *SubscribeOptions) {
		options.Condition = condition
		options.DefaultValue = defaultValue
	}
}
