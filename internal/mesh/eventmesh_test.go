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
	"testing"

	"github.com/reflexstream/reflex-layer/internal/stats"
	"github.com/reflexstream/reflex-layer/spi/backend"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/errs"
	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/schema"
	"github.com/stretchr/testify/assert"
)

func newTestMesh(
	t *testing.T,
) eventmesh.Mesh {

	config := &spiconfig.Config{}
	mesh, err := NewEventMesh(config, stats.NewStatsService(config))
	assert.NoError(t, err)
	return mesh
}

func orderCreatedRule() schema.Rule {
	return schema.Rule{
		RequiredFields: []string{"order_id", "total"},
		FieldTypes: map[string]schema.FieldType{
			"order_id": schema.STRING,
			"total":    schema.NUMBER,
		},
	}
}

func notification(
	eventType string, payload schema.Struct, marker uint64,
) backend.RawNotification {

	return backend.RawNotification{
		Path: "orders/incoming",
		Data: schema.Struct{
			"type":    eventType,
			"payload": payload,
		},
		SequenceMarker: marker,
	}
}

func Test_Ingest_Valid_Event_Dispatched(t *testing.T) {
	mesh := newTestMesh(t)
	mesh.RegisterSchema("order.created", orderCreatedRule())

	var received []eventmesh.Event
	_, err := mesh.Subscribe(
		"order.created", eventmesh.HandlerFunc(func(event eventmesh.Event) error {
			received = append(received, event)
			return nil
		}),
	)
	assert.NoError(t, err)

	err = mesh.Ingest(notification(
		"order.created", schema.Struct{"order_id": "ord-17", "total": 149.99}, 1,
	))
	assert.NoError(t, err)

	assert.Len(t, received, 1)
	assert.Equal(t, "order.created", received[0].Type)
	assert.Equal(t, "orders/incoming", received[0].SourcePath)
	assert.Equal(t, uint64(1), received[0].SequenceMarker)
	assert.Equal(t, "ord-17", received[0].Field("order_id"))
}

func Test_Ingest_Schema_Violations_Not_Dispatched(t *testing.T) {
	mesh := newTestMesh(t)
	mesh.RegisterSchema("order.created", orderCreatedRule())

	dispatched := false
	_, err := mesh.Subscribe(
		eventmesh.Wildcard, eventmesh.HandlerFunc(func(_ eventmesh.Event) error {
			dispatched = true
			return nil
		}),
	)
	assert.NoError(t, err)

	err = mesh.Ingest(notification(
		"order.created", schema.Struct{"total": "not-a-number"}, 1,
	))
	assert.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.False(t, dispatched, "invalid events must never reach subscribers")

	violations := errs.Violations(err)
	assert.Len(t, violations, 2)
	assert.Equal(t, errs.ViolationMissingField, violations["order_id"])
	assert.Equal(t, "Expected field of type number", violations["total"])
}

func Test_Ingest_Unregistered_Type_Passes_Through(t *testing.T) {
	mesh := newTestMesh(t)
	mesh.RegisterSchema("order.created", orderCreatedRule())

	var received []eventmesh.Event
	_, err := mesh.Subscribe(
		eventmesh.Wildcard, eventmesh.HandlerFunc(func(event eventmesh.Event) error {
			received = append(received, event)
			return nil
		}),
	)
	assert.NoError(t, err)

	// No schema registered for this type, anything goes
	err = mesh.Ingest(notification("audit.logged", schema.Struct{"whatever": true}, 7))
	assert.NoError(t, err)
	assert.Len(t, received, 1)
	assert.Equal(t, "audit.logged", received[0].Type)
}

func Test_Ingest_Malformed_Notification(t *testing.T) {
	mesh := newTestMesh(t)

	err := mesh.Ingest(backend.RawNotification{
		Path: "orders/incoming",
		Data: schema.Struct{"payload": schema.Struct{}},
	})
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, errs.ViolationMissingField, errs.Violations(err)["type"])

	err = mesh.Ingest(backend.RawNotification{
		Path: "orders/incoming",
		Data: schema.Struct{"type": "order.created", "payload": "not-a-struct"},
	})
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, errs.ViolationMissingField, errs.Violations(err)["payload"])

	err = mesh.Ingest(backend.RawNotification{
		Path: "orders/incoming",
		Data: schema.Struct{},
	})
	assert.True(t, errs.IsValidation(err))
	assert.Len(t, errs.Violations(err), 2)
}

func Test_Dispatch_Registration_Order(t *testing.T) {
	mesh := newTestMesh(t)

	var order []string
	recorder := func(name string) eventmesh.Handler {
		return eventmesh.HandlerFunc(func(_ eventmesh.Event) error {
			order = append(order, name)
			return nil
		})
	}

	_, err := mesh.Subscribe("order.created", recorder("first"))
	assert.NoError(t, err)
	_, err = mesh.Subscribe(eventmesh.Wildcard, recorder("second"))
	assert.NoError(t, err)
	_, err = mesh.Subscribe("order.created", recorder("third"))
	assert.NoError(t, err)
	_, err = mesh.Subscribe("order.deleted", recorder("never"))
	assert.NoError(t, err)

	err = mesh.Ingest(notification("order.created", schema.Struct{}, 1))
	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func Test_Dispatch_Handler_Isolation(t *testing.T) {
	mesh := newTestMesh(t)

	var order []string
	_, err := mesh.Subscribe(
		eventmesh.Wildcard, eventmesh.HandlerFunc(func(_ eventmesh.Event) error {
			order = append(order, "failing")
			return errs.General("test", "handler exploded")
		}),
	)
	assert.NoError(t, err)

	_, err = mesh.Subscribe(
		eventmesh.Wildcard, eventmesh.HandlerFunc(func(_ eventmesh.Event) error {
			order = append(order, "succeeding")
			return nil
		}),
	)
	assert.NoError(t, err)

	err = mesh.Ingest(notification("order.created", schema.Struct{}, 1))
	assert.NoError(t, err, "a failing handler must not fail the ingest")
	assert.Equal(t, []string{"failing", "succeeding"}, order)
}

func Test_Dispatch_Duplicate_Handler_Registrations(t *testing.T) {
	mesh := newTestMesh(t)

	calls := 0
	handler := eventmesh.HandlerFunc(func(_ eventmesh.Event) error {
		calls++
		return nil
	})

	h1, err := mesh.Subscribe("order.created", handler)
	assert.NoError(t, err)
	h2, err := mesh.Subscribe("order.created", handler)
	assert.NoError(t, err)
	assert.NotEqual(t, h1, h2, "duplicate registrations need distinct handles")

	err = mesh.Ingest(notification("order.created", schema.Struct{}, 1))
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func Test_Unsubscribe(t *testing.T) {
	mesh := newTestMesh(t)

	calls := 0
	handle, err := mesh.Subscribe(
		eventmesh.Wildcard, eventmesh.HandlerFunc(func(_ eventmesh.Event) error {
			calls++
			return nil
		}),
	)
	assert.NoError(t, err)

	assert.True(t, mesh.Unsubscribe(handle))
	assert.False(t, mesh.Unsubscribe(handle), "second unsubscribe is a no-op")

	err = mesh.Ingest(notification("order.created", schema.Struct{}, 1))
	assert.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func Test_Subscribe_With_Condition(t *testing.T) {
	mesh := newTestMesh(t)

	var received []eventmesh.Event
	_, err := mesh.Subscribe(
		eventmesh.Wildcard, eventmesh.HandlerFunc(func(event eventmesh.Event) error {
			received = append(received, event)
			return nil
		}),
		eventmesh.WithCondition(`payload.total > 100`, true),
	)
	assert.NoError(t, err)

	err = mesh.Ingest(notification("order.created", schema.Struct{"total": 149.99}, 1))
	assert.NoError(t, err)
	err = mesh.Ingest(notification("order.created", schema.Struct{"total": 15.00}, 2))
	assert.NoError(t, err)

	assert.Len(t, received, 1)
	assert.Equal(t, uint64(1), received[0].SequenceMarker)
}

func Test_Subscribe_Invalid_Condition(t *testing.T) {
	mesh := newTestMesh(t)

	_, err := mesh.Subscribe(
		eventmesh.Wildcard, eventmesh.HandlerFunc(func(_ eventmesh.Event) error {
			return nil
		}),
		eventmesh.WithCondition(`this is not an expression ((`, true),
	)
	assert.Error(t, err)
}

func Test_Mesh_Config_Declared_Schemas(t *testing.T) {
	config := &spiconfig.Config{
		Mesh: spiconfig.MeshConfig{
			Schemas: map[string]spiconfig.SchemaRuleConfig{
				"order.created": {
					Required: []string{"order_id"},
					Types:    map[string]string{"order_id": "string"},
				},
			},
		},
	}

	mesh, err := NewEventMesh(config, stats.NewStatsService(config))
	assert.NoError(t, err)

	err = mesh.Ingest(notification("order.created", schema.Struct{}, 1))
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, errs.ViolationMissingField, errs.Violations(err)["order_id"])

	config.Mesh.Schemas["broken"] = spiconfig.SchemaRuleConfig{
		Types: map[string]string{"field": "integer"},
	}
	_, err = NewEventMesh(config, stats.NewStatsService(config))
	assert.Error(t, err)
}
