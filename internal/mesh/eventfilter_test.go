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

	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterEvent(
	eventType string, payload schema.Struct,
) eventmesh.Event {

	return eventmesh.Event{
		Type:           eventType,
		Payload:        payload,
		SourcePath:     "orders/incoming",
		SequenceMarker: 10,
	}
}

func Test_Filter_Payload_Condition(t *testing.T) {
	filter, err := newEventFilter(`payload.total > 100`, true)
	require.NoError(t, err)

	success, err := filter.evaluate(filterEvent("order.created", schema.Struct{"total": 150.0}))
	assert.NoError(t, err)
	assert.True(t, success)

	success, err = filter.evaluate(filterEvent("order.created", schema.Struct{"total": 50.0}))
	assert.NoError(t, err)
	assert.False(t, success)
}

func Test_Filter_Envelope_Fields(t *testing.T) {
	filter, err := newEventFilter(`type == "order.created" && seq >= 10`, true)
	require.NoError(t, err)

	success, err := filter.evaluate(filterEvent("order.created", schema.Struct{}))
	assert.NoError(t, err)
	assert.True(t, success)

	success, err = filter.evaluate(filterEvent("order.deleted", schema.Struct{}))
	assert.NoError(t, err)
	assert.False(t, success)
}

func Test_Filter_Inverted_Default(t *testing.T) {
	// defaultValue false inverts the match, a true condition drops the event
	filter, err := newEventFilter(`type == "order.created"`, false)
	require.NoError(t, err)

	success, err := filter.evaluate(filterEvent("order.created", schema.Struct{}))
	assert.NoError(t, err)
	assert.False(t, success)

	success, err = filter.evaluate(filterEvent("order.deleted", schema.Struct{}))
	assert.NoError(t, err)
	assert.True(t, success)
}

func Test_Filter_Non_Boolean_Result(t *testing.T) {
	filter, err := newEventFilter(`payload.total`, true)
	require.NoError(t, err)

	_, err = filter.evaluate(filterEvent("order.created", schema.Struct{"total": 10.0}))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "isn't a boolean")
}

func Test_Filter_Compile_Failure(t *testing.T) {
	_, err := newEventFilter(`((`, true)
	assert.Error(t, err)
}
