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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/reflexstream/reflex-layer/spi/backend"
	"github.com/reflexstream/reflex-layer/spi/errs"
	"github.com/reflexstream/reflex-layer/spi/schema"
	"github.com/stretchr/testify/assert"
)

func Test_Open_And_Probe(t *testing.T) {
	store := NewStore()
	connector := NewConnector(store)

	session, err := connector.Open(context.Background(), "env:TOKEN", "target")
	assert.NoError(t, err)
	assert.NoError(t, session.Probe(context.Background()))

	store.SetHealthy(false)
	assert.Error(t, session.Probe(context.Background()))

	_, err = connector.Open(context.Background(), "env:TOKEN", "target")
	assert.Error(t, err)
	assert.True(t, errs.IsConnection(err))

	store.SetHealthy(true)
	assert.NoError(t, session.Probe(context.Background()))
	assert.NoError(t, session.Close())
}

func Test_Documents_Read_Write(t *testing.T) {
	store := NewStore()
	connector := NewConnector(store)

	session, err := connector.Open(context.Background(), "env:TOKEN", "target")
	assert.NoError(t, err)
	defer session.Close()

	_, err = session.ReadDocument(context.Background(), "orders/ord-1")
	assert.ErrorIs(t, err, backend.ErrNotFound)

	document := backend.Document{"total": 100.0}
	assert.NoError(t, session.WriteDocument(context.Background(), "orders/ord-1", document))

	read, err := session.ReadDocument(context.Background(), "orders/ord-1")
	assert.NoError(t, err)
	assert.Equal(t, document, read)
}

func Test_Publish_Order_And_Markers(t *testing.T) {
	store := NewStore()
	connector := NewConnector(store)

	session, err := connector.Open(context.Background(), "env:TOKEN", "target")
	assert.NoError(t, err)
	defer session.Close()

	changes, err := session.SubscribeChanges(context.Background(), "orders/incoming")
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		store.Publish("orders/incoming", schema.Struct{"type": "order.created"})
	}
	// Markers advance per path, not globally
	assert.Equal(t, uint64(1), store.Publish("orders/archive", schema.Struct{"type": "order.archived"}))

	for i := uint64(1); i <= 3; i++ {
		select {
		case notification := <-changes:
			assert.Equal(t, i, notification.SequenceMarker)
			assert.Equal(t, "orders/incoming", notification.Path)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for notification %d", i)
		}
	}
}

func Test_Close_Removes_Subscribers(t *testing.T) {
	store := NewStore()
	connector := NewConnector(store)

	session, err := connector.Open(context.Background(), "env:TOKEN", "target")
	assert.NoError(t, err)

	changes, err := session.SubscribeChanges(context.Background(), "orders/incoming")
	assert.NoError(t, err)

	assert.NoError(t, session.Close())

	_, open := <-changes
	assert.False(t, open, "change channel must close with the session")

	// Publishing after close must not block on the dead subscriber
	store.Publish("orders/incoming", schema.Struct{"type": "order.created"})

	_, err = session.SubscribeChanges(context.Background(), "orders/incoming")
	assert.Error(t, err)
}
