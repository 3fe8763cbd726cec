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
	"context"
	"testing"
	"time"

	"github.com/samber/lo"

	"github.com/reflexstream/reflex-layer/internal/backends/memory"
	"github.com/reflexstream/reflex-layer/internal/sysconfig"
	"github.com/reflexstream/reflex-layer/spi/backend"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/schema"
	"github.com/stretchr/testify/assert"
)

func endToEndConfig() *spiconfig.Config {
	return &spiconfig.Config{
		Backend: spiconfig.BackendConfig{
			Type:          spiconfig.MemoryBackend,
			CredentialRef: "env:BACKEND_TOKEN",
			Target:        "test-target",
			Paths:         []string{"orders/incoming"},
		},
		Mesh: spiconfig.MeshConfig{
			Schemas: map[string]spiconfig.SchemaRuleConfig{
				"order.created": {
					Required: []string{"order_id", "total"},
					Types: map[string]string{
						"order_id": "string",
						"total":    "number",
					},
				},
			},
		},
		Egress: spiconfig.EgressConfig{
			Type: spiconfig.None,
		},
		Stats: spiconfig.StatsConfig{
			Enabled: lo.ToPtr(false),
			Runtime: spiconfig.StatsRuntimeConfig{
				Enabled: lo.ToPtr(false),
			},
		},
	}
}

func awaitMarker(
	t *testing.T, rl *ReflexLayer, viewId string, marker uint64,
) {

	deadline := time.Now().Add(time.Second * 10)
	for time.Now().Before(deadline) {
		snapshot, err := rl.viewManager.Read(viewId)
		if err == nil && snapshot.LastApplied >= marker {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
	t.Fatalf("view '%s' never reached marker %d", viewId, marker)
}

func Test_End_To_End_Event_Flow(t *testing.T) {
	store := memory.NewStore()

	systemConfig := sysconfig.NewSystemConfig(endToEndConfig())
	systemConfig.BackendConnectorProvider = func(_ *spiconfig.Config) (backend.Connector, error) {
		return memory.NewConnector(store), nil
	}

	rl, err := NewReflexLayer(systemConfig)
	assert.NoError(t, err)

	sumTotals := func(current schema.Struct, event eventmesh.Event) (schema.Struct, error) {
		if current == nil {
			current = schema.Struct{"sum": 0.0}
		}
		current["sum"] = current["sum"].(float64) + event.Payload["total"].(float64)
		return current, nil
	}
	assert.NoError(t, rl.viewManager.BindView("order-totals", []string{"order.created"}, sumTotals))

	assert.NoError(t, rl.Start(context.Background()))
	defer rl.Stop()

	store.Publish("orders/incoming", schema.Struct{
		"type":    "order.created",
		"payload": schema.Struct{"order_id": "ord-1", "total": 100.0},
	})
	store.Publish("orders/incoming", schema.Struct{
		"type":    "order.created",
		"payload": schema.Struct{"order_id": "ord-2", "total": 50.0},
	})

	awaitMarker(t, rl, "order-totals", 2)

	snapshot, err := rl.viewManager.Read("order-totals")
	assert.NoError(t, err)
	assert.Equal(t, 150.0, snapshot.Value["sum"])
	assert.True(t, snapshot.Consistent)
}

func Test_End_To_End_Invalid_Event_Rejected(t *testing.T) {
	store := memory.NewStore()

	systemConfig := sysconfig.NewSystemConfig(endToEndConfig())
	systemConfig.BackendConnectorProvider = func(_ *spiconfig.Config) (backend.Connector, error) {
		return memory.NewConnector(store), nil
	}

	rl, err := NewReflexLayer(systemConfig)
	assert.NoError(t, err)

	count := func(current schema.Struct, _ eventmesh.Event) (schema.Struct, error) {
		if current == nil {
			current = schema.Struct{"count": 0.0}
		}
		current["count"] = current["count"].(float64) + 1
		return current, nil
	}
	assert.NoError(t, rl.viewManager.BindView("order-count", []string{"order.created"}, count))

	assert.NoError(t, rl.Start(context.Background()))
	defer rl.Stop()

	// Missing order_id, must never reach the view
	store.Publish("orders/incoming", schema.Struct{
		"type":    "order.created",
		"payload": schema.Struct{"total": 100.0},
	})
	// Valid successor proves the loop survived the rejection
	store.Publish("orders/incoming", schema.Struct{
		"type":    "order.created",
		"payload": schema.Struct{"order_id": "ord-2", "total": 50.0},
	})

	awaitMarker(t, rl, "order-count", 2)

	snapshot, err := rl.viewManager.Read("order-count")
	assert.NoError(t, err)
	assert.Equal(t, 1.0, snapshot.Value["count"], "the invalid event must be dropped")
}
