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

package redis

import (
	"time"

	"github.com/go-redis/redis"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/egress"
	"github.com/reflexstream/reflex-layer/spi/encoding"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

func init() {
	egress.RegisterSink(spiconfig.Redis, newRedisSink)
}

type redisSink struct {
	client  *redis.Client
	encoder *encoding.JsonEncoder
}

func newRedisSink(
	config *spiconfig.Config,
) (egress.Sink, error) {

	options := &redis.Options{
		Network: spiconfig.GetOrDefault(
			config, spiconfig.PropertyEgressRedisNetwork, "tcp",
		),
		Addr: spiconfig.GetOrDefault(
			config, spiconfig.PropertyEgressRedisAddress, "localhost:6379",
		),
		Password: spiconfig.GetOrDefault(
			config, spiconfig.PropertyEgressRedisPassword, "",
		),
		DB: spiconfig.GetOrDefault(
			config, spiconfig.PropertyEgressRedisDatabase, 0,
		),
	}

	return &redisSink{
		client:  redis.NewClient(options),
		encoder: encoding.NewJsonEncoder(),
	}, nil
}

func (r *redisSink) Start() error {
	return r.client.Ping().Err()
}

func (r *redisSink) Stop() error {
	return r.client.Close()
}

func (r *redisSink) Emit(
	_ time.Time, topicName string, key, envelope schema.Struct,
) error {

	keyData, err := r.encoder.Marshal(key)
	if err != nil {
		return err
	}
	envelopeData, err := r.encoder.Marshal(envelope)
	if err != nil {
		return err
	}

	return r.client.XAdd(&redis.XAddArgs{
		Stream: topicName,
		Values: map[string]any{
			"key":      string(keyData),
			"envelope": string(envelopeData),
		},
	}).Err()
}
