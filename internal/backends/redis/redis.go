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

// Package redis backs the reflex layer with a redis server: documents are
// keys, change notifications arrive over pub/sub channels named after the
// source path.
package redis

import (
	"context"
	"crypto/tls"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis"
	"github.com/reflexstream/reflex-layer/spi/backend"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/encoding"
	"github.com/reflexstream/reflex-layer/spi/errs"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

const channelPrefix = "reflex:changes:"

func init() {
	backend.RegisterBackend(spiconfig.RedisBackend, newRedisConnector)
}

type connector struct {
	config *spiconfig.Config
}

func newRedisConnector(
	config *spiconfig.Config,
) (backend.Connector, error) {

	return &connector{
		config: config,
	}, nil
}

func (c *connector) Open(
	_ context.Context, credentialRef, targetId string,
) (backend.Session, error) {

	password, err := resolveCredential(credentialRef, c.config)
	if err != nil {
		return nil, err
	}

	address := targetId
	if address == "" {
		address = spiconfig.GetOrDefault(c.config, spiconfig.PropertyRedisAddress, "localhost:6379")
	}

	options := &redis.Options{
		Network: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisNetwork, "tcp",
		),
		Addr:     address,
		Password: password,
		DB: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisDatabase, 0,
		),
		MaxRetries: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisRetriesMax, 0,
		),
		MinRetryBackoff: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisRetriesBackoffMin, time.Duration(8),
		) * time.Millisecond,
		MaxRetryBackoff: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisRetriesBackoffMax, time.Duration(512),
		) * time.Millisecond,
		DialTimeout: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisTimeoutDial, time.Duration(0),
		) * time.Second,
		ReadTimeout: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisTimeoutRead, time.Duration(0),
		) * time.Second,
		WriteTimeout: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisTimeoutWrite, time.Duration(0),
		) * time.Second,
		PoolSize: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisPoolsize, 0,
		),
		PoolTimeout: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisTimeoutPool, time.Duration(0),
		) * time.Second,
		IdleTimeout: spiconfig.GetOrDefault(
			c.config, spiconfig.PropertyRedisTimeoutIdle, time.Duration(0),
		) * time.Minute,
	}

	if c.config.Backend.Redis.TLS.Enabled {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: spiconfig.GetOrDefault(
				c.config, spiconfig.PropertyRedisTlsSkipVerify, false,
			),
			ClientAuth: spiconfig.GetOrDefault(
				c.config, spiconfig.PropertyRedisTlsClientAuth, tls.NoClientCert,
			),
		}
	}

	client := redis.NewClient(options)
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, errs.Connection("failed to reach redis backend", err, credentialRef)
	}

	return &session{
		client:        client,
		credentialRef: credentialRef,
		decoder:       encoding.NewJsonDecoder(),
		encoder:       encoding.NewJsonEncoder(),
	}, nil
}

// resolveCredential turns a credential reference into the actual secret.
// References prefixed with "env:" name an environment variable, "file:" a
// file holding the secret; anything else falls back to the configured
// password. The secret itself never ends up in errors or logs.
func resolveCredential(
	credentialRef string, config *spiconfig.Config,
) (string, error) {

	switch {
	case strings.HasPrefix(credentialRef, "env:"):
		name := strings.TrimPrefix(credentialRef, "env:")
		value, present := os.LookupEnv(name)
		if !present {
			return "", errs.Connection(
				"credential environment variable not set", nil, credentialRef,
			)
		}
		return value, nil
	case strings.HasPrefix(credentialRef, "file:"):
		path := strings.TrimPrefix(credentialRef, "file:")
		content, err := os.ReadFile(path)
		if err != nil {
			return "", errs.Connection("failed to read credential file", err, credentialRef)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return spiconfig.GetOrDefault(config, spiconfig.PropertyRedisPassword, ""), nil
}

type session struct {
	client        *redis.Client
	credentialRef string
	decoder       *encoding.JsonDecoder
	encoder       *encoding.JsonEncoder
	pubsubs       []*redis.PubSub
}

func (s *session) Probe(
	_ context.Context,
) error {

	if err := s.client.Ping().Err(); err != nil {
		return errs.Connection("redis probe failed", err, s.credentialRef)
	}
	return nil
}

func (s *session) SubscribeChanges(
	_ context.Context, path string,
) (<-chan backend.RawNotification, error) {

	pubsub := s.client.Subscribe(channelPrefix + path)
	if _, err := pubsub.Receive(); err != nil {
		_ = pubsub.Close()
		return nil, errs.Connection("failed to subscribe to change channel", err, s.credentialRef)
	}
	s.pubsubs = append(s.pubsubs, pubsub)

	changes := make(chan backend.RawNotification, 64)
	go func() {
		defer close(changes)
		for message := range pubsub.Channel() {
			var data schema.Struct
			if err := s.decoder.Unmarshal([]byte(message.Payload), &data); err != nil {
				// Undecodable messages surface downstream as malformed
				data = schema.Struct{"raw": message.Payload}
			}
			changes <- backend.RawNotification{
				Path: path,
				Data: data,
			}
		}
	}()
	return changes, nil
}

func (s *session) ReadDocument(
	_ context.Context, path string,
) (backend.Document, error) {

	content, err := s.client.Get(path).Bytes()
	if err == redis.Nil {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, errs.Connection("failed to read document", err, s.credentialRef)
	}

	var document backend.Document
	if err := s.decoder.Unmarshal(content, &document); err != nil {
		return nil, err
	}
	return document, nil
}

func (s *session) WriteDocument(
	_ context.Context, path string, value backend.Document,
) error {

	content, err := s.encoder.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(path, content, 0).Err(); err != nil {
		return errs.Connection("failed to write document", err, s.credentialRef)
	}
	return nil
}

func (s *session) Close() error {
	for _, pubsub := range s.pubsubs {
		_ = pubsub.Close()
	}
	s.pubsubs = nil
	return s.client.Close()
}
