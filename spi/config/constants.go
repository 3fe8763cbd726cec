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

package config

const (
	PropertyBackendType          = "backend.type"
	PropertyBackendCredentialRef = "backend.credentialref"
	PropertyBackendTarget        = "backend.target"

	PropertyConnectionBaseDelay     = "backend.connection.basedelay"
	PropertyConnectionMaxAttempts   = "backend.connection.maxreconnectattempts"
	PropertyConnectionProbeInterval = "backend.connection.probeinterval"
	PropertyConnectionProbeTimeout  = "backend.connection.probetimeout"

	PropertyViewsReadTimeout       = "views.readtimeout"
	PropertyViewsFailFastReads     = "views.failfastreads"
	PropertyViewsPersistToBackend  = "views.persisttobackend"
	PropertyViewsBackendPathPrefix = "views.backendpathprefix"

	PropertyEgressType        = "egress.type"
	PropertyEgressTopicPrefix = "egress.topic.prefix"

	PropertyStatsEnabled        = "stats.enabled"
	PropertyRuntimeStatsEnabled = "stats.runtime.enabled"
	PropertyStatsPort           = "stats.port"

	PropertyStateStorageType     = "statestorage.type"
	PropertyFileStateStoragePath = "statestorage.file.path"

	PropertyRedisNetwork           = "backend.redis.network"
	PropertyRedisAddress           = "backend.redis.address"
	PropertyRedisPassword          = "backend.redis.password"
	PropertyRedisDatabase          = "backend.redis.database"
	PropertyRedisRetriesMax        = "backend.redis.retries.maxattempts"
	PropertyRedisRetriesBackoffMin = "backend.redis.retries.backoff.min"
	PropertyRedisRetriesBackoffMax = "backend.redis.retries.backoff.max"
	PropertyRedisTimeoutDial       = "backend.redis.timeouts.dial"
	PropertyRedisTimeoutRead       = "backend.redis.timeouts.read"
	PropertyRedisTimeoutWrite      = "backend.redis.timeouts.write"
	PropertyRedisTimeoutPool       = "backend.redis.timeouts.pool"
	PropertyRedisTimeoutIdle       = "backend.redis.timeouts.idle"
	PropertyRedisPoolsize          = "backend.redis.poolsize"
	PropertyRedisTlsEnabled        = "backend.redis.tls.enabled"
	PropertyRedisTlsSkipVerify     = "backend.redis.tls.skipverify"
	PropertyRedisTlsClientAuth     = "backend.redis.tls.clientauth"

	PropertyNatsAddress                = "egress.nats.address"
	PropertyNatsAuthorization          = "egress.nats.authorization"
	PropertyNatsUserinfoUsername       = "egress.nats.userinfo.username"
	PropertyNatsUserinfoPassword       = "egress.nats.userinfo.password"
	PropertyNatsCredentialsCertificate = "egress.nats.credentials.certificate"
	PropertyNatsCredentialsSeeds       = "egress.nats.credentials.seeds"
	PropertyNatsJwt                    = "egress.nats.jwt.jwt"
	PropertyNatsJwtSeed                = "egress.nats.jwt.seed"

	PropertyKafkaBrokers       = "egress.kafka.brokers"
	PropertyKafkaIdempotent    = "egress.kafka.idempotent"
	PropertyKafkaSaslEnabled   = "egress.kafka.sasl.enabled"
	PropertyKafkaSaslUser      = "egress.kafka.sasl.user"
	PropertyKafkaSaslPassword  = "egress.kafka.sasl.password"
	PropertyKafkaSaslMechanism = "egress.kafka.sasl.mechanism"
	PropertyKafkaTlsEnabled    = "egress.kafka.tls.enabled"
	PropertyKafkaTlsSkipVerify = "egress.kafka.tls.skipverify"
	PropertyKafkaTlsClientAuth = "egress.kafka.tls.clientauth"

	PropertyEgressRedisNetwork  = "egress.redis.network"
	PropertyEgressRedisAddress  = "egress.redis.address"
	PropertyEgressRedisPassword = "egress.redis.password"
	PropertyEgressRedisDatabase = "egress.redis.database"

	PropertySqsQueueUrl           = "egress.sqs.queue.url"
	PropertySqsAwsRegion          = "egress.sqs.aws.region"
	PropertySqsAwsEndpoint        = "egress.sqs.aws.endpoint"
	PropertySqsAwsAccessKeyId     = "egress.sqs.aws.accesskeyid"
	PropertySqsAwsSecretAccessKey = "egress.sqs.aws.secretaccesskey"
	PropertySqsAwsSessionToken    = "egress.sqs.aws.sessiontoken"
)
