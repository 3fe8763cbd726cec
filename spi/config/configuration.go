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

import (
	"crypto/tls"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type BackendType string

const (
	MemoryBackend BackendType = "memory"
	RedisBackend  BackendType = "redis"
)

type StateStorageType string

const (
	NoneStorage StateStorageType = "none"
	FileStorage StateStorageType = "file"
)

type EgressType string

const (
	None   EgressType = "none"
	Stdout EgressType = "stdout"
	NATS   EgressType = "nats"
	Kafka  EgressType = "kafka"
	Redis  EgressType = "redis"
	AwsSQS EgressType = "sqs"
)

type NatsAuthorizationType string

const (
	UserInfo    NatsAuthorizationType = "userinfo"
	Credentials NatsAuthorizationType = "credentials"
	Jwt         NatsAuthorizationType = "jwt"
)

type BackendConfig struct {
	Type          BackendType      `toml:"type" yaml:"type"`
	CredentialRef string           `toml:"credentialref" yaml:"credentialref"`
	Target        string           `toml:"target" yaml:"target"`
	Paths         []string         `toml:"paths" yaml:"paths"`
	Connection    ConnectionConfig `toml:"connection" yaml:"connection"`
	Redis         RedisConfig      `toml:"redis" yaml:"redis"`
}

type ConnectionConfig struct {
	BaseDelay            time.Duration `toml:"basedelay" yaml:"basedelay"`
	MaxReconnectAttempts int           `toml:"maxreconnectattempts" yaml:"maxreconnectattempts"`
	ProbeInterval        time.Duration `toml:"probeinterval" yaml:"probeinterval"`
	ProbeTimeout         time.Duration `toml:"probetimeout" yaml:"probetimeout"`
}

type MeshConfig struct {
	Schemas       map[string]SchemaRuleConfig   `toml:"schemas" yaml:"schemas"`
	Subscriptions map[string]SubscriptionConfig `toml:"subscriptions" yaml:"subscriptions"`
}

type SchemaRuleConfig struct {
	Required []string          `toml:"required" yaml:"required"`
	Types    map[string]string `toml:"types" yaml:"types"`
}

type SubscriptionConfig struct {
	Selector     string `toml:"selector" yaml:"selector"`
	Condition    string `toml:"condition" yaml:"condition"`
	DefaultValue *bool  `toml:"default" yaml:"default"`
}

type ViewsConfig struct {
	ReadTimeout       time.Duration `toml:"readtimeout" yaml:"readtimeout"`
	FailFastReads     bool          `toml:"failfastreads" yaml:"failfastreads"`
	PersistToBackend  *bool         `toml:"persisttobackend" yaml:"persisttobackend"`
	BackendPathPrefix string        `toml:"backendpathprefix" yaml:"backendpathprefix"`
}

type EgressConfig struct {
	Type  EgressType   `toml:"type" yaml:"type"`
	Topic TopicConfig  `toml:"topic" yaml:"topic"`
	Nats  NatsConfig   `toml:"nats" yaml:"nats"`
	Kafka KafkaConfig  `toml:"kafka" yaml:"kafka"`
	Redis RedisConfig  `toml:"redis" yaml:"redis"`
	Sqs   AwsSQSConfig `toml:"sqs" yaml:"sqs"`
}

type TopicConfig struct {
	Prefix string `toml:"prefix" yaml:"prefix"`
}

type NatsUserInfoConfig struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

type NatsCredentialsConfig struct {
	Certificate string   `toml:"certificate" yaml:"certificate"`
	Seeds       []string `toml:"seeds" yaml:"seeds"`
}

type NatsJWTConfig struct {
	JWT  string `toml:"jwt" yaml:"jwt"`
	Seed string `toml:"seed" yaml:"seed"`
}

type NatsConfig struct {
	Address       string                `toml:"address" yaml:"address"`
	Authorization NatsAuthorizationType `toml:"authorization" yaml:"authorization"`
	UserInfo      NatsUserInfoConfig    `toml:"userinfo" yaml:"userinfo"`
	Credentials   NatsCredentialsConfig `toml:"credentials" yaml:"credentials"`
	JWT           NatsJWTConfig         `toml:"jwt" yaml:"jwt"`
	Timeout       int                   `toml:"timeout" yaml:"timeout"`
}

type KafkaSaslConfig struct {
	Enabled   bool                 `toml:"enabled" yaml:"enabled"`
	User      string               `toml:"user" yaml:"user"`
	Password  string               `toml:"password" yaml:"password"`
	Mechanism sarama.SASLMechanism `toml:"mechanism" yaml:"mechanism"`
}

type KafkaConfig struct {
	Brokers    []string        `toml:"brokers" yaml:"brokers"`
	Idempotent bool            `toml:"idempotent" yaml:"idempotent"`
	Sasl       KafkaSaslConfig `toml:"sasl" yaml:"sasl"`
	TLS        TLSConfig       `toml:"tls" yaml:"tls"`
}

type RedisConfig struct {
	Network  string             `toml:"network" yaml:"network"`
	Address  string             `toml:"address" yaml:"address"`
	Password string             `toml:"password" yaml:"password"`
	Database int                `toml:"database" yaml:"database"`
	Retries  RedisRetryConfig   `toml:"retries" yaml:"retries"`
	Timeouts RedisTimeoutConfig `toml:"timeouts" yaml:"timeouts"`
	PoolSize int                `toml:"poolsize" yaml:"poolsize"`
	TLS      TLSConfig          `toml:"tls" yaml:"tls"`
}

type RedisRetryConfig struct {
	MaxAttempts int                     `toml:"maxattempts" yaml:"maxattempts"`
	Backoff     RedisRetryBackoffConfig `toml:"backoff" yaml:"backoff"`
}

type RedisRetryBackoffConfig struct {
	Min int `toml:"min" yaml:"min"`
	Max int `toml:"max" yaml:"max"`
}

type RedisTimeoutConfig struct {
	Dial  int `toml:"dial" yaml:"dial"`
	Read  int `toml:"read" yaml:"read"`
	Write int `toml:"write" yaml:"write"`
	Pool  int `toml:"pool" yaml:"pool"`
	Idle  int `toml:"idle" yaml:"idle"`
}

type AwsSQSConfig struct {
	Queue AwsSQSQueueConfig   `toml:"queue" yaml:"queue"`
	Aws   AwsConnectionConfig `toml:"aws" yaml:"aws"`
}

type AwsSQSQueueConfig struct {
	Url *string `toml:"url" yaml:"url"`
}

type AwsConnectionConfig struct {
	Region          *string `toml:"region" yaml:"region"`
	Endpoint        string  `toml:"endpoint" yaml:"endpoint"`
	AccessKeyId     *string `toml:"accesskeyid" yaml:"accesskeyid"`
	SecretAccessKey *string `toml:"secretaccesskey" yaml:"secretaccesskey"`
	SessionToken    *string `toml:"sessiontoken" yaml:"sessiontoken"`
}

type TLSConfig struct {
	Enabled    bool               `toml:"enabled" yaml:"enabled"`
	SkipVerify bool               `toml:"skipverify" yaml:"skipverify"`
	ClientAuth tls.ClientAuthType `toml:"clientauth" yaml:"clientauth"`
}

type StatsConfig struct {
	Enabled *bool              `toml:"enabled" yaml:"enabled"`
	Runtime StatsRuntimeConfig `toml:"runtime" yaml:"runtime"`
	Port    int                `toml:"port" yaml:"port"`
}

type StatsRuntimeConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

type Config struct {
	Backend      BackendConfig      `toml:"backend" yaml:"backend"`
	Mesh         MeshConfig         `toml:"mesh" yaml:"mesh"`
	Views        ViewsConfig        `toml:"views" yaml:"views"`
	Egress       EgressConfig       `toml:"egress" yaml:"egress"`
	StateStorage StateStorageConfig `toml:"statestorage" yaml:"statestorage"`
	Stats        StatsConfig        `toml:"stats" yaml:"stats"`
	Logging      LoggerConfig       `toml:"logging" yaml:"logging"`
}

type StateStorageConfig struct {
	Type        StateStorageType  `toml:"type" yaml:"type"`
	FileStorage FileStorageConfig `toml:"file" yaml:"file"`
}

type FileStorageConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type LoggerConfig struct {
	Level   string                     `toml:"level" yaml:"level"`
	Outputs LoggerOutputConfig         `toml:"output" yaml:"output"`
	Loggers map[string]SubLoggerConfig `toml:"loggers" yaml:"loggers"`
}

type LoggerOutputConfig struct {
	Console LoggerConsoleConfig `toml:"console" yaml:"console"`
	File    LoggerFileConfig    `toml:"file" yaml:"file"`
}

type SubLoggerConfig struct {
	Level   *string            `toml:"level" yaml:"level"`
	Outputs LoggerOutputConfig `toml:"output" yaml:"output"`
}

type LoggerConsoleConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

type LoggerFileConfig struct {
	Enabled     *bool          `toml:"enabled" yaml:"enabled"`
	Path        string         `toml:"path" yaml:"path"`
	Rotate      *bool          `toml:"rotate" yaml:"rotate"`
	MaxSize     *string        `toml:"maxsize" yaml:"maxsize"`
	MaxDuration *time.Duration `toml:"maxduration" yaml:"maxduration"`
	Compress    bool           `toml:"compress" yaml:"compress"`
}

// GetOrDefault resolves a canonical dotted property name against the
// configuration tree. A matching environment variable (dots replaced with
// underscores, underscores doubled, uppercased) takes precedence over the
// file-provided value.
func GetOrDefault[V any](
	config *Config, canonicalProperty string, defaultValue V,
) V {

	if env, found := findEnvProperty(canonicalProperty, defaultValue); found {
		return env
	}

	properties := strings.Split(canonicalProperty, ".")

	element := reflect.ValueOf(*config)
	for _, property := range properties {
		if e, ok := findProperty(element, property); ok {
			element = e
		} else {
			return defaultValue
		}
	}

	if !element.IsZero() &&
		!(element.Kind() == reflect.Ptr && element.IsNil()) {

		if element.Kind() == reflect.Ptr {
			element = element.Elem()
		}

		return element.Convert(reflect.TypeOf(defaultValue)).Interface().(V)
	}
	return defaultValue
}

func findEnvProperty[V any](
	canonicalProperty string, defaultValue V,
) (V, bool) {

	t := reflect.TypeOf(defaultValue)

	envVarName := strings.ToUpper(canonicalProperty)
	envVarName = strings.ReplaceAll(envVarName, "_", "__")
	envVarName = strings.ReplaceAll(envVarName, ".", "_")
	if val, ok := os.LookupEnv(envVarName); ok {
		v := reflect.ValueOf(val)
		cv := v.Convert(t)
		if !cv.IsZero() &&
			!(cv.Kind() == reflect.Ptr && cv.IsNil()) {
			return cv.Interface().(V), true
		}
	}
	return defaultValue, false
}

func findProperty(
	element reflect.Value, property string,
) (reflect.Value, bool) {

	t := element.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}

		if f.Tag.Get("toml") == property {
			return element.Field(i), true
		}
	}
	return reflect.Value{}, false
}
