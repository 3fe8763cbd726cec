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

package stdout

import (
	"time"

	"github.com/reflexstream/reflex-layer/internal/logging"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/egress"
	"github.com/reflexstream/reflex-layer/spi/encoding"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

func init() {
	egress.RegisterSink(spiconfig.Stdout, newStdoutSink)
}

type stdoutSink struct {
	logger  *logging.Logger
	encoder *encoding.JsonEncoder
}

func newStdoutSink(
	_ *spiconfig.Config,
) (egress.Sink, error) {

	logger, err := logging.NewLogger("StdoutSink")
	if err != nil {
		return nil, err
	}
	return &stdoutSink{
		logger:  logger,
		encoder: encoding.NewJsonEncoder(),
	}, nil
}

func (s *stdoutSink) Start() error {
	return nil
}

func (s *stdoutSink) Stop() error {
	return nil
}

func (s *stdoutSink) Emit(
	_ time.Time, topicName string, _, envelope schema.Struct,
) error {

	data, err := s.encoder.Marshal(envelope)
	if err != nil {
		return err
	}
	s.logger.Infof("===> /%s: \t%s\n", topicName, string(data))
	return nil
}
