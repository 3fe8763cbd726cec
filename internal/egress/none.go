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

package egress

import (
	"time"

	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	spiegress "github.com/reflexstream/reflex-layer/spi/egress"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

func init() {
	spiegress.RegisterSink(spiconfig.None, newNoneSink)
}

// Events are consumed by in-process subscribers only.
func newNoneSink(
	_ *spiconfig.Config,
) (spiegress.Sink, error) {

	return spiegress.SinkFunc(
		func(_ time.Time, _ string, _, _ schema.Struct) error {
			return nil
		},
	), nil
}
