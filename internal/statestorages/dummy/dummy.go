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

package dummy

import (
	"encoding"

	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/statestorage"
)

func init() {
	statestorage.RegisterStateStorage(spiconfig.NoneStorage, func(_ *spiconfig.Config) (statestorage.Storage, error) {
		return &DummyStateStorage{}, nil
	})
}

// DummyStateStorage drops all state. Views start from scratch on every
// process start.
type DummyStateStorage struct {
}

func (d *DummyStateStorage) Start() error {
	return nil
}

func (d *DummyStateStorage) Stop() error {
	return nil
}

func (d *DummyStateStorage) Save() error {
	return nil
}

func (d *DummyStateStorage) Load() error {
	return nil
}

func (d *DummyStateStorage) Get() (map[string]*statestorage.Checkpoint, error) {
	return nil, nil
}

func (d *DummyStateStorage) Set(
	_ string, _ *statestorage.Checkpoint,
) error {

	return nil
}

func (d *DummyStateStorage) StateEncoder(
	_ string, _ encoding.BinaryMarshaler,
) error {

	return nil
}

func (d *DummyStateStorage) StateDecoder(
	_ string, _ encoding.BinaryUnmarshaler,
) (bool, error) {

	return false, nil
}

func (d *DummyStateStorage) EncodedState(
	_ string,
) (encodedState []byte, present bool) {

	return
}

func (d *DummyStateStorage) SetEncodedState(
	_ string, _ []byte,
) {
}
