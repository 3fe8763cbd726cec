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

package file

import (
	"encoding"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docker/docker/pkg/ioutils"
	"github.com/go-errors/errors"
	"github.com/reflexstream/reflex-layer/internal/logging"
	"github.com/reflexstream/reflex-layer/internal/waiting"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	"github.com/reflexstream/reflex-layer/spi/statestorage"
)

func init() {
	statestorage.RegisterStateStorage(spiconfig.FileStorage, newFileStateStorage)
}

type fileStateStorage struct {
	path        string
	mutex       sync.Mutex
	logger      *logging.Logger
	checkpoints map[string]*statestorage.Checkpoint

	stateEncoders map[string]encoding.BinaryMarshaler
	encodedStates map[string][]byte

	changeCounter  uint64
	ticker         *time.Ticker
	shutdownWaiter *waiting.ShutdownAwaiter
}

func newFileStateStorage(
	config *spiconfig.Config,
) (statestorage.Storage, error) {

	path := spiconfig.GetOrDefault(config, spiconfig.PropertyFileStateStoragePath, "")
	if path == "" {
		return nil, errors.Errorf("FileStateStorage needs a path to be configured")
	}
	return NewFileStateStorage(path)
}

func NewFileStateStorage(
	path string,
) (statestorage.Storage, error) {

	logger, err := logging.NewLogger("FileStateStorage")
	if err != nil {
		return nil, err
	}

	directory := filepath.Dir(path)
	fi, err := os.Stat(directory)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(directory, 0777); err != nil {
				return nil, errors.Wrap(err, 0)
			}
		} else {
			return nil, errors.Wrap(err, 0)
		}
	} else if !fi.IsDir() {
		return nil, errors.Errorf(
			"path '%s' cannot be created since the parent-path '%s' is no directory", path, directory,
		)
	}

	fi, err = os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, 0)
		}
	}

	if fi != nil && fi.IsDir() {
		return nil, errors.Errorf("path '%s' exists already but is not a file", path)
	}

	return &fileStateStorage{
		path:           path,
		logger:         logger,
		shutdownWaiter: waiting.NewShutdownAwaiter(),
		checkpoints:    make(map[string]*statestorage.Checkpoint),
		stateEncoders:  make(map[string]encoding.BinaryMarshaler),
		encodedStates:  make(map[string][]byte),
	}, nil
}

func (f *fileStateStorage) Start() error {
	f.logger.Infof("Starting FileStateStorage at %s", f.path)
	if err := f.Load(); err != nil {
		return err
	}

	if f.ticker == nil {
		f.ticker = time.NewTicker(time.Second * 20)
		go f.autoStoreHandler()
	}
	return nil
}

func (f *fileStateStorage) Stop() error {
	f.logger.Infof("Stopping FileStateStorage at %s", f.path)
	f.shutdownWaiter.SignalShutdown()
	if err := f.shutdownWaiter.AwaitDone(); err != nil {
		f.logger.Warnln("Failed to shutdown auto storage in time")
	}
	return f.Save()
}

func (f *fileStateStorage) Save() error {
	f.logger.Infof("Storing FileStateStorage at %s", f.path)

	f.mutex.Lock()
	defer f.mutex.Unlock()

	for name, encoder := range f.stateEncoders {
		data, err := encoder.MarshalBinary()
		if err != nil {
			return errors.Wrap(err, 0)
		}
		f.encodedStates[name] = data
	}

	writer, err := ioutils.NewAtomicFileWriter(f.path, 0777)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer writer.Close()

	buffer := make([]byte, 4)
	writeUint32 := func(val uint32) (int, error) {
		binary.BigEndian.PutUint32(buffer[0:4], val)
		return writer.Write(buffer[0:4])
	}

	writeBytesWithLength := func(val []byte) (int, error) {
		if _, err := writeUint32(uint32(len(val))); err != nil {
			return 0, errors.Wrap(err, 0)
		}

		if _, err := writer.Write(val); err != nil {
			return 0, errors.Wrap(err, 0)
		}
		return 4 + len(val), nil
	}

	writeCheckpointWithLength := func(val *statestorage.Checkpoint) (int, error) {
		data, err := val.MarshalBinary()
		if err != nil {
			return 0, errors.Wrap(err, 0)
		}
		return writeBytesWithLength(data)
	}

	numOfCheckpoints := uint32(len(f.checkpoints))
	if _, err := writeUint32(numOfCheckpoints); err != nil {
		return errors.Wrap(err, 0)
	}

	for key, value := range f.checkpoints {
		if _, err := writeBytesWithLength([]byte(key)); err != nil {
			return errors.Wrap(err, 0)
		}
		if _, err := writeCheckpointWithLength(value); err != nil {
			return errors.Wrap(err, 0)
		}
	}

	numOfEncodedStates := uint32(len(f.encodedStates))
	if _, err := writeUint32(numOfEncodedStates); err != nil {
		return errors.Wrap(err, 0)
	}

	for key, value := range f.encodedStates {
		if _, err := writeBytesWithLength([]byte(key)); err != nil {
			return errors.Wrap(err, 0)
		}
		if _, err := writeBytesWithLength(value); err != nil {
			return errors.Wrap(err, 0)
		}
	}
	return nil
}

func (f *fileStateStorage) Load() error {
	f.logger.Infof("Loading FileStateStorage at %s", f.path)

	f.mutex.Lock()
	defer f.mutex.Unlock()

	fi, err := os.Stat(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrap(err, 0)
		} else {
			// Reset internal maps
			f.checkpoints = make(map[string]*statestorage.Checkpoint)
			f.encodedStates = make(map[string][]byte)
			return nil
		}
	}

	if fi.IsDir() {
		return errors.Errorf("path '%s' exists already but is not a file", f.path)
	}

	if fi.Size() == 0 {
		// Reset internal maps
		f.checkpoints = make(map[string]*statestorage.Checkpoint)
		f.encodedStates = make(map[string][]byte)
		return nil
	}

	file, err := os.Open(f.path)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer file.Close()

	buffer := make([]byte, fi.Size())
	if _, err := file.Read(buffer); err != nil {
		return errors.Wrap(err, 0)
	}

	readerOffset := int64(0)
	readUint32 := func() uint32 {
		val := binary.BigEndian.Uint32(buffer[readerOffset : readerOffset+4])
		readerOffset += 4
		return val
	}

	readBytes := func() []byte {
		length := readUint32()
		val := buffer[readerOffset : readerOffset+int64(length)]
		readerOffset += int64(length)
		return val
	}

	readCheckpoint := func() (*statestorage.Checkpoint, error) {
		data := readBytes()
		c := &statestorage.Checkpoint{}
		if err := c.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return c, nil
	}

	numOfCheckpoints := readUint32()
	for i := uint32(0); i < numOfCheckpoints; i++ {
		key := string(readBytes())
		value, err := readCheckpoint()
		if err != nil {
			return errors.Wrap(err, 0)
		}
		f.checkpoints[key] = value
	}

	if readerOffset < int64(len(buffer)) {
		numOfEncodedStates := readUint32()
		for i := uint32(0); i < numOfEncodedStates; i++ {
			key := string(readBytes())
			value := readBytes()
			f.encodedStates[key] = value
		}
	}
	return nil
}

func (f *fileStateStorage) Get() (map[string]*statestorage.Checkpoint, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.checkpoints, nil
}

func (f *fileStateStorage) Set(
	key string, value *statestorage.Checkpoint,
) error {

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.checkpoints[key] = value
	f.changeCounter++
	return nil
}

func (f *fileStateStorage) StateEncoder(
	name string, encoder encoding.BinaryMarshaler,
) error {

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.stateEncoders[name] = encoder
	return nil
}

func (f *fileStateStorage) StateDecoder(
	name string, decoder encoding.BinaryUnmarshaler,
) (bool, error) {

	f.mutex.Lock()
	defer f.mutex.Unlock()
	if encodedState, present := f.encodedStates[name]; present {
		if err := decoder.UnmarshalBinary(encodedState); err != nil {
			return true, errors.Wrap(err, 0)
		}
		return true, nil
	}
	return false, nil
}

func (f *fileStateStorage) EncodedState(
	key string,
) (encodedState []byte, present bool) {

	f.mutex.Lock()
	defer f.mutex.Unlock()
	encodedState, present = f.encodedStates[key]
	return
}

func (f *fileStateStorage) SetEncodedState(
	key string, encodedState []byte,
) {

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.encodedStates[key] = encodedState
}

func (f *fileStateStorage) autoStoreHandler() {
	for {
		select {
		case <-f.shutdownWaiter.AwaitShutdownChan():
			f.ticker.Stop()
			f.shutdownWaiter.SignalDone()
			return

		case <-f.ticker.C:
			if f.changeCounter != 0 {
				f.logger.Infof("Auto storing FileStateStorage at %s", f.path)
				if err := f.Save(); err != nil {
					f.logger.Warnf("failed to auto store checkpoints: %s", err.Error())
				}
				f.changeCounter = 0
			}
		}
	}
}
