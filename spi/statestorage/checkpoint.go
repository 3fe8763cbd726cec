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

package statestorage

import (
	"encoding/binary"
	"time"
)

// Checkpoint records the last applied sequence marker of one materialized
// view, so a restart resumes duplicate detection where the previous process
// stopped.
type Checkpoint struct {
	Timestamp      time.Time
	SequenceMarker uint64
	Consistent     bool
}

func (c *Checkpoint) UnmarshalBinary(
	data []byte,
) error {

	c.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(data[:8]))).In(time.UTC)
	c.SequenceMarker = binary.BigEndian.Uint64(data[8:])
	c.Consistent = data[16] == 1
	return nil
}

func (c *Checkpoint) MarshalBinary() ([]byte, error) {
	data := make([]byte, 17)
	binary.BigEndian.PutUint64(data[:8], uint64(c.Timestamp.UnixNano()))
	binary.BigEndian.PutUint64(data[8:], c.SequenceMarker)
	data[16] = 0
	if c.Consistent {
		data[16] = 1
	}
	return data, nil
}

func (c *Checkpoint) Equal(
	other *Checkpoint,
) bool {

	if !c.Timestamp.Equal(other.Timestamp) {
		return false
	}
	if c.Consistent != other.Consistent {
		return false
	}
	return c.SequenceMarker == other.SequenceMarker
}
