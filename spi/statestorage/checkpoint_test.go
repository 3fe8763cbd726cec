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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckpoint_Write_Read(
	t *testing.T,
) {

	c1 := &Checkpoint{
		Timestamp:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		SequenceMarker: 100000000,
		Consistent:     true,
	}

	d, err := c1.MarshalBinary()
	if err != nil {
		t.Error(err)
	}

	c2 := &Checkpoint{}
	if err := c2.UnmarshalBinary(d); err != nil {
		t.Error(err)
	}

	assert.Equal(t, c1.Timestamp, c2.Timestamp)
	assert.Equal(t, c1.SequenceMarker, c2.SequenceMarker)
	assert.Equal(t, c1.Consistent, c2.Consistent)
	assert.True(t, c1.Equal(c2))
}

func TestCheckpoint_Write_Read_Inconsistent(
	t *testing.T,
) {

	c1 := &Checkpoint{
		Timestamp:      time.Date(2023, 6, 15, 12, 30, 45, 123456789, time.UTC),
		SequenceMarker: 42,
		Consistent:     false,
	}

	d, err := c1.MarshalBinary()
	if err != nil {
		t.Error(err)
	}
	assert.Len(t, d, 17)

	c2 := &Checkpoint{}
	if err := c2.UnmarshalBinary(d); err != nil {
		t.Error(err)
	}

	assert.False(t, c2.Consistent)
	assert.True(t, c1.Equal(c2))
}

func TestCheckpoint_Equal(
	t *testing.T,
) {

	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	c1 := &Checkpoint{Timestamp: ts, SequenceMarker: 10, Consistent: true}
	c2 := &Checkpoint{Timestamp: ts, SequenceMarker: 10, Consistent: true}
	c3 := &Checkpoint{Timestamp: ts, SequenceMarker: 11, Consistent: true}
	c4 := &Checkpoint{Timestamp: ts, SequenceMarker: 10, Consistent: false}

	assert.True(t, c1.Equal(c2))
	assert.False(t, c1.Equal(c3))
	assert.False(t, c1.Equal(c4))
}
