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

package containers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_UnboundedChannel_Order(t *testing.T) {
	channel := MakeUnboundedChannel[int](4)
	defer channel.Close()

	for i := 0; i < 100; i++ {
		channel.Send(i)
	}

	for i := 0; i < 100; i++ {
		assert.Equal(t, i, channel.Receive())
	}
}

func Test_UnboundedChannel_Never_Blocks_Sender(t *testing.T) {
	channel := MakeUnboundedChannel[int](1)
	defer channel.Close()

	done := make(chan struct{})
	go func() {
		// Way past any internal buffer, no receiver yet
		for i := 0; i < 10000; i++ {
			channel.Send(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("sender blocked on unbounded channel")
	}

	assert.Equal(t, 0, channel.Receive())
}

func Test_UnboundedChannel_ReceiveChannel(t *testing.T) {
	channel := MakeUnboundedChannel[string](4)

	channel.Send("first")
	channel.Send("second")

	assert.Equal(t, "first", <-channel.ReceiveChannel())
	assert.Equal(t, "second", <-channel.ReceiveChannel())

	channel.Close()

	_, open := <-channel.ReceiveChannel()
	assert.False(t, open, "receive channel must close with the channel")
}

func Test_ConcurrentMap_Basic_Operations(t *testing.T) {
	m := NewConcurrentMap[string, int]()

	_, ok := m.Load("missing")
	assert.False(t, ok)

	m.Store("a", 1)
	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	actual, loaded := m.LoadOrStore("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, actual)

	actual, loaded = m.LoadOrStore("b", 2)
	assert.False(t, loaded)
	assert.Equal(t, 2, actual)

	v, loaded = m.LoadAndDelete("a")
	assert.True(t, loaded)
	assert.Equal(t, 1, v)

	_, ok = m.Load("a")
	assert.False(t, ok)

	m.Delete("b")
	count := 0
	m.Range(func(_ string, _ int) bool {
		count++
		return true
	})
	assert.Equal(t, 0, count)
}
