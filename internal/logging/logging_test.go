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

package logging

import (
	"os"
	"testing"

	"github.com/gookit/slog"
	"github.com/stretchr/testify/assert"
)

func Test_Console_Handler_Writes_To_Stderr(t *testing.T) {
	h := newConsoleHandler(true)

	adapter := h.(*consoleHandlerSyncAdapter)
	assert.Equal(t, os.Stderr, adapter.Output)
	assert.Contains(t, adapter.TextFormatter().Template(), "{{message}}")
	assert.NotContains(t, adapter.TextFormatter().Template(), "{{caller}}")
}

func Test_Console_Handler_Defaults_To_Stdout(t *testing.T) {
	h := newConsoleHandler(false)

	adapter := h.(*consoleHandlerSyncAdapter)
	assert.Equal(t, os.Stdout, adapter.Output)
}

func Test_Name2Level(t *testing.T) {
	assert.Equal(t, slog.PanicLevel, Name2Level("panic"))
	assert.Equal(t, slog.FatalLevel, Name2Level("fatal"))
	assert.Equal(t, slog.ErrorLevel, Name2Level("error"))
	assert.Equal(t, slog.WarnLevel, Name2Level("warning"))
	assert.Equal(t, slog.NoticeLevel, Name2Level("notice"))
	assert.Equal(t, VerboseLevel, Name2Level("verbose"))
	assert.Equal(t, slog.DebugLevel, Name2Level("debug"))
	assert.Equal(t, slog.TraceLevel, Name2Level("trace"))
	assert.Equal(t, slog.InfoLevel, Name2Level("anything-else"))
}
