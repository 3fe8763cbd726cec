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

package mesh

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-errors/errors"
	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/schema"
)

// eventFilter evaluates a compiled condition against the event envelope.
// The condition sees the envelope fields plus the payload under "payload".
type eventFilter struct {
	defaultValue bool
	condition    string
	prog         *vm.Program
	vm           *vm.VM
}

func newEventFilter(
	condition string, defaultValue bool,
) (*eventFilter, error) {

	// The envelope's "type" member must win over expr's builtin type()
	prog, err := expr.Compile(
		condition,
		expr.Env(filterEnv(eventmesh.Event{})),
		expr.DisableBuiltin("type"),
	)
	if err != nil {
		return nil, err
	}
	return &eventFilter{
		defaultValue: defaultValue,
		condition:    condition,
		prog:         prog,
		vm:           &vm.VM{},
	}, nil
}

func filterEnv(
	event eventmesh.Event,
) map[string]any {

	return map[string]any{
		"type":    event.Type,
		"payload": schema.Struct(event.Payload),
		"source":  event.SourcePath,
		"seq":     event.SequenceMarker,
	}
}

func (f *eventFilter) evaluate(
	event eventmesh.Event,
) (bool, error) {

	result, err := f.vm.Run(f.prog, filterEnv(event))
	if err != nil {
		return false, err
	}

	r, ok := result.(bool)
	if !ok {
		return false, errors.Errorf("result of filter «%s» isn't a boolean", f.condition)
	}

	if r {
		return f.defaultValue, nil
	}
	return !f.defaultValue, nil
}
