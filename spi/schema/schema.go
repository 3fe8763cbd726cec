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

package schema

import (
	"github.com/go-errors/errors"
	"github.com/reflexstream/reflex-layer/spi/errs"
)

// Struct is the generic payload shape of events and documents.
type Struct = map[string]any

type FieldType string

const (
	STRING  FieldType = "string"
	NUMBER  FieldType = "number"
	BOOLEAN FieldType = "boolean"
	STRUCT  FieldType = "struct"
	ARRAY   FieldType = "array"
	ANY     FieldType = "any"
)

// Rule is the validation rule for one event type: a set of required field
// names plus optional per-field shape constraints.
type Rule struct {
	RequiredFields []string
	FieldTypes     map[string]FieldType
}

func RuleFromDefinition(
	required []string, types map[string]string,
) (Rule, error) {

	fieldTypes := make(map[string]FieldType, len(types))
	for field, name := range types {
		switch ft := FieldType(name); ft {
		case STRING, NUMBER, BOOLEAN, STRUCT, ARRAY, ANY:
			fieldTypes[field] = ft
		default:
			return Rule{}, errors.Errorf("FieldType '%s' doesn't exist", name)
		}
	}
	return Rule{
		RequiredFields: required,
		FieldTypes:     fieldTypes,
	}, nil
}

// Validate checks the payload against the rule and returns the complete
// violation set, never only the first violation. An empty map means the
// payload passed.
func (r Rule) Validate(
	payload Struct,
) map[string]string {

	violations := make(map[string]string)
	for _, field := range r.RequiredFields {
		if _, present := payload[field]; !present {
			violations[field] = errs.ViolationMissingField
		}
	}

	for field, fieldType := range r.FieldTypes {
		value, present := payload[field]
		if !present {
			continue
		}
		if !matchesType(value, fieldType) {
			violations[field] = "Expected field of type " + string(fieldType)
		}
	}
	return violations
}

func matchesType(
	value any, fieldType FieldType,
) bool {

	switch fieldType {
	case ANY:
		return true
	case STRING:
		_, ok := value.(string)
		return ok
	case BOOLEAN:
		_, ok := value.(bool)
		return ok
	case NUMBER:
		switch value.(type) {
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case STRUCT:
		_, ok := value.(map[string]any)
		return ok
	case ARRAY:
		_, ok := value.([]any)
		return ok
	}
	return false
}
