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
	"testing"

	"github.com/reflexstream/reflex-layer/spi/errs"
	"github.com/stretchr/testify/assert"
)

func TestRule_Validate_Passing_Payload(
	t *testing.T,
) {

	rule := Rule{
		RequiredFields: []string{"order_id", "total"},
		FieldTypes: map[string]FieldType{
			"order_id": STRING,
			"total":    NUMBER,
		},
	}

	violations := rule.Validate(Struct{
		"order_id": "ord-17",
		"total":    149.99,
		"extra":    "ignored",
	})
	assert.Empty(t, violations)
}

func TestRule_Validate_Reports_All_Violations(
	t *testing.T,
) {

	rule := Rule{
		RequiredFields: []string{"order_id", "total", "currency"},
		FieldTypes: map[string]FieldType{
			"total": NUMBER,
		},
	}

	violations := rule.Validate(Struct{
		"total": "not-a-number",
	})

	assert.Len(t, violations, 3)
	assert.Equal(t, errs.ViolationMissingField, violations["order_id"])
	assert.Equal(t, errs.ViolationMissingField, violations["currency"])
	assert.Equal(t, "Expected field of type number", violations["total"])
}

func TestRule_Validate_Type_Matching(
	t *testing.T,
) {

	rule := Rule{
		FieldTypes: map[string]FieldType{
			"name":    STRING,
			"count":   NUMBER,
			"active":  BOOLEAN,
			"details": STRUCT,
			"items":   ARRAY,
			"blob":    ANY,
		},
	}

	violations := rule.Validate(Struct{
		"name":    "widget",
		"count":   int64(5),
		"active":  true,
		"details": map[string]any{"color": "red"},
		"items":   []any{"a", "b"},
		"blob":    struct{}{},
	})
	assert.Empty(t, violations)

	violations = rule.Validate(Struct{
		"name":    42,
		"count":   "five",
		"active":  "yes",
		"details": []any{},
		"items":   map[string]any{},
	})
	assert.Len(t, violations, 5)
}

func TestRule_Validate_Optional_Fields_Skipped(
	t *testing.T,
) {

	rule := Rule{
		RequiredFields: []string{"id"},
		FieldTypes: map[string]FieldType{
			"id":   STRING,
			"note": STRING,
		},
	}

	// note is typed but not required, absence is fine
	violations := rule.Validate(Struct{"id": "abc"})
	assert.Empty(t, violations)
}

func TestRuleFromDefinition(
	t *testing.T,
) {

	rule, err := RuleFromDefinition(
		[]string{"order_id"}, map[string]string{"order_id": "string", "total": "number"},
	)
	assert.NoError(t, err)
	assert.Equal(t, []string{"order_id"}, rule.RequiredFields)
	assert.Equal(t, STRING, rule.FieldTypes["order_id"])
	assert.Equal(t, NUMBER, rule.FieldTypes["total"])

	_, err = RuleFromDefinition(nil, map[string]string{"foo": "integer"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "FieldType 'integer' doesn't exist")
}

func TestRegistry_Replaces_Rules(
	t *testing.T,
) {

	reg := NewRegistry()
	reg.RegisterRule("order.created", Rule{RequiredFields: []string{"order_id"}})
	reg.RegisterRule("order.created", Rule{RequiredFields: []string{"order_id", "total"}})

	rule, present := reg.Rule("order.created")
	assert.True(t, present)
	assert.Equal(t, []string{"order_id", "total"}, rule.RequiredFields)

	_, present = reg.Rule("order.deleted")
	assert.False(t, present)

	assert.Equal(t, []string{"order.created"}, reg.EventTypes())
}
