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

// Package errs defines the shared error taxonomy of the reflex layer. Every
// error produced by the connection manager, the event mesh, or the view
// manager is an *Error carrying a kind discriminant, the producing component,
// and a structured context map, so handlers can route on fields instead of
// parsing message text.
package errs

import (
	stderrors "errors"
	"fmt"

	"github.com/go-errors/errors"
)

type Kind string

const (
	KindConnection Kind = "connection"
	KindValidation Kind = "validation"
	KindView       Kind = "view"
	KindGeneral    Kind = "general"
)

const (
	ComponentConnectionManager = "connection_manager"
	ComponentEventMesh         = "event_mesh"
	ComponentViewManager       = "materialized_views"
)

// Context keys shared across constructors.
const (
	ContextCause         = "cause"
	ContextCredentialRef = "credentialref"
	ContextEventData     = "event_data"
	ContextRule          = "validation_rule"
	ContextViolations    = "schema_violations"
	ContextViewID        = "view_id"
	ContextOperation     = "operation"
	ContextReason        = "reason"
)

// ReasonStaleOrDuplicate marks a view error that is expected and non-fatal:
// the event's sequence marker did not exceed the view's last-applied marker.
const ReasonStaleOrDuplicate = "stale-or-duplicate"

const ViolationMissingField = "Missing required field"

type Error struct {
	kind      Kind
	component string
	message   string
	context   map[string]any
	cause     error
}

func newError(
	kind Kind, component, message string, context map[string]any, cause error,
) *Error {

	if context == nil {
		context = map[string]any{}
	}
	if cause != nil {
		context[ContextCause] = cause.Error()
		if _, ok := cause.(*errors.Error); !ok {
			cause = errors.Wrap(cause, 2)
		}
	}
	return &Error{
		kind:      kind,
		component: component,
		message:   message,
		context:   context,
		cause:     cause,
	}
}

func General(
	component, format string, args ...any,
) *Error {

	return newError(KindGeneral, component, fmt.Sprintf(format, args...), nil, nil)
}

// Connection builds a connection error. The credential reference ends up in
// the context as a path only; credentials themselves never enter an error.
func Connection(
	message string, cause error, credentialRef string,
) *Error {

	context := map[string]any{
		ContextCredentialRef: credentialRef,
	}
	return newError(KindConnection, ComponentConnectionManager, message, context, cause)
}

// Validation builds a validation error carrying the offending event payload,
// the rule evaluated, and the complete violation set (field name to reason).
func Validation(
	message string, eventData map[string]any, rule any, violations map[string]string,
) *Error {

	context := map[string]any{
		ContextEventData:  eventData,
		ContextRule:       rule,
		ContextViolations: violations,
	}
	return newError(KindValidation, ComponentEventMesh, message, context, nil)
}

// View builds a materialized view error for the given view and operation.
// Reason distinguishes the expected stale-or-duplicate case from real apply
// failures.
func View(
	message, viewID, operation, reason string, cause error,
) *Error {

	context := map[string]any{
		ContextViewID:    viewID,
		ContextOperation: operation,
		ContextReason:    reason,
	}
	return newError(KindView, ComponentViewManager, message, context, cause)
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.component, e.message)
}

func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Component() string {
	return e.component
}

func (e *Error) Message() string {
	return e.message
}

// Context returns the structured context map. Callers must treat it as
// read-only.
func (e *Error) Context() map[string]any {
	return e.context
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithContext returns the same error with an additional context entry.
func (e *Error) WithContext(
	key string, value any,
) *Error {

	e.context[key] = value
	return e
}

// Violations extracts the violation set of a validation error, or nil when
// err is no validation error.
func Violations(
	err error,
) map[string]string {

	e, ok := As(err)
	if !ok || e.kind != KindValidation {
		return nil
	}
	if v, ok := e.context[ContextViolations].(map[string]string); ok {
		return v
	}
	return nil
}

func As(
	err error,
) (*Error, bool) {

	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsKind(
	err error, kind Kind,
) bool {

	if e, ok := As(err); ok {
		return e.kind == kind
	}
	return false
}

func IsConnection(err error) bool {
	return IsKind(err, KindConnection)
}

func IsValidation(err error) bool {
	return IsKind(err, KindValidation)
}

func IsView(err error) bool {
	return IsKind(err, KindView)
}

// IsStaleOrDuplicate reports whether err is the expected, locally recovered
// rejection of an already applied event.
func IsStaleOrDuplicate(
	err error,
) bool {

	e, ok := As(err)
	if !ok || e.kind != KindView {
		return false
	}
	return e.context[ContextReason] == ReasonStaleOrDuplicate
}
