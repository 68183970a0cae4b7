// Package apperr defines the error taxonomy shared by the service and API layers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports malformed input. The caller must correct the input.
type ValidationError struct {
	Msg    string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	if e.Msg == "" {
		return strings.Join(parts, "; ")
	}
	return e.Msg + ": " + strings.Join(parts, "; ")
}

// StateError reports a transition that is not legal from the entity's current state.
type StateError struct {
	Entity string
	ID     string
	From   string
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s: cannot %s from status %q", e.Entity, e.ID, e.Op, e.From)
}

// ComplianceViolation reports a recovery action blocked by policy.
type ComplianceViolation struct {
	LotID      string
	ActionType string
	Reason     string
}

func (e *ComplianceViolation) Error() string {
	return fmt.Sprintf("recovery action %q for lot %s blocked: %s", e.ActionType, e.LotID, e.Reason)
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError reports a concurrent write detected by a version check.
// The caller should retry the read-modify-write.
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

// ForbiddenError reports an actor lacking the role required for an operation.
type ForbiddenError struct {
	ActorID string
	Op      string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s is not allowed to %s", e.ActorID, e.Op)
}

func Validation(msg string, fields ...FieldError) error {
	return &ValidationError{Msg: msg, Fields: fields}
}

func Field(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Error: msg}}}
}

func State(entity, id, from, op string) error {
	return &StateError{Entity: entity, ID: id, From: from, Op: op}
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func Conflict(entity, id string) error {
	return &ConflictError{Entity: entity, ID: id}
}

func Forbidden(actorID, op string) error {
	return &ForbiddenError{ActorID: actorID, Op: op}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsState(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

func IsCompliance(err error) bool {
	var target *ComplianceViolation
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}
