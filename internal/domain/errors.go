package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every *NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// ErrQuotaExhausted is returned by storage when a quota slot cannot be charged.
var ErrQuotaExhausted = errors.New("no exchanges left for this period")

// ErrCompanionInUse is returned by storage when a companion still owns
// workouts, diets or exchange requests and cannot be removed.
var ErrCompanionInUse = errors.New("companion still has training records")

// ValidationError reports malformed or policy-violating input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidStateError is returned when a decision targets a request that is no longer pending.
type InvalidStateError struct {
	Action  Action
	Current ExchangeStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a request that is already %s", e.Action, e.Current)
}

// NotFoundError is returned for unknown identifiers.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) hold for any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AuthorizationError is returned when the actor lacks a required capability.
type AuthorizationError struct {
	Role   Role
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q is not allowed to %s", e.Role, e.Action)
}

// UnknownCommandError is returned by the command factory for an unsupported kind/action pair.
type UnknownCommandError struct {
	Kind   ExchangeKind
	Action Action
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("no command for %s %q", e.Kind, e.Action)
}

// IsUserFacing reports whether err belongs to the domain taxonomy and can be shown verbatim.
func IsUserFacing(err error) bool {
	var (
		validation *ValidationError
		state      *InvalidStateError
		notFound   *NotFoundError
		authz      *AuthorizationError
		unknown    *UnknownCommandError
	)
	return errors.As(err, &validation) ||
		errors.As(err, &state) ||
		errors.As(err, &notFound) ||
		errors.As(err, &authz) ||
		errors.As(err, &unknown) ||
		errors.Is(err, ErrQuotaExhausted)
}
