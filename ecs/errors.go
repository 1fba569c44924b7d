package ecs

import "fmt"

// ErrKind identifies one of the ten structural error kinds the kernel can
// surface. Kinds are language-neutral so callers can branch on Kind alone.
type ErrKind string

const (
	ErrNoSuchEntity       ErrKind = "NoSuchEntity"
	ErrMissingComponent   ErrKind = "MissingComponent"
	ErrAlreadyPresent     ErrKind = "AlreadyPresent"
	ErrSingletonViolation ErrKind = "SingletonViolation"
	ErrPermissionDenied   ErrKind = "PermissionDenied"
	ErrValidationFailed   ErrKind = "ValidationFailed"
	ErrInvalidPhase       ErrKind = "InvalidPhase"
	ErrSnapshotFormat     ErrKind = "SnapshotFormatError"
	ErrUnknownComponent   ErrKind = "UnknownComponentType"
	ErrOrderingCycle      ErrKind = "OrderingCycle"
)

// Error is the kernel's single structured error type. It carries the kind,
// the affected entity (if any) and component type (if any), plus a wrapped
// cause for errors.Is/errors.As chains, implementing Unwrap so callers can
// use the standard library's error inspection instead of a bespoke Code
// string.
type Error struct {
	Kind      ErrKind
	Entity    Entity
	Component TypeID
	System    string
	Message   string
	Wrapped   error
}

func (e *Error) Error() string {
	switch {
	case !e.Entity.IsNone() && e.Component != "":
		return fmt.Sprintf("%s: %s (entity=%s component=%s)", e.Kind, e.Message, e.Entity, e.Component)
	case !e.Entity.IsNone():
		return fmt.Sprintf("%s: %s (entity=%s)", e.Kind, e.Message, e.Entity)
	case e.Component != "":
		return fmt.Sprintf("%s: %s (component=%s)", e.Kind, e.Message, e.Component)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error with the same Kind, so that
// sentinel-style checks (errors.Is(err, ecs.ErrNoSuchEntitySentinel)) work
// without comparing pointers.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind ErrKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) withEntity(entity Entity) *Error {
	e.Entity = entity
	return e
}

func (e *Error) withComponent(t TypeID) *Error {
	e.Component = t
	return e
}

func (e *Error) withSystem(s string) *Error {
	e.System = s
	return e
}

func (e *Error) withWrapped(err error) *Error {
	e.Wrapped = err
	return e
}

// Sentinel errors usable with errors.Is for kind-only comparisons.
var (
	ErrNoSuchEntitySentinel       = newErr(ErrNoSuchEntity, "no such entity")
	ErrMissingComponentSentinel   = newErr(ErrMissingComponent, "component not present")
	ErrAlreadyPresentSentinel     = newErr(ErrAlreadyPresent, "component already present")
	ErrSingletonViolationSentinel = newErr(ErrSingletonViolation, "singleton already owned")
	ErrPermissionDeniedSentinel   = newErr(ErrPermissionDenied, "permission denied")
	ErrValidationFailedSentinel   = newErr(ErrValidationFailed, "validation failed")
	ErrInvalidPhaseSentinel       = newErr(ErrInvalidPhase, "write attempted in read-only phase")
	ErrSnapshotFormatSentinel     = newErr(ErrSnapshotFormat, "malformed snapshot stream")
	ErrUnknownComponentSentinel   = newErr(ErrUnknownComponent, "unregistered component stable id")
	ErrOrderingCycleSentinel      = newErr(ErrOrderingCycle, "unresolvable system ordering constraints")
)
