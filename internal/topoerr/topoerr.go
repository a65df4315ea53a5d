// Package topoerr defines the error kinds reported by topology composition and apply.
//
// Every error produced by a stage carries one Kind. Callers test for a kind with
// errors.Is against the package sentinels:
//
//	if errors.Is(err, topoerr.ErrConfiguration) { ... }
package topoerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Configuration is invalid or self-contradictory input. Not retryable.
	Configuration Kind = iota + 1
	// AddressSpaceExhausted means CIDR blocks do not fit the parent block.
	AddressSpaceExhausted
	// DependencyUnresolved means a reference points at an identifier nobody produced.
	DependencyUnresolved
	// BackendApplyFailed means the provisioning backend rejected a descriptor.
	BackendApplyFailed
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "ConfigurationError"
	case AddressSpaceExhausted:
		return "AddressSpaceExhausted"
	case DependencyUnresolved:
		return "DependencyUnresolved"
	case BackendApplyFailed:
		return "BackendApplyFailed"
	default:
		return "UnknownError"
	}
}

// Sentinels for errors.Is.
var (
	ErrConfiguration         = &Error{Kind: Configuration}
	ErrAddressSpaceExhausted = &Error{Kind: AddressSpaceExhausted}
	ErrDependencyUnresolved  = &Error{Kind: DependencyUnresolved}
	ErrBackendApplyFailed    = &Error{Kind: BackendApplyFailed}
)

// Error is a classified failure. Stage names the orchestration stage and Op the
// operation or logical id that failed; both are optional.
type Error struct {
	Kind  Kind
	Stage string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels compare by kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Configf returns a ConfigurationError.
func Configf(format string, args ...any) error {
	return &Error{Kind: Configuration, Err: fmt.Errorf(format, args...)}
}

// Exhaustedf returns an AddressSpaceExhausted error.
func Exhaustedf(format string, args ...any) error {
	return &Error{Kind: AddressSpaceExhausted, Err: fmt.Errorf(format, args...)}
}

// Unresolvedf returns a DependencyUnresolved error.
func Unresolvedf(format string, args ...any) error {
	return &Error{Kind: DependencyUnresolved, Err: fmt.Errorf(format, args...)}
}

// ApplyFailed wraps a backend error for the descriptor named by op.
func ApplyFailed(op string, err error) error {
	return &Error{Kind: BackendApplyFailed, Op: op, Err: err}
}

// InStage attributes err to a stage. Classified errors keep their kind; anything
// else is treated as a configuration error.
func InStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return &Error{Kind: te.Kind, Stage: stage, Op: te.Op, Err: te.Err}
	}
	return &Error{Kind: Configuration, Stage: stage, Err: err}
}

// KindOf reports the kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// StageOf reports the stage recorded on err.
func StageOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Stage
	}
	return ""
}
