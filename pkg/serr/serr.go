// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package serr defines the error taxonomy of the fuzzing core: a small
// closed set of kinds, each with a fixed recovery policy, rather than a
// type per failure. Callers branch on policy with Is, not on concrete
// error types.
package serr

import "fmt"

// Kind is one of the six error categories of the core. The kind alone
// determines whether a failure is fatal, reported-and-ignored, or
// swallowed; Fatal reports which kinds require a shutdown.
type Kind int

const (
	// ConfigError is bad user input: unknown tracing mode, invalid magic
	// number, zero timeout. Reported; non-fatal.
	ConfigError Kind = iota
	// GuestAddressError is a virtual-to-physical translation failure at
	// a rendezvous. The rendezvous is aborted; the driver stays unarmed.
	GuestAddressError
	// SnapshotError is a save/restore failure. Fatal; triggers shutdown.
	SnapshotError
	// ChannelClosed means the fuzzer thread exited. Triggers graceful
	// shutdown.
	ChannelClosed
	// SimulatorApiError is a wrapped non-NoException simulator return
	// code, surfaced with the simulator's last-error string.
	SimulatorApiError
	// InternalInvariantViolation indicates a bug: StopReason set twice,
	// no start processor when one was expected, etc. Fatal.
	InternalInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case GuestAddressError:
		return "GuestAddressError"
	case SnapshotError:
		return "SnapshotError"
	case ChannelClosed:
		return "ChannelClosed"
	case SimulatorApiError:
		return "SimulatorApiError"
	case InternalInvariantViolation:
		return "InternalInvariantViolation"
	default:
		return "UnknownError"
	}
}

// Error wraps an underlying cause with a Kind, so policy dispatch doesn't
// need a type switch over a dozen concrete error types.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind, unwrapping as
// needed. It does not use errors.As to keep this package dependency-free;
// the chain of Cause wrapping in this module is never more than a few
// frames deep.
func Is(err error, kind Kind) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			if se.Kind == kind {
				return true
			}
			err = se.Cause
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Fatal reports whether errors of this kind must trigger a shutdown per
// the policy table in spec §7.
func (k Kind) Fatal() bool {
	switch k {
	case SnapshotError, ChannelClosed, InternalInvariantViolation:
		return true
	default:
		return false
	}
}
