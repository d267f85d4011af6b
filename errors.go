package device

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes the failure modes a Device can produce. Kinds are
// stable and meant to be matched with IsKind, never by string comparison.
type ErrorKind string

const (
	// ErrKindRequestRefused means admission control rejected the command
	// before it was ever enqueued (RefuseNewRequests policy).
	ErrKindRequestRefused ErrorKind = "request refused"
	// ErrKindRequestDropped means the command was enqueued but the
	// worker discarded it at dispatch time (Drop policy).
	ErrKindRequestDropped ErrorKind = "request dropped"
	// ErrKindDeviceBusy means the device was transiently unable to
	// accept work that is not covered by a refuse/drop policy decision.
	ErrKindDeviceBusy ErrorKind = "device busy"
	// ErrKindDeviceTerminated means the worker has already stopped
	// (explicitly, via Stop policy, or after a panic) and can no longer
	// serve any command.
	ErrKindDeviceTerminated ErrorKind = "device terminated"
	// ErrKindInvalidInput means a caller-supplied argument was rejected
	// before being handed to storage.
	ErrKindInvalidInput ErrorKind = "invalid input"
	// ErrKindOther wraps an error surfaced by the Storage implementation
	// itself.
	ErrKindOther ErrorKind = "other"
)

// Error is the structured error type returned from every Device and Future
// operation. Op names the failing operation (e.g. "Put", "DeleteRange");
// Kind classifies the failure; Inner, when present, is the originating
// error (typically from Storage) and participates in errors.Is/As via
// Unwrap.
type Error struct {
	Op    string
	Kind  ErrorKind
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Inner != nil {
		msg = e.Inner.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("device: %s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("device: %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is(err, &Error{Kind: ...}) matching by kind alone.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	if te.Kind == "" {
		return false
	}
	return e.Kind == te.Kind
}

// NewError builds a plain structured error for a given operation and kind.
func NewError(op string, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// WrapError wraps an error returned by Storage (or any dependency) as
// ErrKindOther, preserving it for errors.Is/As via Unwrap. Returns nil
// when inner is nil so call sites can write `return WrapError(op, err)`
// unconditionally. An inner *Error is not wrapped as ErrKindOther: the
// result keeps its Kind, Msg and Inner under the new Op.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if de, ok := inner.(*Error); ok {
		return &Error{Op: op, Kind: de.Kind, Msg: de.Msg, Inner: de.Inner}
	}
	return &Error{Op: op, Kind: ErrKindOther, Msg: inner.Error(), Inner: inner}
}

// ErrRequestRefused/ErrRequestDropped/ErrDeviceTerminated are sentinel
// values for use with errors.Is; they carry no Op or Msg.
var (
	ErrRequestRefused   = &Error{Kind: ErrKindRequestRefused}
	ErrRequestDropped   = &Error{Kind: ErrKindRequestDropped}
	ErrDeviceBusy       = &Error{Kind: ErrKindDeviceBusy}
	ErrDeviceTerminated = &Error{Kind: ErrKindDeviceTerminated}
	ErrInvalidInput     = &Error{Kind: ErrKindInvalidInput}
)

// IsKind reports whether err is a *Error (possibly wrapped) of the given
// kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
