package codegen

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// ErrorKind classifies internal compiler errors.
type ErrorKind int

const (
	// KindUnhandledOp: an operation the backend does not know.
	KindUnhandledOp ErrorKind = iota + 1
	// KindInvariant: a structural invariant was broken by an earlier pass.
	KindInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnhandledOp:
		return "unhandled operation"
	case KindInvariant:
		return "invariant violation"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is an internal compiler error. Compilation of the function is
// abandoned. Errors unwrap to errdefs.ErrInternal, so errdefs.IsInternal
// tells them apart from problems with the input.
type Error struct {
	Func string
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Func, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return errdefs.ErrInternal }

func unhandledOp(fn, format string, args ...interface{}) error {
	return &Error{Func: fn, Kind: KindUnhandledOp, Msg: fmt.Sprintf(format, args...)}
}

func invariant(fn, format string, args ...interface{}) error {
	return &Error{Func: fn, Kind: KindInvariant, Msg: fmt.Sprintf(format, args...)}
}
