package sshconn

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed remote operation. Kinds stay coarse:
// callers aggregate per-host outcomes and only need to distinguish how a
// host failed, not why.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConnect
	KindAuth
	KindTimeout
	KindRemoteExec
	KindHostNotFound
	KindConfigInvalid
)

// String returns the human-readable name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConnect:
		return "connect failure"
	case KindAuth:
		return "authentication failure"
	case KindTimeout:
		return "timeout"
	case KindRemoteExec:
		return "remote execution failure"
	case KindHostNotFound:
		return "host not found"
	case KindConfigInvalid:
		return "invalid configuration"
	default:
		return "unknown error"
	}
}

// Error is a classified per-host failure. It wraps the underlying cause so
// errors.Is/As still see transport-level errors.
type Error struct {
	Kind ErrorKind
	Host string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Host, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Host, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, host string, err error) *Error {
	return &Error{Kind: kind, Host: host, Err: err}
}

// KindOf extracts the ErrorKind from an error chain, returning KindUnknown
// for unclassified errors and nil errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
