// internal/errs/errs.go
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindNotFound marks a lookup for an identity that was never
	// observed. This is a contract violation by the caller, not a
	// recoverable condition.
	KindNotFound Kind = "NOT_FOUND"
	// KindUnreadable marks a file that exists but could not be read.
	KindUnreadable Kind = "UNREADABLE"
)

type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Path: what}
}

func Unreadable(path string, err error) *Error {
	return &Error{Kind: KindUnreadable, Path: path, Err: err}
}

func IsNotFound(err error) bool {
	return hasKind(err, KindNotFound)
}

func IsUnreadable(err error) bool {
	return hasKind(err, KindUnreadable)
}

func hasKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
