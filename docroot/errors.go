package docroot

import (
	"errors"
	"io/fs"

	"github.com/go-git/go-billy/v5"
)

// Kind classifies the outcome of a lookup or read.
type Kind int

const (
	OK Kind = iota
	NotFound
	IOFailure
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case NotFound:
		return "not found"
	case IOFailure:
		return "io failure"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return e.Path + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind carried by err. Errors that are not *Error are IOFailure.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return IOFailure
}

// wrap classifies filesystem errors. Anything that means "cannot be opened"
// (missing, forbidden, outside the root) is NotFound.
func wrap(p string, err error) error {
	kind := IOFailure
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, billy.ErrCrossedBoundary):
		kind = NotFound
	}
	return &Error{Kind: kind, Path: p, Err: err}
}
