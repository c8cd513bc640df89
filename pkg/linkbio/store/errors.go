package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Kind classifies store failures. The set is closed.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindInvalid     Kind = "invalid"
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// Error is the only error type returned by Store methods.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error renders "op: cause".
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + string(e.Kind)
	}
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a not_found store error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classify converts a gorm/driver error into a store error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	var verrs validator.ValidationErrors
	var netErr net.Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return newError(KindNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return newError(KindConflict, op, err)
	case errors.As(err, &verrs), errors.Is(err, gorm.ErrInvalidData), errors.Is(err, gorm.ErrInvalidValue):
		return newError(KindInvalid, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, sql.ErrConnDone), errors.Is(err, driver.ErrBadConn), errors.As(err, &netErr):
		return newError(KindUnavailable, op, err)
	default:
		return newError(KindInternal, op, err)
	}
}
