package platform

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the submission controller can decide
// between aborting, retrying, and retrying with a longer backoff.
type Kind string

const (
	KindConfig     Kind = "config"
	KindTemplate   Kind = "template"
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindUI         Kind = "ui"
	KindFormat     Kind = "format"
	KindNetwork    Kind = "network"
	KindRateLimit  Kind = "rate_limit"
)

// ErrLoginRedirect signals that the platform bounced an authenticated
// operation back to its login page. The session manager re-acquires the
// session when it sees this wrapped inside a retryable error.
var ErrLoginRedirect = errors.New("redirected to login")

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and the operation that observed it.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is E with an inline formatted cause.
func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's
// chain, or KindNetwork when the failure is unclassified (unknown
// failures against a remote surface are treated as transient).
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}

// Retryable reports whether an error of this kind may succeed on a
// later attempt. Auth failures are excluded: credentials do not heal
// themselves, operators rotate them.
func Retryable(kind Kind) bool {
	switch kind {
	case KindUI, KindFormat, KindNetwork, KindRateLimit:
		return true
	}
	return false
}
