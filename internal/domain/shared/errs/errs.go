// Package errs holds the error taxonomy shared by every layer of the
// booking engine. Domain packages declare their sentinels through Sentinel
// so callers can classify any error with errors.Is or KindOf.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and transport mapping.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindAuthorization       Kind = "authorization"
	KindConflict            Kind = "conflict"
	KindPaymentVerification Kind = "payment_verification"
	KindGateway             Kind = "gateway"
	KindConsistency         Kind = "consistency"
	KindInternal            Kind = "internal"
)

var (
	ErrValidation          = &kindError{kind: KindValidation}
	ErrNotFound            = &kindError{kind: KindNotFound}
	ErrAuthorization       = &kindError{kind: KindAuthorization}
	ErrConflict            = &kindError{kind: KindConflict}
	ErrPaymentVerification = &kindError{kind: KindPaymentVerification}
	ErrGateway             = &kindError{kind: KindGateway}
	ErrConsistency         = &kindError{kind: KindConsistency}
)

type kindError struct {
	kind Kind
}

func (e *kindError) Error() string {
	return string(e.kind)
}

func sentinelFor(kind Kind) error {
	switch kind {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindAuthorization:
		return ErrAuthorization
	case KindConflict:
		return ErrConflict
	case KindPaymentVerification:
		return ErrPaymentVerification
	case KindGateway:
		return ErrGateway
	case KindConsistency:
		return ErrConsistency
	default:
		return nil
	}
}

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds a classified error around err.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + string(e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against the kind sentinel so errors.Is(err, ErrConflict)
// holds for every conflict regardless of its cause.
func (e *Error) Is(target error) bool {
	sentinel := sentinelFor(e.Kind)
	return sentinel != nil && target == sentinel
}

// Sentinel declares a package-level error that already belongs to kind.
func Sentinel(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// KindOf returns the kind of the outermost classified error in the chain,
// or KindInternal when the chain carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindInternal
}

// Is reports whether err belongs to kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
