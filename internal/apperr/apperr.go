// Package apperr defines the error taxonomy shared by the generation pipeline.
// Every error surfaced to an operator carries a Kind so callers can branch on
// it with errors.Is against the sentinels below.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindValidation      Kind = "VALIDATION"
	KindNotFound        Kind = "NOT_FOUND"
	KindDuplicate       Kind = "DUPLICATE"
	KindTemplateMissing Kind = "TEMPLATE_MISSING"
	KindRenderFailure   Kind = "RENDER_FAILURE"
	KindIOFailure       Kind = "IO_FAILURE"
)

// Sentinels usable with errors.Is. Any *Error of the same kind matches.
var (
	ErrUnauthorized    = &Error{Kind: KindUnauthorized, Message: "actor lacks the required privilege"}
	ErrValidation      = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDuplicate       = &Error{Kind: KindDuplicate, Message: "already exists"}
	ErrTemplateMissing = &Error{Kind: KindTemplateMissing, Message: "template file missing"}
	ErrRenderFailure   = &Error{Kind: KindRenderFailure, Message: "render failed"}
	ErrIOFailure       = &Error{Kind: KindIOFailure, Message: "i/o failure"}
)

// Error is a classified error with a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so that errors.Is(err, ErrValidation) works for
// every validation error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it in the chain.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Duplicate(format string, args ...any) *Error {
	return New(KindDuplicate, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" when the
// error is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the message part of a classified error without the kind
// prefix. Unclassified errors return err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message == "" && e.Err != nil {
			return e.Err.Error()
		}
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
