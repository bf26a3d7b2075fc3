// Package apperr defines the error kinds surfaced by the chat relay.
//
// Every failure that crosses the service boundary carries a stable Kind and
// a human-readable detail. Wrapped causes are kept for logging and errors.Is
// but are never rendered to clients.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable error classification.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindGateDenied         Kind = "gate_denied"
	KindGateUnavailable    Kind = "gate_unavailable"
	KindNoSponsorWallet    Kind = "no_sponsor_wallet"
	KindWalletSwitchFailed Kind = "wallet_switch_failed"
	KindRelayUnavailable   Kind = "relay_unavailable"
	KindNotFound           Kind = "not_found"
	KindInternal           Kind = "internal"
)

// Sentinels for errors.Is comparisons.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrGateDenied         = &Error{Kind: KindGateDenied}
	ErrGateUnavailable    = &Error{Kind: KindGateUnavailable}
	ErrNoSponsorWallet    = &Error{Kind: KindNoSponsorWallet}
	ErrWalletSwitchFailed = &Error{Kind: KindWalletSwitchFailed}
	ErrRelayUnavailable   = &Error{Kind: KindRelayUnavailable}
	ErrNotFound           = &Error{Kind: KindNotFound}
)

// Error is a classified failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf creates an error of the given kind with a formatted detail.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// Validation is shorthand for a validation error.
func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

// KindOf returns the kind of err, or KindInternal when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Detail returns the client-safe message for err.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Detail != "" {
			return e.Detail
		}
		return string(e.Kind)
	}
	return "internal error"
}
