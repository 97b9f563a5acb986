package shipby

import (
	"errors"
	"fmt"
)

// Kind identifies one failure class in the engine's closed error taxonomy.
type Kind string

const (
	KindMissingSetting              Kind = "missing_setting"
	KindDeliveryValueNotFound       Kind = "delivery_value_not_found"
	KindInvalidDeliveryFormat       Kind = "invalid_delivery_format"
	KindShippingRateNotFound        Kind = "shipping_rate_not_found"
	KindShippingRateNotConfigured   Kind = "shipping_rate_not_configured"
	KindShippingMethodNotFound      Kind = "shipping_method_not_found"
	KindShippingMethodNotConfigured Kind = "shipping_method_not_configured"
	KindShippingMethodDisabled      Kind = "shipping_method_disabled"
	KindPrefectureMissing           Kind = "prefecture_missing"
	KindNoRule                      Kind = "no_rule"
	KindHolidayNeverResolves        Kind = "holiday_never_resolves"
)

// Error is a calculation failure. Every engine failure is value-returned
// as an *Error; nothing panics and nothing is retried internally.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two engine errors by Kind, so callers can branch with
// errors.Is(err, &shipby.Error{Kind: shipby.KindNoRule}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithCause attaches an underlying cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the failure kind of err, or "" when err is not an
// engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
