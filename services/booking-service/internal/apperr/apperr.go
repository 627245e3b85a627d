// Package apperr is the error taxonomy shared by the booking engine and its
// HTTP surface. Every error leaving the engine is an *Error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindIllegalTransition
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindIllegalTransition:
		return "illegal_transition"
	}
	return "internal"
}

// Machine-readable codes.
const (
	CodeInvalidInput         = "invalid_input"
	CodeInvalidDuration      = "invalid_duration"
	CodeInvalidStatus        = "invalid_status"
	CodeReasonRequired       = "reason_required"
	CodeStaffRequired        = "staff_required"
	CodeServiceInactive      = "service_inactive"
	CodeForbidden            = "forbidden"
	CodeNotFound             = "not_found"
	CodeSlotConflict         = "slot_conflict"
	CodeOutOfRange           = "out_of_range"
	CodeBusinessInactive     = "business_inactive"
	CodePlanLimit            = "plan_limit_reached"
	CodeStaleRequest         = "stale_request"
	CodeVersionMismatch      = "version_mismatch"
	CodeActionDecided        = "action_decided"
	CodeIdempotencyKeyReused = "idempotency_key_reused"
	CodeIllegalTransition    = "illegal_transition"
	CodeInternal             = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func Forbidden(reason string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeForbidden, Message: reason}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func IllegalTransition(from, to string) *Error {
	return &Error{
		Kind:    KindIllegalTransition,
		Code:    CodeIllegalTransition,
		Message: fmt.Sprintf("transition from %s to %s is not allowed", from, to),
	}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

// As returns the *Error in err's chain, wrapping anything else as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	return As(err).Kind
}

func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return As(err).Code
}

// HasCode reports whether err carries code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindIllegalTransition:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to show a caller. Validation and
// authorization reasons pass through; conflicts and internal failures are
// reduced to fixed messages.
func PublicMessage(err error) string {
	e := As(err)
	switch e.Kind {
	case KindValidation, KindAuthorization, KindNotFound, KindIllegalTransition:
		return e.Message
	case KindConflict:
		switch e.Code {
		case CodeSlotConflict, CodeOutOfRange:
			return "slot no longer available"
		case CodeActionDecided:
			return "action already decided"
		case CodeStaleRequest:
			return "request is stale"
		case CodeVersionMismatch:
			return "appointment changed since it was read"
		case CodeBusinessInactive:
			return "business is not accepting bookings"
		case CodePlanLimit:
			return "monthly booking limit reached"
		case CodeIdempotencyKeyReused:
			return "idempotency key already used"
		}
		return "conflict"
	}
	return "internal error"
}
