package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Kind classifies a service failure for the transport layer
type Kind int

const (
	KindValidation Kind = iota + 1
	KindBusinessRule
	KindAuthorization
	KindNotFound
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is returned by every service operation that fails
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindUpstream {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind of err, KindUpstream for foreign errors
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUpstream
}

func validationError(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func businessError(format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRule, Message: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found", Err: err}
}

func upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// bestEffort logs and discards the failure of a non-fatal step. It reports
// whether the step succeeded.
func bestEffort(step string, err error) bool {
	if err == nil {
		return true
	}
	log.Warn().Err(err).Str("step", step).Msg("Best-effort step failed")
	return false
}

// stepErrors collects non-fatal failures surfaced to the caller in an
// "errors" map next to a successful result.
type stepErrors map[string]string

func (e stepErrors) record(step string, err error) bool {
	if !bestEffort(step, err) {
		e[step] = err.Error()
		return false
	}
	return true
}
