package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed backend call into the small fixed set the
// rest of the client works with. Raw backend codes never leak past this
// package.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuthExpired
	KindAuthInvalid
	KindNotFound
	KindConflict
	KindServerUnavailable
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthExpired:
		return "auth expired"
	case KindAuthInvalid:
		return "auth invalid"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindServerUnavailable:
		return "server unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified backend failure. Message is the backend's raw error
// string so the UI can display unrecognized failures verbatim.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    string // backend error_code, when one was supplied
	Status  int    // HTTP status, 0 for transport failures
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

// Retryable reports whether the failure is transient and worth presenting
// with a "try again" affordance.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindServerUnavailable
}

// AuthFailure reports whether the failure means the credential is no good.
func (e *Error) AuthFailure() bool {
	return e.Kind == KindAuthExpired || e.Kind == KindAuthInvalid
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// Backend error codes, the fixed vocabulary the server emits.
const (
	codeTokenExpired  = "TOKEN_EXPIRED"
	codeTokenInvalid  = "TOKEN_INVALID"
	codeDBConnection  = "DB_CONNECTION_ERROR"
	codeTimeout       = "TIMEOUT"
	codeDBQueryError  = "DB_QUERY_ERROR"
)

// classify maps a backend response to the taxonomy. The error_code takes
// precedence over the HTTP status; unrecognized combinations fall back to
// KindUnknown carrying the raw message.
func classify(status int, code, message string) *Error {
	e := &Error{Message: message, Code: code, Status: status}

	switch code {
	case codeTokenExpired:
		e.Kind = KindAuthExpired
		return e
	case codeTokenInvalid:
		e.Kind = KindAuthInvalid
		return e
	case codeDBConnection, codeDBQueryError:
		e.Kind = KindServerUnavailable
		return e
	case codeTimeout:
		e.Kind = KindTimeout
		return e
	}

	switch {
	case status == 401:
		e.Kind = KindAuthInvalid
	case status == 404:
		e.Kind = KindNotFound
	case status == 409:
		e.Kind = KindConflict
	case status == 408 || status == 504:
		e.Kind = KindTimeout
	case status >= 500:
		e.Kind = KindServerUnavailable
	default:
		e.Kind = KindUnknown
	}
	return e
}
