// Package errs provides structured errors with an operation trace and a
// kind that maps onto an HTTP status code.
//
// Inspired by:
// - https://github.com/gilcrest/diygoapi - for the Kind/Op error shape
// - https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html
package errs

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Op describes an operation, usually as the package and method,
// such as "destructionService.DestroyRows".
type Op string

// Kind defines the kind of error this is.
type Kind uint8

// Parameter represents the parameter related to the error.
type Parameter string

const (
	Other          Kind = iota // Unclassified error
	Invalid                    // Invalid operation for this type of item
	IO                         // External I/O error such as network failure
	Exist                      // Item already exists
	NotExist                   // Item does not exist
	Internal                   // Internal error or inconsistency
	Database                   // Error from database
	Validation                 // Input validation error
	InvalidRequest             // Invalid request
	Unauthenticated            // Request lacks valid authentication credentials
	Unauthorized               // Caller is not authorized for the operation
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other_error"
	case Invalid:
		return "invalid_operation"
	case IO:
		return "I/O_error"
	case Exist:
		return "item_already_exists"
	case NotExist:
		return "item_does_not_exist"
	case Internal:
		return "internal_error"
	case Database:
		return "database_error"
	case Validation:
		return "input_validation_error"
	case InvalidRequest:
		return "invalid_request_error"
	case Unauthenticated:
		return "unauthenticated_request"
	case Unauthorized:
		return "unauthorized_request"
	}

	return "unknown_error_kind"
}

// Error is the type that implements the error interface. An Error carries
// the operation chain it passed through, the kind assigned closest to the
// root cause, and the underlying error.
type Error struct {
	Op    Op
	Kind  Kind
	Param Parameter
	Err   error
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)

	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) isZero() bool {
	return e.Op == "" && e.Kind == 0 && e.Param == "" && e.Err == nil
}

// E builds an error value from its arguments. There must be at least one
// argument or E panics. The type of each argument determines its meaning:
//
//	Op: the operation being performed
//	Kind: the class of error
//	Parameter: the request parameter related to the error
//	string: treated as an error message
//	error: the underlying error
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("call to errs.E with no arguments")
	}

	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Op:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case Parameter:
			e.Param = arg
		case string:
			e.Err = errors.New(arg)
		case *Error:
			// Make a copy so the caller's error is not mutated.
			errCopy := *arg
			e.Err = &errCopy
		case error:
			e.Err = arg
		default:
			panic(fmt.Sprintf("unknown type %T, value %v in error call", arg, arg))
		}
	}

	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	// The previous error was also of type *Error, so carry its kind
	// upward unless this level sets its own.
	if e.Kind == Other {
		e.Kind = prev.Kind
		prev.Kind = Other
	}

	return e
}

// KindIs reports whether err, or any error in its chain, is of the
// given kind.
func KindIs(kind Kind, err error) bool {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind != Other {
			return e.Kind == kind
		}

		return KindIs(kind, e.Err)
	}

	return false
}

// kindToHTTPStatus maps an error kind to the HTTP status code returned
// to the caller.
func kindToHTTPStatus(kind Kind) int {
	switch kind {
	case Validation, InvalidRequest, Invalid:
		return http.StatusBadRequest
	case NotExist:
		return http.StatusNotFound
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case Exist:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the wire shape for every failure: a single flat
// error message.
type errorResponse struct {
	Error string `json:"error"`
}

// HTTPErrorResponse writes err to w as JSON with a status code derived
// from the error kind. Every failure path produces exactly one response.
func HTTPErrorResponse(w http.ResponseWriter, logger zerolog.Logger, err error) {
	if err == nil {
		logger.Error().Msg("nil error passed to HTTPErrorResponse")
		writeError(w, logger, http.StatusInternalServerError, "internal server error")

		return
	}

	var e *Error
	if errors.As(err, &e) {
		if e.isZero() {
			logger.Error().Msg("empty error passed to HTTPErrorResponse")
			writeError(w, logger, http.StatusInternalServerError, "internal server error")

			return
		}

		status := kindToHTTPStatus(e.Kind)

		logger.Error().
			Stack().
			Err(e.Err).
			Str("op", string(e.Op)).
			Str("kind", e.Kind.String()).
			Str("param", string(e.Param)).
			Int("status", status).
			Msg("error response")

		writeError(w, logger, status, e.Error())

		return
	}

	logger.Error().Err(err).Msg("unknown error response")
	writeError(w, logger, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(errorResponse{Error: msg})
	if err != nil {
		logger.Error().Err(err).Msg("encoding error response")
	}
}
