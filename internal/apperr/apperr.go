package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies failures that cross a service boundary.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindExtraction       Kind = "extraction_failure"
	KindEmbedding        Kind = "embedding_failure"
	KindModelNotFitted   Kind = "model_not_fitted"
	KindUpstreamSearch   Kind = "upstream_search_failure"
	KindInternal         Kind = "internal"
	KindModelUnavailable Kind = "model_unavailable"
)

// Error is the service-level error type. Message is safe to return to clients.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind. A nil err is allowed.
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func InvalidInput(op, message string, err error) *Error {
	return New(KindInvalidInput, op, message, err)
}

func Embedding(op string, err error) *Error {
	return New(KindEmbedding, op, "embedding the text failed", err)
}

func UpstreamSearch(op string, err error) *Error {
	return New(KindUpstreamSearch, op, "candidate search is unavailable", err)
}

func Internal(op string, err error) *Error {
	return New(KindInternal, op, "internal error", err)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// PublicMessage returns the client-facing message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindEmbedding, KindUpstreamSearch:
		return http.StatusBadGateway
	case KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
