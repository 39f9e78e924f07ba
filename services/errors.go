package services

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// ValidationError is a recoverable rejection of the input. Nothing was written.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// OrNil lets callers accumulate messages and return a nil error when none were added.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	first := e.Fields[keys[0]][0]
	if len(keys) == 1 && len(e.Fields[keys[0]]) == 1 {
		return first
	}
	return fmt.Sprintf("%s (and %d more errors)", first, e.count()-1)
}

func (e *ValidationError) count() int {
	n := 0
	for _, msgs := range e.Fields {
		n += len(msgs)
	}
	return n
}

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// UpstreamError carries a failure reported by the identity provider.
type UpstreamError struct {
	Status  int
	Message string
	Errors  map[string]interface{}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("identity provider: %d %s", e.Status, e.Message)
}

// StatusError is an error whose message is safe to show to the caller as is.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// OAuth2 error codes returned by the built-in token endpoint.
var (
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrInvalidClient    = errors.New("invalid_client")
	ErrInvalidGrant     = errors.New("invalid_grant")
	ErrUnsupportedGrant = errors.New("unsupported_grant_type")
)

var (
	ErrForbidden               = &StatusError{Status: http.StatusForbidden, Message: "This action is unauthorized."}
	ErrOAuthNotConfigured      = &StatusError{Status: http.StatusInternalServerError, Message: "OAuth server configuration missing."}
	ErrIdentityUnavailable     = &StatusError{Status: http.StatusInternalServerError, Message: "Error contacting the authentication server."}
	ErrInvalidIdentityResponse = &StatusError{Status: http.StatusInternalServerError, Message: "Invalid authentication response."}
)

// HTTPStatus maps an error from this package onto a response status.
func HTTPStatus(err error) int {
	var verr *ValidationError
	var nf *NotFoundError
	var up *UpstreamError
	var se *StatusError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &up):
		return up.Status
	case errors.As(err, &se):
		return se.Status
	case errors.Is(err, ErrInvalidClient):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidGrant), errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnsupportedGrant):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
