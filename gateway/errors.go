package gateway

import (
	"fmt"
)

// TransportError wraps a network-level failure: the request never produced
// an HTTP response (DNS, connect, TLS, timeout).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cannot reach API server: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthenticationError is an HTTP 401: the API key was rejected.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string {
	return "authentication failed — check your API key"
}

// AuthorizationError is an HTTP 403: the key is valid but access to the
// table was denied. Message carries the server-provided reason when one
// was present.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NotFoundError is an HTTP 404: the table is unknown to the manifest
// service.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ProtocolError is any other non-2xx response. Body holds at most 200
// bytes of the response for diagnostics.
type ProtocolError struct {
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("API returned HTTP %d: %s", e.StatusCode, e.Body)
}
