// Package apierr defines the typed error taxonomy for Prime Infrastructure
// REST API failures and the classifier that maps HTTP responses onto it.
package apierr

import (
	"errors"
	"fmt"
)

// AuthError indicates bad credentials, an unauthorized request, or a
// forbidden endpoint (HTTP 302, 401, 403).
type AuthError struct {
	Status int
	Reason string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication error (status %d): %s", e.Status, e.Reason)
}

// RequestError indicates a malformed request, a content negotiation
// mismatch, or any status code outside the documented set.
type RequestError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request error (status %d): %s", e.Status, e.Message)
}

// ServerError indicates a server-side failure (HTTP 500, 502, 503).
// Transient is set for 502/503, which the API documents as maintenance or
// request-rate overload; callers may choose to retry later.
type ServerError struct {
	Status    int
	Message   string
	Transient bool
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.Status, e.Message)
}

// NotFoundError indicates the requested URL does not exist (HTTP 404).
type NotFoundError struct {
	URL string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("URL not found: %s", e.URL)
}

// NoResultError indicates a data query that matched zero records.
type NoResultError struct {
	URL    string
	Params string
}

// Error implements the error interface.
func (e *NoResultError) Error() string {
	if e.Params != "" {
		return fmt.Sprintf("no result found for query %s with params %s", e.URL, e.Params)
	}
	return fmt.Sprintf("no result found for query %s", e.URL)
}

// ResourceNotFoundError indicates the caller referenced a resource name
// absent from the API catalog. Kind names the catalog listing the caller
// should consult ("data", "service", or empty when both were checked).
type ResourceNotFoundError struct {
	Name string
	Kind string
}

// Error implements the error interface.
func (e *ResourceNotFoundError) Error() string {
	switch e.Kind {
	case "data":
		return fmt.Sprintf("data resource %q not found in the API, check DataResources for available names", e.Name)
	case "service":
		return fmt.Sprintf("service resource %q not found in the API, check ServiceResources for available names", e.Name)
	default:
		return fmt.Sprintf("resource %q not found in the API, check DataResources and ServiceResources for available names", e.Name)
	}
}

// CancelledError indicates the caller aborted an operation through its
// context before it completed.
type CancelledError struct {
	Cause error
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("request cancelled: %v", e.Cause)
	}
	return "request cancelled"
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CancelledError) Unwrap() error { return e.Cause }

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsNoResult reports whether err is a NoResultError.
func IsNoResult(err error) bool {
	var target *NoResultError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsResourceNotFound reports whether err is a ResourceNotFoundError.
func IsResourceNotFound(err error) bool {
	var target *ResourceNotFoundError
	return errors.As(err, &target)
}

// IsCancelled reports whether err is a CancelledError.
func IsCancelled(err error) bool {
	var target *CancelledError
	return errors.As(err, &target)
}

// IsTransient reports whether err is a ServerError hinting at maintenance
// or rate-limit overload (HTTP 502/503).
func IsTransient(err error) bool {
	var target *ServerError
	return errors.As(err, &target) && target.Transient
}

// Class returns a short classification label for metrics and logging.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsAuth(err):
		return "auth"
	case IsNoResult(err):
		return "no_result"
	case IsNotFound(err):
		return "not_found"
	case IsResourceNotFound(err):
		return "resource_not_found"
	case IsCancelled(err):
		return "cancelled"
	case IsTransient(err):
		return "server_transient"
	default:
		var srv *ServerError
		if errors.As(err, &srv) {
			return "server"
		}
		var req *RequestError
		if errors.As(err, &req) {
			return "request"
		}
		return "network"
	}
}
