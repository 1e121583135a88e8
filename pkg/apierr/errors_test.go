package apierr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "auth error",
			err:  &AuthError{Status: 302, Reason: "incorrect credentials provided"},
			want: "authentication error (status 302): incorrect credentials provided",
		},
		{
			name: "request error",
			err:  &RequestError{Status: 400, Message: "invalid request: bad filter"},
			want: "request error (status 400): invalid request: bad filter",
		},
		{
			name: "server error",
			err:  &ServerError{Status: 503, Message: "overloaded", Transient: true},
			want: "server error (status 503): overloaded",
		},
		{
			name: "not found error",
			err:  &NotFoundError{URL: "https://pi.example.com/webacs/api/v4/data/Nope.json"},
			want: "URL not found: https://pi.example.com/webacs/api/v4/data/Nope.json",
		},
		{
			name: "no result with params",
			err:  &NoResultError{URL: "https://pi.example.com/webacs/api/v4/data/Clients.json", Params: ".full=true"},
			want: "no result found for query https://pi.example.com/webacs/api/v4/data/Clients.json with params .full=true",
		},
		{
			name: "data resource not found",
			err:  &ResourceNotFoundError{Name: "Clientz", Kind: "data"},
			want: `data resource "Clientz" not found in the API, check DataResources for available names`,
		},
		{
			name: "service resource not found",
			err:  &ResourceNotFoundError{Name: "rebootAll", Kind: "service"},
			want: `service resource "rebootAll" not found in the API, check ServiceResources for available names`,
		},
		{
			name: "unknown resource kind",
			err:  &ResourceNotFoundError{Name: "Mystery"},
			want: `resource "Mystery" not found in the API, check DataResources and ServiceResources for available names`,
		},
		{
			name: "cancelled with cause",
			err:  &CancelledError{Cause: context.Canceled},
			want: "request cancelled: context canceled",
		},
		{
			name: "cancelled without cause",
			err:  &CancelledError{},
			want: "request cancelled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCancelledError_Unwrap(t *testing.T) {
	err := &CancelledError{Cause: context.Canceled}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(%v, context.Canceled) = false, want true", err)
	}
}

func TestPredicates_MatchWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("fetch page 3: %w", &ServerError{Status: 503, Message: "overloaded", Transient: true})
	if !IsTransient(wrapped) {
		t.Errorf("IsTransient(%v) = false, want true", wrapped)
	}
	if IsAuth(wrapped) {
		t.Errorf("IsAuth(%v) = true, want false", wrapped)
	}
}
