package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Classifier maps an HTTP status code and response body to a typed error.
// The mapping is total: every status code resolves to exactly one outcome.
type Classifier struct {
	// ZeroCountIsNoResult reproduces older API versions that signal an
	// empty query result inside a 200 envelope. Newer versions report the
	// count at the probe stage instead, which stays authoritative either
	// way, so the batch fetcher leaves this off by default.
	ZeroCountIsNoResult bool
}

// errorDocument is the body shape the API uses for 400 responses.
type errorDocument struct {
	ErrorDocument struct {
		Message string `json:"message"`
	} `json:"errorDocument"`
}

// Classify returns nil when status/body represent a success payload, or the
// typed error for the failure.
func (c Classifier) Classify(status int, body []byte, requestURL string) error {
	switch status {
	case http.StatusOK:
		if c.ZeroCountIsNoResult {
			if count, ok := envelopeCount(body); ok && count <= 0 {
				return &NoResultError{URL: requestURL}
			}
		}
		return nil
	case http.StatusFound:
		return &AuthError{Status: status, Reason: "incorrect credentials provided"}
	case http.StatusBadRequest:
		return &RequestError{Status: status, Message: badRequestMessage(body)}
	case http.StatusUnauthorized:
		return &AuthError{Status: status, Reason: "unauthorized access"}
	case http.StatusForbidden:
		return &AuthError{Status: status, Reason: "forbidden access to the REST API"}
	case http.StatusNotFound:
		return &NotFoundError{URL: requestURL}
	case http.StatusNotAcceptable:
		return &RequestError{Status: status, Message: "the Accept header sent in the request does not match a supported type"}
	case http.StatusUnsupportedMediaType:
		return &RequestError{Status: status, Message: "the Content-Type header sent in the request does not match a supported type"}
	case http.StatusInternalServerError:
		return &ServerError{Status: status, Message: "an error has occurred during the API invocation"}
	case http.StatusBadGateway:
		return &ServerError{Status: status, Message: "the server is down or being upgraded", Transient: true}
	case http.StatusServiceUnavailable:
		return &ServerError{Status: status, Message: "the servers are up, but overloaded with requests, try again later (rate limiting)", Transient: true}
	default:
		return &RequestError{Status: status, Message: fmt.Sprintf("unknown request error, return code is %d", status)}
	}
}

// badRequestMessage extracts the embedded error message of a 400 body,
// falling back to a generic message when the body has none.
func badRequestMessage(body []byte) string {
	var doc errorDocument
	if err := json.Unmarshal(body, &doc); err == nil && doc.ErrorDocument.Message != "" {
		return fmt.Sprintf("invalid request: %s", doc.ErrorDocument.Message)
	}
	return "invalid request"
}

// envelopeCount peeks at the queryResponse record count of a 200 body.
// The API reports it as @count or @counts depending on server version, and
// as either a JSON number or a quoted string.
func envelopeCount(body []byte) (int, bool) {
	var envelope struct {
		QueryResponse struct {
			Count  json.RawMessage `json:"@count"`
			Counts json.RawMessage `json:"@counts"`
		} `json:"queryResponse"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, false
	}

	raw := envelope.QueryResponse.Count
	if raw == nil {
		raw = envelope.QueryResponse.Counts
	}
	if raw == nil {
		return 0, false
	}

	count, err := strconv.Atoi(strings.Trim(string(raw), `"`))
	if err != nil {
		return 0, false
	}
	return count, true
}
