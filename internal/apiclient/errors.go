package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/juju/errors"
)

const (
	// ErrNetwork means the request never produced an HTTP response.
	ErrNetwork = errors.ConstError("cannot reach server")
	// ErrConflict is a domain-state rejection: canteen closed or full, item
	// out of stock, wrong pickup code, wrong current password.
	ErrConflict = errors.ConstError("request conflicts with current state")
	// ErrMalformedResponse means a response did not match the expected schema.
	ErrMalformedResponse = errors.ConstError("malformed response")
	// ErrServer covers every other non-success status.
	ErrServer = errors.ConstError("server error")
)

// Error is a non-success HTTP response. Detail carries the server-provided
// message when there is one, else the status text. Kind reports the
// category through errors.Is (errors.Unauthorized, errors.Forbidden,
// errors.NotFound, errors.NotValid, ErrConflict or ErrServer).
type Error struct {
	Method string
	Path   string
	Status int
	Detail string
	kind   error
}

func (e *Error) Error() string {
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.kind
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return errors.Unauthorized
	case http.StatusForbidden:
		return errors.Forbidden
	case http.StatusNotFound:
		return errors.NotFound
	case http.StatusUnprocessableEntity:
		return errors.NotValid
	case http.StatusBadRequest, http.StatusConflict:
		return ErrConflict
	}
	return ErrServer
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type validationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// detailFromBody extracts the user-facing message: detail, then message,
// then raw text, then the status text.
func detailFromBody(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if d := decodeDetail(eb.Detail); d != "" {
			return d
		}
		if eb.Message != "" {
			return eb.Message
		}
	} else if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}

func decodeDetail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var issues []validationIssue
	if err := json.Unmarshal(raw, &issues); err == nil && len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, is := range issues {
			if len(is.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", is.Loc[len(is.Loc)-1], is.Msg))
				continue
			}
			msgs = append(msgs, is.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func malformed(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, path, err)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", errors.NotValid, err)
}

// Describe renders err the way a user should see it. The categories match
// the messages of the web client.
func Describe(err error) string {
	var apiErr *Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errors.Timeout):
		return "request timed out, try again"
	case errors.Is(err, ErrNetwork):
		return "cannot reach server"
	case errors.Is(err, errors.Unauthorized):
		return "session expired or not logged in, please log in again"
	case errors.Is(err, errors.Forbidden):
		return "access denied"
	case errors.Is(err, ErrMalformedResponse):
		return "server sent an unexpected response"
	case errors.As(err, &apiErr):
		return apiErr.Detail
	}
	return err.Error()
}
