package remote

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Failure kinds surfaced by the client. Match them with errors.Is.
var (
	ErrServiceUnavailable = errors.New("negotiation service unavailable")
	ErrSessionNotFound    = errors.New("negotiation session not found")
	ErrInvalidRequest     = errors.New("invalid negotiation request")
)

// CallError carries the failed operation and whatever the service said.
type CallError struct {
	Op        string
	Kind      error
	Status    int
	Detail    string
	RequestID string
	Err       error
}

func (e *CallError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, ": http %d", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CallError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classifyStatus maps a non-2xx response onto a failure kind. Session-scoped
// operations treat 404 and session complaints as a stale session id.
func classifyStatus(op string, status int, detail string) error {
	sessionScoped := op != opStart
	lowered := strings.ToLower(detail)
	switch {
	case status >= 500, status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return ErrServiceUnavailable
	case sessionScoped && status == http.StatusNotFound:
		return ErrSessionNotFound
	case sessionScoped && status >= 400 && strings.Contains(lowered, "session"):
		return ErrSessionNotFound
	case !sessionScoped && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		return ErrInvalidRequest
	default:
		return ErrServiceUnavailable
	}
}
