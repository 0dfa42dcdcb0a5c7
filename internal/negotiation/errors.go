package negotiation

import (
	"haggle/internal/remote"
	"haggle/internal/transcript"

	"github.com/pkg/errors"
)

// ErrValidation matches every *ValidationError through errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError rejects input before anything is sent to the service.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var (
	ErrEmptyName    = &ValidationError{Field: "user_id", Reason: "Please enter your name."}
	ErrEmptyOffer   = &ValidationError{Field: "offer", Reason: "Please enter your offer."}
	ErrUserMismatch = &ValidationError{Field: "user_id", Reason: "The user name cannot change once set."}
)

// Protocol errors: the command is not allowed in the current state. None of
// them mutate the transcript or the session.
var (
	ErrNoSession         = errors.New("no active negotiation session")
	ErrSessionActive     = errors.New("negotiation session already active")
	ErrSessionClosed     = errors.New("negotiation session is closed")
	ErrTurnInFlight      = errors.New("a negotiation turn is already in flight")
	ErrDecisionRequired  = errors.New("a final decision is required")
	ErrNoDecisionPending = errors.New("no final decision pending")
	ErrInvalidDecision   = errors.New("decision must be deal or no_deal")
	ErrStaleCall         = errors.New("completion does not belong to the current turn")
)

// UserMessage renders err as the line shown under the transcript.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	var callErr *remote.CallError
	if errors.As(err, &callErr) {
		if errors.Is(err, remote.ErrSessionNotFound) {
			return "Your negotiation session has expired. Press Ctrl+N to start a new one."
		}
		switch callErr.Op {
		case "start_negotiation":
			return "Failed to start negotiation. Please try again."
		case "decide":
			return "Failed to submit your decision. Please try again."
		default:
			return "Failed to process negotiation. Please try again."
		}
	}
	switch {
	case errors.Is(err, ErrTurnInFlight):
		return "Still waiting for the last reply."
	case errors.Is(err, ErrDecisionRequired):
		return "Please choose Deal or No Deal first."
	case errors.Is(err, ErrSessionClosed):
		return "This negotiation is closed. Press Ctrl+N to start a new one."
	case errors.Is(err, ErrNoSession):
		return "Start a negotiation first."
	case errors.Is(err, transcript.ErrNoPendingEntry), errors.Is(err, transcript.ErrPendingExists):
		return "Something went wrong with this turn. Please try again."
	}
	return err.Error()
}
