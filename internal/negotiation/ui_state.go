package negotiation

type View string

const (
	ViewNameEntry   View = "nameEntry"
	ViewProduct     View = "product"
	ViewNegotiation View = "negotiation"
)

type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingSessionStart State = "awaitingSessionStart"
	StateSessionIdle          State = "sessionIdle"
	StateTurnInFlight         State = "turnInFlight"
	StateAwaitingDecision     State = "awaitingDecision"
	StateTerminal             State = "terminal"
)

// UIState is everything a presentation layer needs to draw the client. It is
// returned by value from every command; holding a copy never aliases the
// orchestrator's own state.
type UIState struct {
	CurrentView     View
	State           State
	InputBuffer     string
	Busy            bool
	LastError       error
	DecisionPending bool
}

// ErrorMessage is LastError rendered for the user.
func (s UIState) ErrorMessage() string {
	return UserMessage(s.LastError)
}

// CanSubmitOffer reports whether the send control should be enabled.
func (s UIState) CanSubmitOffer() bool {
	return s.State == StateSessionIdle && !s.Busy
}

// CanDecide reports whether the Deal / No Deal controls should be enabled.
func (s UIState) CanDecide() bool {
	return s.State == StateAwaitingDecision && s.DecisionPending && !s.Busy
}
