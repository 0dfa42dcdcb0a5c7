// Package negotiation drives a price negotiation against the remote service:
// session lifecycle, one turn at a time, optimistic transcript updates and
// the final-decision gate.
//
// Every command exists in a synchronous form (BeginNegotiation, SubmitOffer,
// SubmitDecision) and a split form for event loops: Prepare* validates and
// applies the optimistic mutations, the returned call's Run performs only the
// remote request and may run on any goroutine, and Complete* applies the
// outcome back on the control flow that owns the orchestrator.
package negotiation

import (
	"context"
	"strings"

	"haggle/internal/remote"
	"haggle/internal/transcript"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Client is the remote negotiation service.
type Client interface {
	StartSession(ctx context.Context, userID, productID string) (string, error)
	SubmitOffer(ctx context.Context, sessionID, offer string) (remote.TurnResult, error)
	SubmitDecision(ctx context.Context, sessionID string, decision remote.Decision) (string, error)
}

// Orchestrator is not safe for concurrent use. All Prepare/Complete calls
// must come from the same control flow; only Run may execute elsewhere.
type Orchestrator struct {
	client     Client
	owner      *Manager
	transcript *transcript.Transcript

	ui UIState
	// inflight is the one outstanding call; completions for anything else
	// are dropped.
	inflight any
	// restore is the offer text handed back to the input on failure.
	restore string
	// prevState is where a failed session start returns to.
	prevState State
}

func newOrchestrator(client Client, owner *Manager, tr *transcript.Transcript) *Orchestrator {
	return &Orchestrator{
		client:     client,
		owner:      owner,
		transcript: tr,
		ui: UIState{
			CurrentView: ViewNameEntry,
			State:       StateIdle,
		},
	}
}

func (o *Orchestrator) UIState() UIState {
	return o.ui
}

// SetInput mirrors the editable offer text.
func (o *Orchestrator) SetInput(text string) {
	o.ui.InputBuffer = text
}

// ClearError drops the surfaced error, e.g. once the user starts typing again.
func (o *Orchestrator) ClearError() {
	o.ui.LastError = nil
}

func (o *Orchestrator) transition(to State) {
	if o.ui.State == to {
		return
	}
	log.Debug().Str("from", string(o.ui.State)).Str("to", string(to)).Str("session_id", o.owner.sessionID()).Msg("negotiation state transition")
	o.ui.State = to
}

func (o *Orchestrator) fail(err error) (UIState, error) {
	o.ui.LastError = err
	log.Warn().Err(err).Str("state", string(o.ui.State)).Msg("negotiation command failed")
	return o.ui, err
}

// StartCall is a pending session start.
type StartCall struct {
	client    Client
	UserID    string
	ProductID string
	product   Product
}

type StartOutcome struct {
	call      *StartCall
	SessionID string
	Err       error
}

func (c *StartCall) Run(ctx context.Context) StartOutcome {
	id, err := c.client.StartSession(ctx, c.UserID, c.ProductID)
	return StartOutcome{call: c, SessionID: id, Err: err}
}

// PrepareBegin validates a session start. Allowed before the first session
// and after a session has closed.
func (o *Orchestrator) PrepareBegin(userID, productID string) (*StartCall, error) {
	switch o.ui.State {
	case StateAwaitingSessionStart, StateTurnInFlight:
		return nil, ErrTurnInFlight
	case StateSessionIdle, StateAwaitingDecision:
		return nil, ErrSessionActive
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = o.owner.userID
	}
	if userID == "" {
		_, err := o.fail(ErrEmptyName)
		return nil, err
	}
	if o.owner.userID != "" && o.owner.userID != userID {
		_, err := o.fail(ErrUserMismatch)
		return nil, err
	}
	product := o.owner.productFor(productID)

	call := &StartCall{
		client:    o.client,
		UserID:    userID,
		ProductID: product.ID,
		product:   product,
	}
	o.inflight = call
	o.prevState = o.ui.State
	o.ui.Busy = true
	o.ui.LastError = nil
	o.transition(StateAwaitingSessionStart)
	return call, nil
}

// CompleteBegin applies a session start outcome. On success the transcript
// is replaced by the greeting.
func (o *Orchestrator) CompleteBegin(out StartOutcome) (UIState, error) {
	if out.call == nil || o.inflight != out.call {
		return o.ui, ErrStaleCall
	}
	o.inflight = nil
	o.ui.Busy = false
	if out.Err != nil {
		o.transition(o.prevState)
		return o.fail(out.Err)
	}
	o.transcript.Reset()
	o.appendCounterparty(greetingText)
	o.ui.DecisionPending = false
	o.ui.LastError = nil
	o.ui.InputBuffer = ""
	o.ui.CurrentView = ViewNegotiation
	o.transition(StateSessionIdle)
	o.owner.activate(out.SessionID, out.call.UserID, out.call.product)
	return o.ui, nil
}

// BeginNegotiation opens a session and seeds the transcript with a greeting.
// On failure nothing changes and the call may be retried.
func (o *Orchestrator) BeginNegotiation(ctx context.Context, userID, productID string) (UIState, error) {
	call, err := o.PrepareBegin(userID, productID)
	if err != nil {
		return o.ui, err
	}
	return o.CompleteBegin(call.Run(ctx))
}

// OfferCall is an offer waiting for the service's reply.
type OfferCall struct {
	client    Client
	SessionID string
	Offer     string
}

type OfferOutcome struct {
	call   *OfferCall
	Result remote.TurnResult
	Err    error
}

func (c *OfferCall) Run(ctx context.Context) OfferOutcome {
	res, err := c.client.SubmitOffer(ctx, c.SessionID, c.Offer)
	return OfferOutcome{call: c, Result: res, Err: err}
}

func (o *Orchestrator) sessionGate() error {
	switch o.ui.State {
	case StateTerminal:
		return ErrSessionClosed
	case StateIdle:
		return ErrNoSession
	case StateAwaitingSessionStart, StateTurnInFlight:
		return ErrTurnInFlight
	}
	return nil
}

// PrepareOffer appends the customer's offer and a pending reply placeholder.
func (o *Orchestrator) PrepareOffer(text string) (*OfferCall, error) {
	if err := o.sessionGate(); err != nil {
		return nil, err
	}
	if o.ui.State == StateAwaitingDecision {
		return nil, ErrDecisionRequired
	}
	offer := strings.TrimSpace(text)
	if offer == "" {
		_, err := o.fail(ErrEmptyOffer)
		return nil, err
	}
	sessionID := o.owner.sessionID()
	if sessionID == "" {
		return nil, ErrNoSession
	}
	if o.transcript.HasPending() {
		_, err := o.fail(transcript.ErrPendingExists)
		return nil, err
	}
	if err := o.transcript.AppendSettled(transcript.Customer, offer); err != nil {
		_, err = o.fail(err)
		return nil, err
	}
	if err := o.transcript.AppendPending(transcript.Counterparty); err != nil {
		_, err = o.fail(err)
		return nil, err
	}
	call := &OfferCall{client: o.client, SessionID: sessionID, Offer: offer}
	o.inflight = call
	o.restore = offer
	o.ui.InputBuffer = ""
	o.ui.Busy = true
	o.ui.LastError = nil
	o.transition(StateTurnInFlight)
	return call, nil
}

// CompleteOffer resolves the placeholder and interprets the reply status.
func (o *Orchestrator) CompleteOffer(out OfferOutcome) (UIState, error) {
	if out.call == nil || o.inflight != out.call {
		return o.ui, ErrStaleCall
	}
	o.inflight = nil
	o.ui.Busy = false
	if out.Err != nil {
		o.transcript.DiscardPending()
		if strings.TrimSpace(o.ui.InputBuffer) == "" {
			o.ui.InputBuffer = o.restore
		}
		o.transition(StateSessionIdle)
		return o.fail(out.Err)
	}
	o.restore = ""
	res := out.Result
	currency := o.owner.session.Product.Currency

	if res.Narrative != "" {
		if err := o.transcript.ResolvePending(res.Narrative); err != nil {
			o.transcript.DiscardPending()
			o.transition(StateSessionIdle)
			return o.fail(errors.Wrap(err, "resolve reply"))
		}
	} else {
		o.transcript.DiscardPending()
	}
	if res.CounterOffer != nil {
		o.appendCounterparty(counterOfferText(currency, *res.CounterOffer))
	}
	o.ui.LastError = nil

	switch res.Status {
	case remote.StatusDealClosed:
		o.appendCounterparty(dealClosedText(currency, res.CounterOffer))
		o.transition(StateTerminal)
		o.owner.close(ReasonDealMade)
	case remote.StatusNoDeal:
		o.appendCounterparty(res.DetailMessage)
		o.transition(StateTerminal)
		o.owner.close(ReasonNoDeal)
	case remote.StatusDecisionRequired:
		o.appendCounterparty(res.DetailMessage)
		o.ui.DecisionPending = true
		o.transition(StateAwaitingDecision)
		o.owner.emit(Event{Kind: EventDecisionRequested, Session: o.owner.session, Detail: res.DetailMessage})
	default:
		o.transition(StateSessionIdle)
	}
	return o.ui, nil
}

// appendCounterparty skips blank text; fields the service left out never
// turn into entries.
func (o *Orchestrator) appendCounterparty(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	_ = o.transcript.AppendSettled(transcript.Counterparty, text)
}

// SubmitOffer runs one full offer turn.
func (o *Orchestrator) SubmitOffer(ctx context.Context, text string) (UIState, error) {
	call, err := o.PrepareOffer(text)
	if err != nil {
		return o.ui, err
	}
	return o.CompleteOffer(call.Run(ctx))
}

// DecisionCall is a final decision waiting for acknowledgement.
type DecisionCall struct {
	client    Client
	SessionID string
	Decision  remote.Decision
}

type DecisionOutcome struct {
	call      *DecisionCall
	Narrative string
	Err       error
}

func (c *DecisionCall) Run(ctx context.Context) DecisionOutcome {
	narrative, err := c.client.SubmitDecision(ctx, c.SessionID, c.Decision)
	return DecisionOutcome{call: c, Narrative: narrative, Err: err}
}

// PrepareDecision is only valid while a final decision is pending.
func (o *Orchestrator) PrepareDecision(decision remote.Decision) (*DecisionCall, error) {
	if err := o.sessionGate(); err != nil {
		return nil, err
	}
	if o.ui.State != StateAwaitingDecision || !o.ui.DecisionPending {
		return nil, ErrNoDecisionPending
	}
	if !decision.Valid() {
		return nil, ErrInvalidDecision
	}
	sessionID := o.owner.sessionID()
	if sessionID == "" {
		return nil, ErrNoSession
	}
	call := &DecisionCall{client: o.client, SessionID: sessionID, Decision: decision}
	o.inflight = call
	o.ui.Busy = true
	o.ui.LastError = nil
	o.transition(StateTurnInFlight)
	return call, nil
}

// CompleteDecision closes the session on success. On failure the decision
// stays pending and may be retried.
func (o *Orchestrator) CompleteDecision(out DecisionOutcome) (UIState, error) {
	if out.call == nil || o.inflight != out.call {
		return o.ui, ErrStaleCall
	}
	o.inflight = nil
	o.ui.Busy = false
	if out.Err != nil {
		o.transition(StateAwaitingDecision)
		return o.fail(out.Err)
	}
	o.appendCounterparty(out.Narrative)
	o.ui.DecisionPending = false
	o.ui.LastError = nil
	o.transition(StateTerminal)
	reason := ReasonNoDeal
	if out.call.Decision == remote.DecisionDeal {
		reason = ReasonDealMade
	}
	o.owner.close(reason)
	return o.ui, nil
}

// SubmitDecision answers the final-decision prompt.
func (o *Orchestrator) SubmitDecision(ctx context.Context, decision remote.Decision) (UIState, error) {
	call, err := o.PrepareDecision(decision)
	if err != nil {
		return o.ui, err
	}
	return o.CompleteDecision(call.Run(ctx))
}

func (o *Orchestrator) abandon() {
	o.inflight = nil
	o.transcript.DiscardPending()
	o.restore = ""
	o.ui.Busy = false
	o.ui.DecisionPending = false
	o.transition(StateTerminal)
}
